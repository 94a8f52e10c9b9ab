package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a catalog when definition files in a directory change.
type Watcher struct {
	catalog  *Catalog
	dir      string
	debounce time.Duration
	logger   *slog.Logger
	onReload func(error)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the settle interval.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithReloadHook is called after every reload attempt with its result.
func WithReloadHook(fn func(error)) WatchOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// NewWatcher creates a watcher over dir for c.
func NewWatcher(c *Catalog, dir string, opts ...WatchOption) *Watcher {
	w := &Watcher{catalog: c, dir: dir, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = c.logger
	}
	return w
}

// Run watches until ctx is done. A failed reload is logged and the
// previous snapshot stays published.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !IsDefinitionFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("schema file changed", "name", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case <-timer.C:
			err := w.catalog.Reload(ctx)
			if err != nil {
				w.logger.Error("content type reload failed", "dir", w.dir, "err", err)
			}
			if w.onReload != nil {
				w.onReload(err)
			}

		case wErr, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("fsnotify error", "err", wErr)
		}
	}
}
