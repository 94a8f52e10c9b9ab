package records

import (
	"context"
	"errors"
	"log/slog"
)

// step is one fallible lookup of an ordered resolution pipeline.
type step[T any] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

// firstOf runs steps in order and returns the first result produced
// without error. Errors are isolated to their step; anything other than
// ErrNotFound is logged at debug level.
func firstOf[T any](ctx context.Context, logger *slog.Logger, steps ...step[T]) (T, string, bool) {
	var zero T
	for _, s := range steps {
		out, err := s.run(ctx)
		if err == nil {
			return out, s.name, true
		}
		if !errors.Is(err, ErrNotFound) {
			logger.Debug("lookup step failed", "step", s.name, "err", err)
		}
	}
	return zero, "", false
}
