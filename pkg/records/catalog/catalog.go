// Package catalog holds the content types known to the engine. Lookups read
// an immutable snapshot; reloads build a new snapshot and swap it in.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// Loader produces the full set of content types.
type Loader interface {
	Load(ctx context.Context) ([]*records.ContentType, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]*records.ContentType, error)

func (f LoaderFunc) Load(ctx context.Context) ([]*records.ContentType, error) {
	return f(ctx)
}

// Static returns a loader over a fixed set of types.
func Static(types ...*records.ContentType) Loader {
	return LoaderFunc(func(context.Context) ([]*records.ContentType, error) {
		return types, nil
	})
}

type snapshot struct {
	types         []*records.ContentType
	byID          map[string]*records.ContentType
	byVariable    map[string]*records.ContentType
	relationships map[string][]records.Relationship // type id -> relationships it takes part in
}

// Catalog implements records.SchemaCatalog and records.RelationshipSource.
type Catalog struct {
	loader Loader
	logger *slog.Logger

	current atomic.Pointer[snapshot]
	loadMu  sync.Mutex
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = l
	}
}

// New creates a catalog. Nothing is loaded until the first lookup.
func New(loader Loader, opts ...Option) *Catalog {
	c := &Catalog{loader: loader}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Reload loads every type and publishes the result. On error the previous
// snapshot stays in place.
func (c *Catalog) Reload(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.reloadLocked(ctx)
}

func (c *Catalog) reloadLocked(ctx context.Context) error {
	types, err := c.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load content types: %w", err)
	}
	snap, err := buildSnapshot(types)
	if err != nil {
		return err
	}
	c.current.Store(snap)
	c.logger.Info("content types loaded", "count", len(snap.types))
	return nil
}

// Invalidate drops the snapshot; the next lookup loads again.
func (c *Catalog) Invalidate() {
	c.current.Store(nil)
}

func (c *Catalog) snapshot(ctx context.Context) (*snapshot, error) {
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}
	if err := c.reloadLocked(ctx); err != nil {
		return nil, err
	}
	return c.current.Load(), nil
}

func (c *Catalog) ContentTypeByID(ctx context.Context, id string) (*records.ContentType, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ct, ok := snap.byID[id]
	if !ok {
		return nil, records.ErrContentTypeNotFound
	}
	return ct, nil
}

// ContentTypeByVariable matches variables case-insensitively.
func (c *Catalog) ContentTypeByVariable(ctx context.Context, variable string) (*records.ContentType, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ct, ok := snap.byVariable[strings.ToLower(variable)]
	if !ok {
		return nil, records.ErrContentTypeNotFound
	}
	return ct, nil
}

func (c *Catalog) RelationshipsByContentType(ctx context.Context, ct *records.ContentType) ([]records.Relationship, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]records.Relationship(nil), snap.relationships[ct.ID]...), nil
}

// ContentTypes returns every type sorted by variable.
func (c *Catalog) ContentTypes(ctx context.Context) ([]*records.ContentType, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]*records.ContentType(nil), snap.types...), nil
}

// buildSnapshot validates types and indexes their relationships by both
// parent and child. Relationship ends may name a type by id or variable.
func buildSnapshot(types []*records.ContentType) (*snapshot, error) {
	snap := &snapshot{
		byID:          make(map[string]*records.ContentType),
		byVariable:    make(map[string]*records.ContentType),
		relationships: make(map[string][]records.Relationship),
	}
	for _, ct := range types {
		if ct == nil || ct.ID == "" || ct.Variable == "" {
			return nil, fmt.Errorf("content type requires id and variable")
		}
		if _, dup := snap.byID[ct.ID]; dup {
			return nil, fmt.Errorf("duplicate content type id %s", ct.ID)
		}
		key := strings.ToLower(ct.Variable)
		if _, dup := snap.byVariable[key]; dup {
			return nil, fmt.Errorf("duplicate content type variable %s", ct.Variable)
		}
		seen := make(map[string]bool)
		for _, f := range ct.Fields {
			if f.Variable == "" || seen[f.Variable] {
				return nil, fmt.Errorf("content type %s: missing or duplicate field variable %q", ct.Variable, f.Variable)
			}
			seen[f.Variable] = true
			if !f.Kind.Valid() {
				return nil, fmt.Errorf("content type %s: field %s: %w", ct.Variable, f.Variable, fieldvalue.ErrUnknownKind)
			}
		}
		snap.byID[ct.ID] = ct
		snap.byVariable[key] = ct
		snap.types = append(snap.types, ct)
	}
	sort.Slice(snap.types, func(i, j int) bool { return snap.types[i].Variable < snap.types[j].Variable })

	resolve := func(ref string) (string, bool) {
		if _, ok := snap.byID[ref]; ok {
			return ref, true
		}
		if ct, ok := snap.byVariable[strings.ToLower(ref)]; ok {
			return ct.ID, true
		}
		return "", false
	}

	indexed := make(map[string]bool)
	for _, ct := range snap.types {
		for _, rel := range ct.Relationships {
			if rel.ID == "" || indexed[rel.ID] {
				continue
			}
			parent, ok := resolve(rel.ParentTypeID)
			if !ok {
				return nil, fmt.Errorf("relationship %s: unknown parent type %s", rel.ID, rel.ParentTypeID)
			}
			child, ok := resolve(rel.ChildTypeID)
			if !ok {
				return nil, fmt.Errorf("relationship %s: unknown child type %s", rel.ID, rel.ChildTypeID)
			}
			rel.ParentTypeID, rel.ChildTypeID = parent, child
			indexed[rel.ID] = true

			snap.relationships[parent] = append(snap.relationships[parent], rel)
			if child != parent {
				snap.relationships[child] = append(snap.relationships[child], rel)
			}
		}
	}
	return snap, nil
}
