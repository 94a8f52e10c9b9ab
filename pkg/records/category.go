package records

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// CategoryResolver turns category tokens into categories, trying the
// category id, then the key, then the variable.
type CategoryResolver struct {
	store  CategoryStore
	logger *slog.Logger
}

// NewCategoryResolver creates a resolver over store. A nil logger uses slog.Default.
func NewCategoryResolver(store CategoryStore, logger *slog.Logger) *CategoryResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryResolver{store: store, logger: logger}
}

// Resolve resolves one token. Only exhausting all three tiers is an error.
func (c *CategoryResolver) Resolve(ctx context.Context, token string, p Principal) (*Category, error) {
	tier := func(name string, find func(context.Context, string, Principal) (*Category, error)) step[*Category] {
		return step[*Category]{name: name, run: func(ctx context.Context) (*Category, error) {
			cat, err := find(ctx, token, p)
			if err != nil {
				return nil, err
			}
			if cat == nil || cat.ID == "" {
				return nil, ErrNotFound
			}
			return cat, nil
		}}
	}

	cat, via, ok := firstOf(ctx, c.logger,
		tier("id", c.store.CategoryByID),
		tier("key", c.store.CategoryByKey),
		tier("variable", c.store.CategoryByVariable),
	)
	if !ok {
		return nil, &UnresolvedCategoryError{Token: token}
	}
	c.logger.Debug("category resolved", "token", token, "via", via, "category", cat.ID)
	return cat, nil
}

// ResolveAll resolves every token independently, in order.
func (c *CategoryResolver) ResolveAll(ctx context.Context, tokens []string, p Principal) ([]Category, error) {
	out := make([]Category, 0, len(tokens))
	for _, token := range tokens {
		cat, err := c.Resolve(ctx, token, p)
		if err != nil {
			return nil, err
		}
		out = append(out, *cat)
	}
	return out, nil
}

// ResolveRecord resolves the category fields of rec. A field holding an
// empty value maps to an empty slice, meaning remove all categories; a
// field without a value has no entry and is left unchanged.
func (c *CategoryResolver) ResolveRecord(ctx context.Context, rec *Record, p Principal) (map[string][]Category, error) {
	ct := rec.ContentType()
	if ct == nil {
		return nil, &SchemaResolutionError{}
	}
	out := make(map[string][]Category)
	for _, f := range ct.Fields {
		if f.Kind != fieldvalue.KindCategory {
			continue
		}
		v, ok := rec.Value(f.Variable)
		if !ok {
			continue
		}
		tokens, _ := fieldvalue.Tokens(v)
		cats, err := c.ResolveAll(ctx, tokens, p)
		if err != nil {
			return nil, err
		}
		out[f.Variable] = cats
	}
	return out, nil
}
