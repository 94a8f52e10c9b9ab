package fieldvalue

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Resolver names referenced by hydration rules.
const (
	ResolverMetadata = "metadata"
	ResolverLink     = "link"
)

// Resolver computes one hydrated attribute. attrs holds the attributes
// already computed for the value, in rule order.
type Resolver interface {
	Resolve(ctx context.Context, primary any, attrs map[string]any) (any, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, primary any, attrs map[string]any) (any, error)

func (f ResolverFunc) Resolve(ctx context.Context, primary any, attrs map[string]any) (any, error) {
	return f(ctx, primary, attrs)
}

// Rule binds a hydrated attribute to the resolver that computes it.
type Rule struct {
	Attribute string
	Resolver  string
}

type kindSpec struct {
	decode func(f Field, raw any) (Value, error)
	rules  []Rule
}

var referenceRules = []Rule{
	{Attribute: "metadata", Resolver: ResolverMetadata},
	{Attribute: "link", Resolver: ResolverLink},
}

var kinds = map[Kind]kindSpec{
	KindText:         {decode: decodeString},
	KindTextArea:     {decode: decodeString},
	KindImage:        {decode: decodeReference, rules: referenceRules},
	KindFile:         {decode: decodeReference, rules: referenceRules},
	KindCategory:     {decode: decodeCategory},
	KindHostFolder:   {decode: decodeReference},
	KindRelationship: {decode: decodeRelationship},
	KindGeneric:      {decode: decodeGeneric},
}

// Rules returns the hydration rules declared for k.
func Rules(k Kind) []Rule {
	return append([]Rule(nil), kinds[k].rules...)
}

// Codec decodes raw input into typed values and hydrates them.
type Codec struct {
	resolvers map[string]Resolver
	logger    *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithResolver registers the resolver used by rules naming name.
func WithResolver(name string, r Resolver) Option {
	return func(c *Codec) {
		c.resolvers[name] = r
	}
}

// WithLogger sets the logger used for hydration failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

// NewCodec creates a codec. Without resolvers, Hydrate is a no-op.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{resolvers: make(map[string]Resolver)}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Decode converts raw into the typed value for f. A Value input is decoded
// from its primary value.
func (c *Codec) Decode(f Field, raw any) (Value, error) {
	spec, ok := kinds[f.Kind]
	if !ok {
		return nil, &DecodeError{Kind: f.Kind, Field: f.Variable, Cause: ErrUnknownKind}
	}
	if v, ok := raw.(Value); ok {
		raw = v.Raw()
	}
	v, err := spec.decode(f, raw)
	if err != nil {
		return nil, &DecodeError{Kind: f.Kind, Field: f.Variable, Cause: err}
	}
	return v, nil
}

// Encode returns a raw value that Decode maps back onto v. Category tokens
// are joined with commas so the result fits a single column.
func (c *Codec) Encode(v Value) any {
	if v == nil {
		return nil
	}
	switch p := v.Raw().(type) {
	case []string:
		return strings.Join(p, ",")
	case time.Time:
		if p.IsZero() {
			return nil
		}
		return p
	default:
		return p
	}
}

// Hydrate recomputes the derived attributes of v from its primary value.
// Resolver failures drop the attribute.
func (c *Codec) Hydrate(ctx context.Context, v Value) Value {
	if v == nil {
		return nil
	}
	rules := kinds[v.Kind()].rules
	if len(rules) == 0 || IsZero(v) {
		return v
	}
	attrs := make(map[string]any, len(rules))
	for _, rule := range rules {
		r, ok := c.resolvers[rule.Resolver]
		if !ok {
			continue
		}
		out, err := r.Resolve(ctx, v.Raw(), attrs)
		if err != nil {
			c.logger.Warn("hydration failed",
				"kind", v.Kind(), "attribute", rule.Attribute, "err", err)
			continue
		}
		if out != nil {
			attrs[rule.Attribute] = out
		}
	}
	return v.WithHydrated(attrs)
}
