package records

import (
	"context"
	"fmt"
	"strings"
)

// IndexPolicy tells the save path how long to wait for the search index.
type IndexPolicy int

// Index policies.
const (
	// IndexPolicyDefer returns without waiting for the index
	IndexPolicyDefer IndexPolicy = iota
	// IndexPolicyWaitFor returns once the next index refresh includes the record
	IndexPolicyWaitFor
	// IndexPolicyForce forces an index refresh before returning
	IndexPolicyForce
)

var indexPolicyNames = map[IndexPolicy]string{
	IndexPolicyDefer:   "DEFER",
	IndexPolicyWaitFor: "WAIT_FOR",
	IndexPolicyForce:   "FORCE",
}

func (p IndexPolicy) String() string {
	if s, ok := indexPolicyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("IndexPolicy(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p IndexPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *IndexPolicy) UnmarshalText(b []byte) error {
	parsed, err := ParseIndexPolicy(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseIndexPolicy parses an IndexPolicy or its name.
func ParseIndexPolicy(v any) (IndexPolicy, error) {
	switch p := v.(type) {
	case IndexPolicy:
		return p, nil
	case *IndexPolicy:
		if p != nil {
			return *p, nil
		}
	case string:
		name := strings.ToUpper(strings.TrimSpace(p))
		name = strings.ReplaceAll(name, "-", "_")
		for policy, n := range indexPolicyNames {
			if n == name {
				return policy, nil
			}
		}
	}
	return IndexPolicyDefer, fmt.Errorf("invalid index policy %v", v)
}

type indexPolicyParamKey struct{}

// WithIndexPolicyParam carries a request-scoped index policy parameter.
func WithIndexPolicyParam(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, indexPolicyParamKey{}, value)
}

// IndexPolicyParam returns the request-scoped index policy parameter.
func IndexPolicyParam(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(indexPolicyParamKey{}).(string)
	return v, ok && v != ""
}

// RecoverIndexPolicy picks the request parameter, then the map value, then
// def. Unparsable values fall back to def.
func RecoverIndexPolicy(ctx context.Context, fields map[string]any, def IndexPolicy) IndexPolicy {
	var raw any
	if param, ok := IndexPolicyParam(ctx); ok {
		raw = param
	} else if v, ok := fields[KeyIndexPolicy]; ok && v != nil {
		raw = v
	} else {
		return def
	}
	policy, err := ParseIndexPolicy(raw)
	if err != nil {
		return def
	}
	return policy
}
