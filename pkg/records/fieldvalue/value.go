package fieldvalue

import (
	"maps"
	"slices"
)

// Value is the immutable, serialization-ready value of one field.
type Value interface {
	// Kind is the type discriminator.
	Kind() Kind
	// DataType is only meaningful for Generic values.
	DataType() DataType
	// Raw returns the primary value.
	Raw() any
	// Hydrated returns a copy of the derived attributes.
	Hydrated() map[string]any
	// WithHydrated returns a copy of the value carrying attrs.
	WithHydrated(attrs map[string]any) Value
}

// Typed is a Value whose primary value has the Go type T.
type Typed[T any] struct {
	kind     Kind
	dataType DataType
	primary  T
	hydrated map[string]any
}

// New builds a Typed value with no hydrated attributes.
func New[T any](kind Kind, dataType DataType, primary T) Typed[T] {
	return Typed[T]{kind: kind, dataType: dataType, primary: primary}
}

func (v Typed[T]) Kind() Kind         { return v.kind }
func (v Typed[T]) DataType() DataType { return v.dataType }

// Primary returns the primary value. Slices are copied.
func (v Typed[T]) Primary() T {
	if s, ok := any(v.primary).([]string); ok {
		return any(slices.Clone(s)).(T)
	}
	return v.primary
}

func (v Typed[T]) Raw() any { return v.Primary() }

func (v Typed[T]) Hydrated() map[string]any {
	if len(v.hydrated) == 0 {
		return map[string]any{}
	}
	return maps.Clone(v.hydrated)
}

// Attribute returns a single hydrated attribute.
func (v Typed[T]) Attribute(name string) (any, bool) {
	a, ok := v.hydrated[name]
	return a, ok
}

func (v Typed[T]) WithHydrated(attrs map[string]any) Value {
	out := v
	out.hydrated = maps.Clone(attrs)
	return out
}

// String returns the primary value of v if it is a string value.
func String(v Value) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.Raw().(string)
	return s, ok
}

// Tokens returns the primary value of a Category value.
func Tokens(v Value) ([]string, bool) {
	if v == nil {
		return nil, false
	}
	t, ok := v.Raw().([]string)
	return t, ok
}

// IsZero reports whether the primary value of v is empty.
func IsZero(v Value) bool {
	if v == nil {
		return true
	}
	switch p := v.Raw().(type) {
	case string:
		return p == ""
	case []string:
		return len(p) == 0
	case nil:
		return true
	}
	return false
}
