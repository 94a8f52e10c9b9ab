package records

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrNotFound is returned by reference stores when a key has no entry
	ErrNotFound = errors.New("not found")

	// ErrContentTypeNotFound is returned by a SchemaCatalog when a type is unknown
	ErrContentTypeNotFound = errors.New("content type not found")

	// ErrRecordNotFound indicates no stored record matches
	ErrRecordNotFound = errors.New("record not found")
)

// SchemaResolutionError indicates no content type could be determined for a
// non-empty field map.
type SchemaResolutionError struct {
	Tried []string
}

func (e *SchemaResolutionError) Error() string {
	if len(e.Tried) == 0 {
		return "no content type could be resolved"
	}
	return fmt.Sprintf("no content type could be resolved (tried %v)", e.Tried)
}

func (e *SchemaResolutionError) Is(target error) bool {
	return target == ErrContentTypeNotFound
}

// ReferenceResolutionError is raised by strict reference fields (file and
// image) when any step of the lookup misses.
type ReferenceResolutionError struct {
	Field     string
	Reference string
	Err       error
}

func (e *ReferenceResolutionError) Error() string {
	return fmt.Sprintf("asset %s for field %s not found: %v", e.Reference, e.Field, e.Err)
}

func (e *ReferenceResolutionError) Unwrap() error {
	return e.Err
}

// UnresolvedCategoryError is returned when a token matches no category by
// id, key or variable.
type UnresolvedCategoryError struct {
	Token string
}

func (e *UnresolvedCategoryError) Error() string {
	return fmt.Sprintf("unable to resolve %q as a category id, key or variable", e.Token)
}

// PopulateError wraps failures of Builder.Populate.
type PopulateError struct {
	Op  string
	Key string
	Err error
}

func (e *PopulateError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("populate %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("populate %s failed for %s: %v", e.Op, e.Key, e.Err)
}

func (e *PopulateError) Unwrap() error {
	return e.Err
}
