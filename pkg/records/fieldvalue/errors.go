package fieldvalue

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind indicates a kind outside the closed set
	ErrUnknownKind = errors.New("unknown field kind")

	// ErrUnsupportedInput indicates an input shape the field kind does not accept
	ErrUnsupportedInput = errors.New("unsupported input")
)

// DecodeError is returned when a raw value cannot be decoded for a field.
type DecodeError struct {
	Kind  Kind
	Field string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s field %s: %v", e.Kind, e.Field, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
