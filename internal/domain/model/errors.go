package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds shared by the domain packages.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// FieldError reports invalid input and names the offending field.
type FieldError struct {
	Field  string
	Reason string
}

// InvalidField builds a FieldError.
func InvalidField(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidInput) hold for every FieldError.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NotFound wraps ErrNotFound with the kind and id that were looked up.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
