package model

import (
	"errors"
	"fmt"
)

var (
	// ErrElementNotFound is returned by browser lookups that time out.
	ErrElementNotFound = errors.New("element not found")
	// ErrUnparseable marks a model response that does not fit the field type.
	ErrUnparseable = errors.New("unparseable model response")
)

// FieldError records why a derived field could not be resolved.
type FieldError struct {
	Field string
	Link  JobLink
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s for %s: %v", e.Field, e.Link, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
