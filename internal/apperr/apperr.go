// Package apperr defines the error kinds shared by the pipeline components.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so batch drivers can decide whether to continue
type Kind string

const (
	KindStorage         Kind = "storage"
	KindExternalService Kind = "external_service"
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
)

// Error is a classified failure raised by a component operation
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Storage wraps a persistence failure
func Storage(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// External wraps an embedding or judge service failure
func External(op string, err error) error {
	return &Error{Kind: KindExternalService, Op: op, Err: err}
}

// NotFound reports a missing record
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

// Validation reports input rejected before any mutation
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first classified error in the chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
