package services

import (
	"errors"
	"fmt"
)

// ValidationError is returned when a request is malformed or refers to
// something that does not exist, such as an unknown member
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError is returned when the shift a request acts on does not exist
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// ConflictError is returned when the store holds a different shift for the
// date than the caller last saw
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// PersistenceError wraps any other store failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Error kinds reported by ErrorKind
const (
	KindValidation  = "validation"
	KindNotFound    = "not_found"
	KindConflict    = "conflict"
	KindPersistence = "persistence"
)

// ErrorKind classifies err as one of the Kind constants. Errors that are not
// one of this package's types are reported as persistence failures.
func ErrorKind(err error) string {
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var conflictErr *ConflictError
	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &notFoundErr):
		return KindNotFound
	case errors.As(err, &conflictErr):
		return KindConflict
	default:
		return KindPersistence
	}
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
