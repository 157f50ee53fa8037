package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ErrorKind classifies domain errors so the transport layer can map them to responses.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindInvalidState  ErrorKind = "INVALID_STATE"
	KindForbidden     ErrorKind = "FORBIDDEN"
	KindUnauthorized  ErrorKind = "UNAUTHORIZED"
	KindConflict      ErrorKind = "CONFLICT"
	KindValidation    ErrorKind = "VALIDATION"
	KindInternalError ErrorKind = "INTERNAL"
)

// DomainError is a sentinel error carrying its ErrorKind.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (err *DomainError) Error() string {
	return err.Message
}

func NewNotFoundError(msg string) error {
	return &DomainError{Kind: KindNotFound, Message: msg}
}

func NewInvalidStateError(msg string) error {
	return &DomainError{Kind: KindInvalidState, Message: msg}
}

func NewForbiddenError(msg string) error {
	return &DomainError{Kind: KindForbidden, Message: msg}
}

func NewConflictError(msg string) error {
	return &DomainError{Kind: KindConflict, Message: msg}
}

// KindOf returns the ErrorKind of err's cause, or KindInternalError.
func KindOf(err error) ErrorKind {
	if dErr, ok := errors.Cause(err).(*DomainError); ok {
		return dErr.Kind
	}
	return KindInternalError
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
