package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConnection
	KindIO
	KindGuard
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConnection:
		return "connection"
	case KindIO:
		return "io"
	case KindGuard:
		return "guard"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error is the failure type returned by the services. Message is safe to show
// to a user; Err carries the underlying cause, if any.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not a service error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the text shown to API clients for err.
func UserMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		if se.Kind == KindIO || se.Kind == KindConnection || se.Kind == KindInternal {
			if se.Err != nil {
				return se.Message + ": " + se.Err.Error()
			}
		}
		return se.Message
	}
	return err.Error()
}
