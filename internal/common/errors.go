package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can decide whether to skip a row,
// treat a result as empty, or fail a symbol.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "resource_not_found"
	KindExternalService ErrorKind = "external_service"
	KindInternal        ErrorKind = "internal"
)

// ErrNotFound is returned by stores and sources when nothing matches.
var ErrNotFound = errors.New("not found")

// Error is a classified error carrying the failing operation and symbol.
type Error struct {
	Kind   ErrorKind
	Op     string
	Symbol string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Symbol != "" {
		msg += " [" + e.Symbol + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError wraps err as a validation failure.
func NewValidationError(op, symbol string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Symbol: symbol, Err: err}
}

// NewNotFoundError reports that no upstream or stored data exists.
func NewNotFoundError(op, symbol string, err error) *Error {
	if err == nil {
		err = ErrNotFound
	}
	return &Error{Kind: KindNotFound, Op: op, Symbol: symbol, Err: err}
}

// NewExternalServiceError wraps an upstream failure.
func NewExternalServiceError(op, symbol string, err error) *Error {
	return &Error{Kind: KindExternalService, Op: op, Symbol: symbol, Err: err}
}

// NewInternalError wraps an unexpected defect.
func NewInternalError(op, symbol string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Symbol: symbol, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are internal; ErrNotFound anywhere in the chain is not-found.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// IsNotFound reports whether err means "no data".
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// Errorf is shorthand for a classified error with a formatted cause.
func Errorf(kind ErrorKind, op, symbol, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Symbol: symbol, Err: fmt.Errorf(format, args...)}
}
