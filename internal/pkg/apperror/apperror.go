// Package apperror classifies failures so transports can map them to
// responses without inspecting driver or client errors.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an error.
type Kind string

const (
	KindInternal           Kind = "internal"
	KindNotFound           Kind = "not_found"
	KindInvalidRequest     Kind = "invalid_request"
	KindConflict           Kind = "conflict"
	KindGatewayUnavailable Kind = "gateway_unavailable"
	KindGatewayFailure     Kind = "gateway_failure"
	KindStorageFailure     Kind = "storage_failure"
)

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error of the given kind.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(kind Kind, op string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func NotFound(op, format string, args ...interface{}) *Error {
	return New(KindNotFound, op, format, args...)
}

func InvalidRequest(op, format string, args ...interface{}) *Error {
	return New(KindInvalidRequest, op, format, args...)
}

func Conflict(op, format string, args ...interface{}) *Error {
	return New(KindConflict, op, format, args...)
}

func GatewayUnavailable(op, format string, args ...interface{}) *Error {
	return New(KindGatewayUnavailable, op, format, args...)
}

func GatewayFailure(op string, err error) error {
	return Wrap(KindGatewayFailure, op, err, "ml gateway call failed")
}

func StorageFailure(op string, err error) error {
	return Wrap(KindStorageFailure, op, err, "storage operation failed")
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
