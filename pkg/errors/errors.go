// Package errors provides the sentinel errors and failure kinds shared across auditfwd.
package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = stderrors.New("not found")

	// ErrClosed indicates the resource has been closed.
	ErrClosed = stderrors.New("closed")

	// ErrInvalidInput indicates the input is invalid.
	ErrInvalidInput = stderrors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = stderrors.New("timeout")
)

// Failure kinds. Every error crossing a component boundary matches exactly one
// of these with errors.Is.
var (
	// ErrConnection indicates the journal backend is unreachable or refused the login.
	ErrConnection = stderrors.New("connection error")

	// ErrQuery indicates the journal query was malformed or failed on the backend.
	ErrQuery = stderrors.New("query error")

	// ErrDelivery indicates the sink transport failed while forwarding a batch.
	ErrDelivery = stderrors.New("delivery error")

	// ErrPersistence indicates a cursor could not be loaded or saved.
	ErrPersistence = stderrors.New("persistence error")

	// ErrConfiguration indicates missing or invalid settings.
	ErrConfiguration = stderrors.New("configuration error")
)

// Error is a classified failure for one host and operation.
type Error struct {
	Kind error
	Host string
	Op   string
	Err  error
}

// New wraps err with a kind, the host it happened on, and the operation.
func New(kind error, host, op string, err error) *Error {
	return &Error{Kind: kind, Host: host, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Host != "" {
		msg = e.Host + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

var kinds = []error{ErrConnection, ErrQuery, ErrDelivery, ErrPersistence, ErrConfiguration}

// KindOf returns the failure kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if stderrors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName returns a short label for err's kind, suitable for metrics.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrConnection:
		return "connection"
	case ErrQuery:
		return "query"
	case ErrDelivery:
		return "delivery"
	case ErrPersistence:
		return "persistence"
	case ErrConfiguration:
		return "configuration"
	default:
		return "other"
	}
}
