// Package physical defines the key/value contract cursor store backends
// implement and the registry that selects one by name.
package physical

import (
	"context"

	"github.com/gezibash/auditfwd/pkg/errors"
)

var (
	// ErrNotFound indicates no state is stored under the key.
	ErrNotFound = errors.ErrNotFound

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.ErrClosed
)

// Backend stores one opaque value per key. Values are encoded cursor states.
// All implementations must be safe for concurrent use; different keys never
// interfere with each other.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns every stored key in ascending order.
	List(ctx context.Context) ([]string, error)
	Close() error
}
