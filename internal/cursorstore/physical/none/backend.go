// Package none provides the cursorstore backend used when persistence is
// disabled. Every restart is a full resync.
package none

import (
	"context"

	"github.com/gezibash/auditfwd/internal/cursorstore/physical"
)

func init() {
	physical.Register("none", NewFactory, nil)
}

// NewFactory returns a backend that stores nothing.
func NewFactory(context.Context, map[string]string) (physical.Backend, error) {
	return Backend{}, nil
}

// Backend discards writes and reports every key as missing.
type Backend struct{}

func (Backend) Get(context.Context, string) ([]byte, error) { return nil, physical.ErrNotFound }
func (Backend) Put(context.Context, string, []byte) error   { return nil }
func (Backend) Delete(context.Context, string) error        { return nil }
func (Backend) List(context.Context) ([]string, error)      { return nil, nil }
func (Backend) Close() error                                { return nil }
