// Package memory provides an in-process cursorstore backend. State is lost
// when the process exits.
package memory

import (
	"context"
	"maps"

	"github.com/gezibash/auditfwd/internal/cursorstore/physical"
	"github.com/gezibash/auditfwd/internal/cursorstore/physical/badger"
)

func init() {
	physical.Register("memory", NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory backend.
func Defaults() map[string]string {
	return map[string]string{
		badger.KeyInMemory: "true",
	}
}

// NewFactory creates a backend using BadgerDB's in-memory mode.
func NewFactory(ctx context.Context, config map[string]string) (physical.Backend, error) {
	cfg := maps.Clone(config)
	if cfg == nil {
		cfg = make(map[string]string, 1)
	}
	cfg[badger.KeyInMemory] = "true"
	return badger.NewFactory(ctx, cfg)
}
