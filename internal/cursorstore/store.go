// Package cursorstore persists one cursor per monitored journal so a restart
// resumes where the last fully delivered batch ended.
package cursorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gezibash/auditfwd/internal/cursorstore/physical"
	"github.com/gezibash/auditfwd/internal/observability"
	"github.com/gezibash/auditfwd/pkg/cursor"
	auditerrors "github.com/gezibash/auditfwd/pkg/errors"
	"github.com/gezibash/auditfwd/pkg/logging"
)

// BackendNone is the backend name that disables persistence.
const BackendNone = "none"

// Key returns the state key for one journal on one host.
func Key(host, library, journal string) string {
	return strings.Join([]string{host, library, journal}, "/")
}

// Store encodes cursors onto a physical backend.
type Store struct {
	backend physical.Backend
	name    string
	log     *logging.Logger
}

// New wraps an open backend.
func New(backend physical.Backend, name string, log *logging.Logger) *Store {
	if log == nil {
		log = logging.New(nil)
	}
	return &Store{backend: backend, name: name, log: log.WithComponent("cursorstore")}
}

// Open builds the named backend from the registry and wraps it.
func Open(ctx context.Context, name string, config map[string]string, metrics *observability.Metrics, log *logging.Logger) (*Store, error) {
	if name == "" {
		name = "file"
	}
	backend, err := physical.New(ctx, name, config, metrics)
	if err != nil {
		return nil, auditerrors.New(auditerrors.ErrConfiguration, "", "open cursorstore", err)
	}
	s := New(backend, name, log)
	s.log.InfoContext(ctx, "cursor store opened", "backend", name)
	return s, nil
}

// Backend returns the name of the backend in use.
func (s *Store) Backend() string {
	return s.name
}

// Enabled reports whether cursors survive a restart.
func (s *Store) Enabled() bool {
	return s.name != BackendNone
}

// Load returns the stored cursor for key. Any failure (missing, malformed or
// unreachable state) is logged and reported as absent, which means a full
// resync.
func (s *Store) Load(ctx context.Context, key string) (cursor.Cursor, bool) {
	c, err := s.Get(ctx, key)
	switch {
	case err == nil:
		return c, true
	case errors.Is(err, auditerrors.ErrNotFound):
		s.log.InfoContext(ctx, "no saved cursor, starting from the beginning", "key", key)
	default:
		s.log.WarnContext(ctx, "cannot load cursor, starting from the beginning", "key", key, "error", err)
	}
	return cursor.Cursor{}, false
}

// Get returns the stored cursor for key. A missing key matches
// errors.ErrNotFound; anything else matches errors.ErrPersistence.
func (s *Store) Get(ctx context.Context, key string) (cursor.Cursor, error) {
	data, err := s.backend.Get(ctx, key)
	if errors.Is(err, physical.ErrNotFound) {
		return cursor.Cursor{}, fmt.Errorf("cursor %s: %w", key, auditerrors.ErrNotFound)
	}
	if err != nil {
		return cursor.Cursor{}, auditerrors.New(auditerrors.ErrPersistence, "", "load", err)
	}
	c, err := cursor.Decode(data)
	if err != nil {
		return cursor.Cursor{}, auditerrors.New(auditerrors.ErrPersistence, "", "load", fmt.Errorf("%s: %w", key, err))
	}
	return c, nil
}

// Save stores c under key.
func (s *Store) Save(ctx context.Context, key string, c cursor.Cursor) error {
	data, err := cursor.Encode(c)
	if err != nil {
		return auditerrors.New(auditerrors.ErrPersistence, "", "save", err)
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		return auditerrors.New(auditerrors.ErrPersistence, "", "save", err)
	}
	return nil
}

// Delete forgets the cursor for key; the next run resyncs that journal.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return auditerrors.New(auditerrors.ErrPersistence, "", "delete", err)
	}
	return nil
}

// Record is one stored cursor as reported by List. Err is set when the stored
// value cannot be decoded.
type Record struct {
	Key    string
	Cursor cursor.Cursor
	Err    error
}

// List returns every stored cursor in key order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	keys, err := s.backend.List(ctx)
	if err != nil {
		return nil, auditerrors.New(auditerrors.ErrPersistence, "", "list", err)
	}
	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		c, err := s.Get(ctx, k)
		records = append(records, Record{Key: k, Cursor: c, Err: err})
	}
	return records, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
