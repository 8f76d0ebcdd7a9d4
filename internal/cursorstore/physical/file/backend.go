// Package file provides a cursorstore backend keeping one JSON document per
// key in a directory.
package file

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gezibash/auditfwd/internal/cursorstore/physical"
	"github.com/gezibash/auditfwd/internal/storage"
)

const (
	KeyPath            = "path"
	KeyDirPermissions  = "dir_permissions"
	KeyFilePermissions = "file_permissions"
	// KeyLegacyFile names a state file written by the previous monitor. It is
	// read for KeyLegacyKey until a cursor has been saved for that key.
	KeyLegacyFile = "legacy_file"
	KeyLegacyKey  = "legacy_key"
)

const ext = ".json"

func init() {
	physical.Register("file", NewFactory, Defaults)
}

// Defaults returns the default configuration for the file backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:            "~/.auditfwd/state",
		KeyDirPermissions:  "0700",
		KeyFilePermissions: "0600",
	}
}

// NewFactory creates a file backend from a configuration map.
func NewFactory(_ context.Context, config map[string]string) (physical.Backend, error) {
	path := storage.GetString(config, KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("file", KeyPath, "cannot be empty")
	}
	path = storage.ExpandPath(path)

	dirPerms, err := parseFileMode(config[KeyDirPermissions], 0o700)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("file", KeyDirPermissions, config[KeyDirPermissions], "must be an octal permission string (e.g. 0700)")
	}
	filePerms, err := parseFileMode(config[KeyFilePermissions], 0o600)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("file", KeyFilePermissions, config[KeyFilePermissions], "must be an octal permission string (e.g. 0600)")
	}

	legacyFile := storage.GetString(config, KeyLegacyFile, "")
	legacyKey := storage.GetString(config, KeyLegacyKey, "")
	if (legacyFile == "") != (legacyKey == "") {
		return nil, storage.NewConfigError("file", KeyLegacyKey, "legacy_file and legacy_key must be set together")
	}
	if legacyFile != "" {
		legacyFile = storage.ExpandPath(legacyFile)
	}

	if err := os.MkdirAll(path, dirPerms); err != nil {
		return nil, storage.NewConfigErrorWithCause("file", KeyPath, "failed to create directory", err)
	}

	return &Backend{
		rootPath:   path,
		filePerms:  filePerms,
		legacyFile: legacyFile,
		legacyKey:  legacyKey,
	}, nil
}

func parseFileMode(s string, defaultMode os.FileMode) (os.FileMode, error) {
	if s == "" {
		return defaultMode, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	return os.FileMode(v), nil
}

// Backend is a directory-of-files implementation of physical.Backend.
type Backend struct {
	rootPath   string
	filePerms  os.FileMode
	legacyFile string
	legacyKey  string

	mu     sync.Mutex // guards legacyKey and serializes writes
	closed atomic.Bool
}

// fileName maps a key such as "host/QSYS/QAUDJRN" to a single flat file name.
func fileName(key string) string {
	return url.PathEscape(key) + ext
}

func (b *Backend) path(key string) string {
	return filepath.Join(b.rootPath, fileName(key))
}

// Get reads the document for key.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	data, err := os.ReadFile(b.path(key))
	if os.IsNotExist(err) && b.isLegacy(key) {
		data, err = os.ReadFile(b.legacyFile)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, physical.ErrNotFound
		}
		return nil, fmt.Errorf("file get: %w", err)
	}
	return data, nil
}

// Put writes value through a temp file and an atomic rename, so a crash
// leaves either the old or the new document.
func (b *Backend) Put(_ context.Context, key string, value []byte) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(b.rootPath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("file put: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(value)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	for _, err := range []error{writeErr, syncErr, closeErr} {
		if err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("file put: %w", err)
		}
	}

	if err := os.Chmod(tmpName, b.filePerms); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file put: %w", err)
	}
	if err := os.Rename(tmpName, b.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file put: %w", err)
	}
	return nil
}

// Delete removes the document for key. The legacy file is never touched.
func (b *Backend) Delete(_ context.Context, key string) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file delete: %w", err)
	}
	b.mu.Lock()
	if key == b.legacyKey {
		b.legacyKey = ""
	}
	b.mu.Unlock()
	return nil
}

func (b *Backend) isLegacy(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.legacyKey != "" && key == b.legacyKey
}

// List returns the keys of every document in the directory.
func (b *Backend) List(_ context.Context) ([]string, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	entries, err := os.ReadDir(b.rootPath)
	if err != nil {
		return nil, fmt.Errorf("file list: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// Close marks the backend closed.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}
