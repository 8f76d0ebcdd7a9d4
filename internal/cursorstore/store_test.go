package cursorstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gezibash/auditfwd/internal/cursorstore/physical"
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/file"
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/memory"
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/none"
	"github.com/gezibash/auditfwd/pkg/cursor"
	auditerrors "github.com/gezibash/auditfwd/pkg/errors"
	"github.com/gezibash/auditfwd/pkg/logging"
)

func newTestStore(t *testing.T, backend string, config map[string]string) *Store {
	t.Helper()
	s, err := Open(context.Background(), backend, config, nil, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKey(t *testing.T) {
	if got := Key("pub400.com", "QSYS", "QAUDJRN"); got != "pub400.com/QSYS/QAUDJRN" {
		t.Errorf("Key = %q", got)
	}
}

func TestSaveLoad(t *testing.T) {
	s := newTestStore(t, "memory", nil)
	ctx := context.Background()
	key := Key("h1", "QSYS", "QAUDJRN")

	if _, ok := s.Load(ctx, key); ok {
		t.Fatal("Load on empty store reported a cursor")
	}
	if err := s.Save(ctx, key, cursor.New("QAUDJRN0002", 17)); err != nil {
		t.Fatal(err)
	}
	got, ok := s.Load(ctx, key)
	if !ok || got != cursor.New("QAUDJRN0002", 17) {
		t.Errorf("Load = %s, %v", got, ok)
	}
}

func TestSaveRejectsAbsentCursor(t *testing.T) {
	s := newTestStore(t, "memory", nil)
	err := s.Save(context.Background(), "h/L/J", cursor.Cursor{})
	if !errors.Is(err, auditerrors.ErrPersistence) {
		t.Errorf("err = %v, want persistence error", err)
	}
}

type brokenBackend struct{ physical.Backend }

func (brokenBackend) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk on fire") }
func (brokenBackend) Put(context.Context, string, []byte) error   { return errors.New("disk on fire") }

func TestLoadFailuresAreAbsent(t *testing.T) {
	ctx := context.Background()

	s := newTestStore(t, "file", map[string]string{"path": t.TempDir()})
	if err := s.backend.Put(ctx, "h/L/J", []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if c, ok := s.Load(ctx, "h/L/J"); ok || !c.IsZero() {
		t.Errorf("malformed state loaded as %s", c)
	}
	if _, err := s.Get(ctx, "h/L/J"); !errors.Is(err, auditerrors.ErrPersistence) {
		t.Errorf("Get malformed: err = %v", err)
	}

	broken := New(brokenBackend{}, "broken", logging.Discard())
	if _, ok := broken.Load(ctx, "h/L/J"); ok {
		t.Error("backend failure loaded as a cursor")
	}
	if err := broken.Save(ctx, "h/L/J", cursor.New("R", 1)); !errors.Is(err, auditerrors.ErrPersistence) {
		t.Errorf("Save: err = %v", err)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := newTestStore(t, "memory", nil)
	if _, err := s.Get(context.Background(), "h/L/J"); !errors.Is(err, auditerrors.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t, "file", map[string]string{"path": t.TempDir()})
	ctx := context.Background()

	_ = s.Save(ctx, Key("b", "QSYS", "QAUDJRN"), cursor.New("R1", 2))
	_ = s.Save(ctx, Key("a", "QSYS", "QAUDJRN"), cursor.New("R1", 1))
	_ = s.backend.Put(ctx, Key("c", "QSYS", "QAUDJRN"), []byte("garbage"))

	records, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[0].Key != "a/QSYS/QAUDJRN" || records[0].Cursor != cursor.New("R1", 1) {
		t.Fatalf("records = %+v", records)
	}
	if records[2].Err == nil {
		t.Error("expected decode error for garbage record")
	}

	if err := s.Delete(ctx, Key("a", "QSYS", "QAUDJRN")); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Load(ctx, Key("a", "QSYS", "QAUDJRN")); ok {
		t.Error("cursor survived delete")
	}
}

func TestLegacyStateMigration(t *testing.T) {
	s := newTestStore(t, "file", map[string]string{"path": t.TempDir()})
	ctx := context.Background()
	_ = s.backend.Put(ctx, "h/QSYS/QAUDJRN", []byte(`{"last_receiver_name": "QAUDJRN0009", "last_sequence_number": 88}`))

	got, ok := s.Load(ctx, "h/QSYS/QAUDJRN")
	if !ok || got != cursor.New("QAUDJRN0009", 88) {
		t.Errorf("Load legacy = %s, %v", got, ok)
	}
}

func TestNoneBackend(t *testing.T) {
	s := newTestStore(t, BackendNone, nil)
	ctx := context.Background()
	if s.Enabled() {
		t.Error("none backend reports enabled")
	}
	if err := s.Save(ctx, "h/L/J", cursor.New("R", 1)); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Load(ctx, "h/L/J"); ok {
		t.Error("none backend remembered a cursor")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "floppy", nil, nil, nil)
	if !errors.Is(err, auditerrors.ErrConfiguration) {
		t.Errorf("err = %v", err)
	}
}

func TestOpenLogsThroughGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(slog.New(slog.NewJSONHandler(&buf, nil)))

	s, err := Open(context.Background(), "memory", nil, nil, log)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	out := buf.String()
	if !strings.Contains(out, `"msg":"cursor store opened"`) || !strings.Contains(out, `"backend":"memory"`) {
		t.Errorf("log output = %s", out)
	}
	if !strings.Contains(out, `"component":"cursorstore"`) {
		t.Errorf("missing component attribute: %s", out)
	}
}
