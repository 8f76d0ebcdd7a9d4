// Package backendtest holds the behaviour every cursorstore backend must show.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/gezibash/auditfwd/internal/cursorstore/physical"
)

// Run exercises a fresh backend from newBackend against the shared contract.
// newBackend must register its own cleanup.
func Run(t *testing.T, newBackend func(t *testing.T) physical.Backend) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		be := newBackend(t)
		if _, err := be.Get(context.Background(), "pub400/QSYS/QAUDJRN"); !errors.Is(err, physical.ErrNotFound) {
			t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("put get overwrite", func(t *testing.T) {
		be := newBackend(t)
		ctx := context.Background()
		key := "pub400/QSYS/QAUDJRN"

		if err := be.Put(ctx, key, []byte(`{"v":1}`)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := be.Put(ctx, key, []byte(`{"v":2}`)); err != nil {
			t.Fatalf("Put overwrite: %v", err)
		}
		got, err := be.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != `{"v":2}` {
			t.Errorf("Get = %s, want overwritten value", got)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		be := newBackend(t)
		ctx := context.Background()
		keys := []string{"a/QSYS/QAUDJRN", "a/QSYS/QAUDJRN2", "b/QSYS/QAUDJRN", "a b/lib/j#1"}
		for i, k := range keys {
			if err := be.Put(ctx, k, []byte(fmt.Sprint(i))); err != nil {
				t.Fatalf("Put %s: %v", k, err)
			}
		}
		for i, k := range keys {
			got, err := be.Get(ctx, k)
			if err != nil || string(got) != fmt.Sprint(i) {
				t.Errorf("Get %s = %s, %v", k, got, err)
			}
		}
	})

	t.Run("list sorted", func(t *testing.T) {
		be := newBackend(t)
		ctx := context.Background()
		for _, k := range []string{"c/L/J", "a/L/J", "b/L/J"} {
			if err := be.Put(ctx, k, []byte("x")); err != nil {
				t.Fatal(err)
			}
		}
		keys, err := be.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if !slices.Equal(keys, []string{"a/L/J", "b/L/J", "c/L/J"}) {
			t.Errorf("List = %v", keys)
		}
	})

	t.Run("delete", func(t *testing.T) {
		be := newBackend(t)
		ctx := context.Background()
		if err := be.Put(ctx, "h/L/J", []byte("x")); err != nil {
			t.Fatal(err)
		}
		if err := be.Delete(ctx, "h/L/J"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := be.Get(ctx, "h/L/J"); !errors.Is(err, physical.ErrNotFound) {
			t.Errorf("Get after delete: err = %v", err)
		}
		if err := be.Delete(ctx, "h/L/J"); err != nil {
			t.Errorf("second Delete: %v", err)
		}
		keys, err := be.List(ctx)
		if err != nil || len(keys) != 0 {
			t.Errorf("List after delete = %v, %v", keys, err)
		}
	})

	t.Run("concurrent hosts", func(t *testing.T) {
		be := newBackend(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for h := range 8 {
			wg.Go(func() {
				key := fmt.Sprintf("host%d/QSYS/QAUDJRN", h)
				for i := range 20 {
					if err := be.Put(ctx, key, []byte(fmt.Sprint(i))); err != nil {
						t.Errorf("Put %s: %v", key, err)
						return
					}
				}
			})
		}
		wg.Wait()
		for h := range 8 {
			got, err := be.Get(ctx, fmt.Sprintf("host%d/QSYS/QAUDJRN", h))
			if err != nil || string(got) != "19" {
				t.Errorf("host%d = %s, %v", h, got, err)
			}
		}
	})

	t.Run("closed", func(t *testing.T) {
		be := newBackend(t)
		if err := be.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := be.Put(context.Background(), "k/L/J", []byte("x")); !errors.Is(err, physical.ErrClosed) {
			t.Errorf("Put after close: err = %v, want ErrClosed", err)
		}
	})
}
