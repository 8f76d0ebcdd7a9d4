package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ShutdownCoordinator runs registered close handlers in LIFO order, so
// components built last (sinks, stores) are released before the tracer and
// metrics server they report to.
type ShutdownCoordinator struct {
	// Logger reports handler failures. Nil discards them.
	Logger *slog.Logger

	mu       sync.Mutex
	handlers []namedHandler
}

type namedHandler struct {
	name string
	fn   func(context.Context) error
}

// Register adds a shutdown handler.
func (s *ShutdownCoordinator) Register(name string, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, namedHandler{name: name, fn: fn})
}

// RegisterCloser adds a handler for anything with a plain Close method.
func (s *ShutdownCoordinator) RegisterCloser(name string, c interface{ Close() error }) {
	s.Register(name, func(context.Context) error { return c.Close() })
}

// Shutdown runs every handler in reverse registration order and joins their
// errors. Handlers are dropped once run.
func (s *ShutdownCoordinator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	log := s.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		log.DebugContext(ctx, "shutting down", "component", h.name)
		if err := h.fn(ctx); err != nil {
			log.ErrorContext(ctx, "shutdown error", "component", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}
