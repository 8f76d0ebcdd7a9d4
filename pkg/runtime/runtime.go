// Package runtime assembles the process-wide services every auditfwd command
// shares: configuration, the operator logger, observability, the cursor
// store and signal-driven shutdown.
package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gezibash/auditfwd/internal/config"
	"github.com/gezibash/auditfwd/internal/cursorstore"
	"github.com/gezibash/auditfwd/internal/observability"
	"github.com/gezibash/auditfwd/pkg/logging"
)

// DefaultCloseTimeout bounds how long Close waits for shutdown handlers.
const DefaultCloseTimeout = 10 * time.Second

// Builder constructs a Runtime.
type Builder struct {
	name      string
	cfg       config.Config
	logWriter io.Writer
	signals   bool
}

// New starts building a runtime for the named command.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Config sets the loaded configuration.
func (b *Builder) Config(cfg config.Config) *Builder {
	b.cfg = cfg
	return b
}

// LogWriter sets the operator log destination. Defaults to stderr.
func (b *Builder) LogWriter(w io.Writer) *Builder {
	b.logWriter = w
	return b
}

// HandleSignals cancels the runtime context on SIGINT or SIGTERM. A second
// signal exits immediately.
func (b *Builder) HandleSignals(enabled bool) *Builder {
	b.signals = enabled
	return b
}

// Build initializes logging, metrics and tracing.
func (b *Builder) Build(parent context.Context) (*Runtime, error) {
	if b.name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if parent == nil {
		parent = context.Background()
	}

	w := b.logWriter
	if w == nil {
		w = os.Stderr
	}

	o := b.cfg.Observability
	obs, err := observability.New(parent, observability.ObsConfig{
		LogLevel:       o.LogLevel,
		LogFormat:      o.LogFormat,
		OTLPEndpoint:   o.OTLPEndpoint,
		OTLPProtocol:   o.OTLPProtocol,
		ServiceName:    o.ServiceName,
		ServiceVersion: o.ServiceVersion,
	}, w)
	if err != nil {
		return nil, err
	}
	log := logging.New(obs.Logger)

	ctx, cancel := context.WithCancel(parent)
	if b.signals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			select {
			case <-sigCh:
			case <-ctx.Done():
				signal.Stop(sigCh)
				return
			}
			log.Info("shutting down...")
			cancel()
			<-sigCh
			log.Warn("forced shutdown")
			os.Exit(1)
		}()
	}

	return &Runtime{
		name:   b.name,
		cfg:    b.cfg,
		obs:    obs,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Runtime holds the services of one command invocation.
type Runtime struct {
	name   string
	cfg    config.Config
	obs    *observability.Observability
	log    *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc

	storeOnce sync.Once
	store     *cursorstore.Store
	storeErr  error
}

// Name returns the command name.
func (r *Runtime) Name() string { return r.name }

// Config returns the loaded configuration.
func (r *Runtime) Config() config.Config { return r.cfg }

// Log returns the operator logger.
func (r *Runtime) Log() *logging.Logger { return r.log }

// Observability returns the metrics, tracing and shutdown services.
func (r *Runtime) Observability() *observability.Observability { return r.obs }

// Metrics returns the metric set.
func (r *Runtime) Metrics() *observability.Metrics { return r.obs.Metrics }

// Context returns the lifecycle context (cancelled on shutdown).
func (r *Runtime) Context() context.Context { return r.ctx }

// Shutdown triggers graceful shutdown.
func (r *Runtime) Shutdown() { r.cancel() }

// Store opens the configured cursor store on first use and closes it with
// the runtime.
func (r *Runtime) Store() (*cursorstore.Store, error) {
	r.storeOnce.Do(func() {
		st := r.cfg.State
		r.store, r.storeErr = cursorstore.Open(r.ctx, st.Backend, st.Config, r.obs.Metrics, r.log)
		if r.storeErr != nil {
			return
		}
		r.log.Debug("cursor store opened", "backend", r.store.Backend())
		r.OnClose("cursorstore", func(context.Context) error { return r.store.Close() })
	})
	return r.store, r.storeErr
}

// OnClose registers a cleanup function. Handlers run in reverse order.
func (r *Runtime) OnClose(name string, fn func(context.Context) error) {
	r.obs.Shutdown.Register(name, fn)
}

// Close cancels the context and runs every cleanup handler.
func (r *Runtime) Close() error {
	r.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultCloseTimeout)
	defer cancel()
	return r.obs.Close(ctx)
}
