package monitor

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gezibash/auditfwd/internal/config"
	"github.com/gezibash/auditfwd/internal/cursorstore"
	"github.com/gezibash/auditfwd/internal/observability"
	"github.com/gezibash/auditfwd/internal/severity"
	"github.com/gezibash/auditfwd/internal/sink"
	"github.com/gezibash/auditfwd/pkg/errors"
	"github.com/gezibash/auditfwd/pkg/logging"
)

// Restart backoff bounds for a crashed host monitor.
const (
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 30 * time.Second
)

// ErrNoHosts is returned by Run when no host could be started.
var ErrNoHosts = stderrors.New("no runnable hosts")

// Deps are the per-host collaborators built by a Factory. Store may be nil.
type Deps struct {
	Fetcher Fetcher
	Sink    sink.Sink
	Store   Store
}

// Factory builds the collaborators for one host.
type Factory func(ctx context.Context, h config.Host) (Deps, error)

// SupervisorConfig tunes the supervisor. Zero values pick the defaults; a
// zero ShutdownTimeout waits for every host indefinitely.
type SupervisorConfig struct {
	ShutdownTimeout time.Duration
	MinBackoff      time.Duration
	MaxBackoff      time.Duration
}

// Supervisor runs one HostMonitor per configured host.
type Supervisor struct {
	hosts   []config.Host
	factory Factory
	cfg     SupervisorConfig
	log     *logging.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	monitors []*HostMonitor
}

// NewSupervisor creates a supervisor for hosts. metrics may be nil.
func NewSupervisor(hosts []config.Host, factory Factory, cfg SupervisorConfig, log *logging.Logger, metrics *observability.Metrics) *Supervisor {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.MinBackoff)
	}
	if log == nil {
		log = logging.New(nil)
	}
	return &Supervisor{
		hosts:   hosts,
		factory: factory,
		cfg:     cfg,
		log:     log.WithComponent("supervisor"),
		metrics: metrics,
	}
}

// OptionsFor derives monitor options from a host's configuration.
func OptionsFor(h config.Host) (Options, error) {
	rule, err := severity.CompileRule(h.SeverityRule)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Host:         h.Name,
		StoreKey:     cursorstore.Key(h.Host, h.Library, h.Journal),
		PollInterval: h.PollInterval,
		BatchSize:    h.BatchSize,
		QueryTimeout: h.QueryTimeout,
		Rule:         rule,
	}, nil
}

type supervised struct {
	mon  *HostMonitor
	deps Deps
}

// Run builds every host, runs them until ctx is cancelled and returns once
// all of them stopped. Hosts that cannot be built are logged and skipped.
func (s *Supervisor) Run(ctx context.Context) error {
	var running []supervised
	for _, h := range s.hosts {
		m, deps, err := s.build(ctx, h)
		if err != nil {
			err = errors.New(errors.ErrConfiguration, h.Name, "build", err)
			s.log.WithHost(h.Name).Error("skipping host", "error", err)
			continue
		}
		running = append(running, supervised{mon: m, deps: deps})
	}
	if len(running) == 0 {
		return errors.New(errors.ErrConfiguration, "", "start", ErrNoHosts)
	}

	s.mu.Lock()
	for _, r := range running {
		s.monitors = append(s.monitors, r.mon)
	}
	s.mu.Unlock()

	s.log.Info("starting host monitors", "hosts", len(running), "configured", len(s.hosts))

	var wg sync.WaitGroup
	for _, r := range running {
		wg.Go(func() {
			defer s.closeDeps(r.mon.log, r.deps)
			s.supervise(ctx, r.mon)
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	s.log.Info("shutdown requested; waiting for in-flight batches")

	if s.cfg.ShutdownTimeout <= 0 {
		<-done
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.ShutdownTimeout):
		pending := s.pending()
		s.log.Error("shutdown timed out", "timeout", s.cfg.ShutdownTimeout, "pending", strings.Join(pending, ","))
		return errors.New(errors.ErrTimeout, "", "shutdown",
			fmt.Errorf("%d host(s) still running after %s", len(pending), s.cfg.ShutdownTimeout))
	}
}

func (s *Supervisor) build(ctx context.Context, h config.Host) (*HostMonitor, Deps, error) {
	opts, err := OptionsFor(h)
	if err != nil {
		return nil, Deps{}, err
	}
	deps, err := s.factory(ctx, h)
	if err != nil {
		return nil, Deps{}, err
	}
	if deps.Fetcher == nil || deps.Sink == nil {
		s.closeDeps(s.log.WithHost(h.Name), deps)
		return nil, Deps{}, fmt.Errorf("factory returned incomplete collaborators")
	}
	return NewHost(opts, deps.Fetcher, deps.Sink, deps.Store, s.log, s.metrics), deps, nil
}

// supervise runs m until ctx is cancelled, restarting it after a panic.
func (s *Supervisor) supervise(ctx context.Context, m *HostMonitor) {
	failures := 0
	for {
		err := s.runOnce(ctx, m)
		if err == nil || ctx.Err() != nil {
			m.setState(Stopped)
			return
		}

		failures++
		delay := s.backoff(failures)
		m.noteRestart()
		m.log.Error("host monitor crashed; restarting", "error", err, "delay", delay, "attempt", failures)

		select {
		case <-ctx.Done():
			m.stop()
			return
		case <-time.After(delay):
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context, m *HostMonitor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return m.Run(ctx)
}

// backoff returns the restart delay: MinBackoff doubling per failure, capped at MaxBackoff.
func (s *Supervisor) backoff(failures int) time.Duration {
	d := s.cfg.MinBackoff
	for i := 1; i < failures && d < s.cfg.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, s.cfg.MaxBackoff)
}

func (s *Supervisor) closeDeps(log *logging.Logger, d Deps) {
	if d.Fetcher != nil {
		if err := d.Fetcher.Close(); err != nil {
			log.Warn("closing fetcher", "error", err)
		}
	}
	if d.Sink != nil {
		if err := d.Sink.Close(); err != nil {
			log.Warn("closing sink", "error", err)
		}
	}
}

func (s *Supervisor) pending() []string {
	var out []string
	for _, st := range s.Status() {
		if st.State != Stopped {
			out = append(out, st.Host)
		}
	}
	return out
}

// Status returns a snapshot of every running host, ordered by host label.
func (s *Supervisor) Status() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Status, 0, len(s.monitors))
	for _, m := range s.monitors {
		out = append(out, m.Status())
	}
	slices.SortFunc(out, func(a, b Status) int { return strings.Compare(a.Host, b.Host) })
	return out
}
