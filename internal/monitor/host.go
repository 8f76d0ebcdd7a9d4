// Package monitor runs one polling loop per journal host and supervises them.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/auditfwd/internal/observability"
	"github.com/gezibash/auditfwd/internal/severity"
	"github.com/gezibash/auditfwd/internal/sink"
	"github.com/gezibash/auditfwd/pkg/audit"
	"github.com/gezibash/auditfwd/pkg/cursor"
	"github.com/gezibash/auditfwd/pkg/errors"
	"github.com/gezibash/auditfwd/pkg/logging"
)

// Defaults applied to zero Options fields.
const (
	DefaultPollInterval = 60 * time.Second
	DefaultQueryTimeout = 2 * time.Minute
	DefaultBatchSize    = 500
)

// receiverGoneHint accompanies query failures past a saved cursor. A receiver
// removed by retention makes every later query fail the same way.
const receiverGoneHint = "the cursor's journal receiver may have been deleted; " +
	"run 'auditfwd cursor reset' to restart from the oldest available receiver"

// Fetcher returns the next entries strictly after a cursor, oldest first.
type Fetcher interface {
	Fetch(ctx context.Context, after cursor.Cursor) ([]audit.Entry, error)
	Close() error
}

// Store persists cursors. Load never fails; absent state reads as ok=false.
type Store interface {
	Load(ctx context.Context, key string) (cursor.Cursor, bool)
	Save(ctx context.Context, key string, c cursor.Cursor) error
}

// Options configures one host monitor.
type Options struct {
	Host         string
	StoreKey     string
	PollInterval time.Duration
	BatchSize    int
	QueryTimeout time.Duration
	Rule         *severity.Rule
}

// HostMonitor tails one host's journal and forwards every entry to its sink.
// Run is the only method that blocks; the rest are safe to call concurrently
// for status reporting.
type HostMonitor struct {
	opts    Options
	fetcher Fetcher
	sink    sink.Sink
	store   Store
	log     *logging.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	state     State
	cur       cursor.Cursor
	loaded    bool
	dirty     bool
	forwarded uint64
	restarts  int
	lastCycle time.Time
	lastErr   error
}

// NewHost creates a monitor for one host. store and metrics may be nil.
func NewHost(opts Options, f Fetcher, s sink.Sink, store Store, log *logging.Logger, metrics *observability.Metrics) *HostMonitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if log == nil {
		log = logging.New(nil)
	}
	return &HostMonitor{
		opts:    opts,
		fetcher: f,
		sink:    s,
		store:   store,
		log:     log.WithHost(opts.Host),
		metrics: metrics,
	}
}

// Host returns the host label.
func (m *HostMonitor) Host() string {
	return m.opts.Host
}

// State returns the current state.
func (m *HostMonitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Cursor returns the position of the last delivered entry.
func (m *HostMonitor) Cursor() cursor.Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Status returns an operator snapshot.
func (m *HostMonitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		Host:      m.opts.Host,
		State:     m.state,
		Receiver:  m.cur.ReceiverID,
		Sequence:  m.cur.Sequence,
		Forwarded: m.forwarded,
		Restarts:  m.restarts,
		LastCycle: m.lastCycle,
		Unsaved:   m.dirty,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func (m *HostMonitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run polls until ctx is cancelled. A cycle in progress always completes;
// cancellation is observed only between cycles and while waiting.
func (m *HostMonitor) Run(ctx context.Context) error {
	m.load(ctx)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			m.stop()
			return nil
		}

		full, _ := m.Cycle(ctx)
		if full {
			continue
		}

		m.setState(Waiting)
		timer.Reset(m.opts.PollInterval)
		select {
		case <-ctx.Done():
			m.stop()
			return nil
		case <-timer.C:
		}
	}
}

// load reads the persisted cursor once. A restarted monitor keeps its
// in-memory cursor, which may be ahead of an unsaved store.
func (m *HostMonitor) load(ctx context.Context) {
	m.mu.Lock()
	if m.loaded {
		m.mu.Unlock()
		return
	}
	m.loaded = true
	m.mu.Unlock()

	if m.store == nil || m.opts.StoreKey == "" {
		m.log.Info("cursor persistence disabled; starting from the beginning of the journal")
		return
	}

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.QueryTimeout)
	defer cancel()
	c, ok := m.store.Load(lctx, m.opts.StoreKey)
	if !ok {
		m.log.Info("no saved cursor; starting from the beginning of the journal")
		return
	}
	m.mu.Lock()
	m.cur = c
	m.mu.Unlock()
	m.setCursorGauge(c)
	m.log.WithCursor("cursor", c).Info("resuming from saved cursor")
}

func (m *HostMonitor) stop() {
	m.mu.Lock()
	dirty := m.dirty
	cur := m.cur
	m.mu.Unlock()

	if dirty {
		sctx, cancel := context.WithTimeout(context.Background(), m.opts.QueryTimeout)
		m.save(sctx, m.log, cur)
		cancel()
	}
	m.setState(Stopped)
	m.log.Info("host monitor stopped", "cursor", cur.String())
}

// Cycle runs one fetch, deliver and bookmark pass. full reports whether the
// batch reached the batch size, meaning more entries are likely waiting.
func (m *HostMonitor) Cycle(ctx context.Context) (full bool, err error) {
	id := uuid.NewString()
	log := m.log.WithCycle(id)

	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.QueryTimeout)
	defer cancel()

	op, work := observability.StartOperation(work, m.metrics, "monitor.cycle",
		attribute.String("host", m.opts.Host),
		attribute.String("cycle", id),
	)
	outcome := "ok"
	defer func() {
		op.End(err)
		m.mu.Lock()
		m.lastCycle = time.Now()
		m.lastErr = err
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.Cycles.WithLabelValues(m.opts.Host, outcome).Inc()
		}
	}()

	m.setState(Fetching)
	after := m.Cursor()
	entries, err := m.fetcher.Fetch(work, after)
	if err != nil {
		outcome = "fetch_error"
		args := []any{"error", err}
		if errors.KindOf(err) == errors.ErrQuery && !after.IsZero() {
			args = append(args, "hint", receiverGoneHint)
		}
		log.WithCursor("cursor", after).CriticalContext(work, "fetch failed", args...)
		return false, err
	}
	if m.metrics != nil {
		m.metrics.BatchEntries.WithLabelValues(m.opts.Host).Observe(float64(len(entries)))
	}

	if len(entries) == 0 {
		outcome = "empty"
		m.retrySave(work, log)
		log.DebugContext(work, "no new entries", "cursor", after.String())
		return false, nil
	}

	m.setState(Delivering)
	if err := m.deliver(entries); err != nil {
		outcome = "delivery_error"
		log.WithCursor("cursor", after).ErrorContext(work, "delivery failed; batch will be fetched again", "error", err)
		return false, err
	}

	m.setState(Bookmarking)
	last := entries[len(entries)-1].Position
	if err := m.advance(work, log, last); err != nil {
		outcome = "bookmark_error"
		return false, err
	}

	log.InfoContext(work, "batch forwarded",
		"entries", len(entries),
		"from", entries[0].Position.String(),
		"to", last.String(),
	)
	return len(entries) >= m.opts.BatchSize, nil
}

// deliver sends entries in fetch order and stops at the first failure.
func (m *HostMonitor) deliver(entries []audit.Entry) error {
	for i, e := range entries {
		level := m.opts.Rule.Of(e)
		if err := m.sink.Send(level, e.Message); err != nil {
			return errors.New(errors.ErrDelivery, m.opts.Host, "send",
				fmt.Errorf("entry %d of %d at %s: %w", i+1, len(entries), e.Position, err))
		}
		m.mu.Lock()
		m.forwarded++
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.EntriesForwarded.WithLabelValues(m.opts.Host).Inc()
			m.metrics.BytesForwarded.WithLabelValues(m.opts.Host).Add(float64(len(e.Message)))
		}
	}
	return nil
}

// advance moves the cursor to last and persists it.
func (m *HostMonitor) advance(ctx context.Context, log *logging.Logger, last cursor.Cursor) error {
	m.mu.Lock()
	next, err := m.cur.Advance(last)
	if err != nil {
		m.mu.Unlock()
		err = errors.New(errors.ErrQuery, m.opts.Host, "bookmark", err)
		log.ErrorContext(ctx, "fetched batch does not advance the cursor", "error", err)
		return err
	}
	m.cur = next
	m.mu.Unlock()

	m.setCursorGauge(next)
	m.save(ctx, log, next)
	return nil
}

func (m *HostMonitor) retrySave(ctx context.Context, log *logging.Logger) {
	m.mu.Lock()
	dirty := m.dirty
	cur := m.cur
	m.mu.Unlock()
	if dirty {
		m.save(ctx, log, cur)
	}
}

// save persists c. Failures leave the monitor dirty so a later cycle retries
// with whatever cursor is newest by then.
func (m *HostMonitor) save(ctx context.Context, log *logging.Logger, c cursor.Cursor) {
	if m.store == nil || m.opts.StoreKey == "" {
		return
	}
	err := m.store.Save(ctx, m.opts.StoreKey, c)

	m.mu.Lock()
	m.dirty = err != nil
	m.mu.Unlock()

	if err != nil {
		log.WithCursor("cursor", c).WarnContext(ctx, "cursor save failed; will retry", "error", err)
	}
}

func (m *HostMonitor) setCursorGauge(c cursor.Cursor) {
	if m.metrics == nil {
		return
	}
	m.metrics.CursorSequence.WithLabelValues(m.opts.Host).Set(float64(c.Sequence))
}

func (m *HostMonitor) noteRestart() {
	m.mu.Lock()
	m.restarts++
	m.mu.Unlock()
}
