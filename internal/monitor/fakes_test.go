package monitor

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gezibash/auditfwd/internal/severity"
	"github.com/gezibash/auditfwd/pkg/audit"
	"github.com/gezibash/auditfwd/pkg/cursor"
	pkgerrors "github.com/gezibash/auditfwd/pkg/errors"
)

func entry(receiver string, seq uint64, sev int, typ string) audit.Entry {
	return audit.Entry{
		Facility:  13,
		Severity:  sev,
		EntryType: typ,
		Message:   typ + "@" + cursor.New(receiver, seq).String(),
		Position:  cursor.New(receiver, seq),
	}
}

// fakeJournal serves entries strictly after the cursor, ordered by receiver
// then sequence, like the real query.
type fakeJournal struct {
	mu      sync.Mutex
	entries []audit.Entry
	limit   int
	errs    []error
	panics  int
	calls   int
	closed  bool
}

func (j *fakeJournal) append(es ...audit.Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, es...)
	slices.SortFunc(j.entries, func(a, b audit.Entry) int { return a.Position.Compare(b.Position) })
}

func (j *fakeJournal) Fetch(_ context.Context, after cursor.Cursor) ([]audit.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	if j.panics > 0 {
		j.panics--
		panic("driver exploded")
	}
	if len(j.errs) > 0 {
		err := j.errs[0]
		j.errs = j.errs[1:]
		return nil, err
	}
	var out []audit.Entry
	for _, e := range j.entries {
		if after.Less(e.Position) {
			out = append(out, e)
		}
		if j.limit > 0 && len(out) == j.limit {
			break
		}
	}
	return out, nil
}

func (j *fakeJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func (j *fakeJournal) isClosed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closed
}

type sent struct {
	level   severity.Level
	message string
}

// fakeSink records deliveries. failAt makes the n-th Send (1-based, counted
// across the sink's lifetime) fail. gate, when set, blocks every Send until
// it is closed; started is signalled on the first Send.
type fakeSink struct {
	mu      sync.Mutex
	sent    []sent
	sends   int
	failAt  int
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
	closed  bool
}

var errTransport = errors.New("connection refused")

func (s *fakeSink) Send(level severity.Level, message string) error {
	if s.started != nil {
		s.once.Do(func() { close(s.started) })
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	if s.sends == s.failAt {
		return errTransport
	}
	s.sent = append(s.sent, sent{level, message})
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.message
	}
	return out
}

func (s *fakeSink) levels() []severity.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]severity.Level, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.level
	}
	return out
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeStore struct {
	mu        sync.Mutex
	cursors   map[string]cursor.Cursor
	failSaves int
	saves     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{cursors: make(map[string]cursor.Cursor)}
}

func (s *fakeStore) Load(_ context.Context, key string) (cursor.Cursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[key]
	return c, ok
}

func (s *fakeStore) Save(_ context.Context, key string, c cursor.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failSaves > 0 {
		s.failSaves--
		return pkgerrors.New(pkgerrors.ErrPersistence, "", "save", errors.New("disk full"))
	}
	s.cursors[key] = c
	return nil
}

func (s *fakeStore) get(key string) (cursor.Cursor, bool) {
	return s.Load(context.Background(), key)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
