package monitor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gezibash/auditfwd/internal/observability"
	"github.com/gezibash/auditfwd/internal/severity"
	"github.com/gezibash/auditfwd/pkg/audit"
	"github.com/gezibash/auditfwd/pkg/cursor"
	pkgerrors "github.com/gezibash/auditfwd/pkg/errors"
	"github.com/gezibash/auditfwd/pkg/logging"
)

const testKey = "sys1/QSYS/QAUDJRN"

func testOptions() Options {
	return Options{Host: "sys1", StoreKey: testKey, PollInterval: time.Hour, BatchSize: 100}
}

func newTestHost(opts Options, j *fakeJournal, s *fakeSink, store Store) *HostMonitor {
	return NewHost(opts, j, s, store, logging.Discard(), nil)
}

func messagesOf(es ...audit.Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Message
	}
	return out
}

func TestFirstRunForwardsEverything(t *testing.T) {
	es := []audit.Entry{entry("R1", 10, 4, "PW"), entry("R1", 11, 4, "PW"), entry("R1", 12, 4, "PW")}
	j := &fakeJournal{}
	j.append(es...)
	s := &fakeSink{}
	store := newFakeStore()
	m := newTestHost(testOptions(), j, s, store)
	m.load(context.Background())

	full, err := m.Cycle(context.Background())
	if err != nil || full {
		t.Fatalf("Cycle = %v, %v", full, err)
	}

	if got := s.messages(); !reflect.DeepEqual(got, messagesOf(es...)) {
		t.Errorf("sent %v", got)
	}
	for _, l := range s.levels() {
		if l != severity.Warning {
			t.Errorf("level = %s, want WARNING", l)
		}
	}
	if m.Cursor() != cursor.New("R1", 12) {
		t.Errorf("cursor = %s", m.Cursor())
	}
	if c, ok := store.get(testKey); !ok || c != cursor.New("R1", 12) {
		t.Errorf("saved cursor = %s, %v", c, ok)
	}
}

func TestNoNewRowsLeavesCursor(t *testing.T) {
	j := &fakeJournal{}
	j.append(entry("R1", 12, 4, "PW"))
	s := &fakeSink{}
	store := newFakeStore()
	store.cursors[testKey] = cursor.New("R1", 12)

	m := newTestHost(testOptions(), j, s, store)
	m.load(context.Background())

	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if len(s.messages()) != 0 {
		t.Errorf("sent %v, want nothing", s.messages())
	}
	if m.Cursor() != cursor.New("R1", 12) {
		t.Errorf("cursor = %s", m.Cursor())
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}
}

func TestReceiverRollover(t *testing.T) {
	j := &fakeJournal{}
	j.append(entry("R1", 11, 6, "AF"), entry("R1", 12, 6, "AF"), entry("R2", 1, 6, "AF"), entry("R2", 2, 6, "AF"))
	s := &fakeSink{}
	store := newFakeStore()
	store.cursors[testKey] = cursor.New("R1", 12)

	m := newTestHost(testOptions(), j, s, store)
	m.load(context.Background())

	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	want := []string{"AF@R2/1", "AF@R2/2"}
	if got := s.messages(); !reflect.DeepEqual(got, want) {
		t.Errorf("sent %v, want %v", got, want)
	}
	if m.Cursor() != cursor.New("R2", 2) {
		t.Errorf("cursor = %s", m.Cursor())
	}
}

func TestDeliveryFailureRedeliversBatch(t *testing.T) {
	var es []audit.Entry
	for seq := uint64(1); seq <= 5; seq++ {
		es = append(es, entry("R1", seq, 5, "CA"))
	}
	j := &fakeJournal{}
	j.append(es...)
	s := &fakeSink{failAt: 2}
	store := newFakeStore()
	m := newTestHost(testOptions(), j, s, store)
	m.load(context.Background())

	_, err := m.Cycle(context.Background())
	if !errors.Is(err, pkgerrors.ErrDelivery) {
		t.Fatalf("err = %v, want delivery error", err)
	}
	if !errors.Is(err, errTransport) {
		t.Errorf("err = %v does not wrap the transport error", err)
	}
	if !m.Cursor().IsZero() {
		t.Errorf("cursor moved to %s after failed delivery", m.Cursor())
	}
	if _, ok := store.get(testKey); ok {
		t.Error("cursor saved after failed delivery")
	}
	if st := m.Status(); st.LastError == "" {
		t.Error("status does not report the failure")
	}

	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("second Cycle: %v", err)
	}
	want := append([]string{es[0].Message}, messagesOf(es...)...)
	if got := s.messages(); !reflect.DeepEqual(got, want) {
		t.Errorf("sent %v, want %v", got, want)
	}
	if m.Cursor() != cursor.New("R1", 5) {
		t.Errorf("cursor = %s", m.Cursor())
	}
}

func TestFetchErrorLeavesCursor(t *testing.T) {
	for _, kind := range []error{pkgerrors.ErrConnection, pkgerrors.ErrQuery} {
		t.Run(kind.Error(), func(t *testing.T) {
			j := &fakeJournal{errs: []error{pkgerrors.New(kind, "sys1", "fetch", errors.New("boom"))}}
			j.append(entry("R1", 1, 6, "PW"))
			s := &fakeSink{}
			store := newFakeStore()
			store.cursors[testKey] = cursor.New("R0", 99)

			m := newTestHost(testOptions(), j, s, store)
			m.load(context.Background())

			if _, err := m.Cycle(context.Background()); !errors.Is(err, kind) {
				t.Fatalf("err = %v, want %v", err, kind)
			}
			if len(s.messages()) != 0 || m.Cursor() != cursor.New("R0", 99) {
				t.Errorf("sent %v, cursor %s", s.messages(), m.Cursor())
			}

			if _, err := m.Cycle(context.Background()); err != nil {
				t.Fatalf("recovery Cycle: %v", err)
			}
			if m.Cursor() != cursor.New("R1", 1) {
				t.Errorf("cursor after recovery = %s", m.Cursor())
			}
		})
	}
}

func TestFetchFailureLoggedCritical(t *testing.T) {
	tests := []struct {
		kind     error
		saved    cursor.Cursor
		wantHint bool
	}{
		{pkgerrors.ErrConnection, cursor.New("R0", 99), false},
		{pkgerrors.ErrQuery, cursor.New("R0", 99), true},
		{pkgerrors.ErrQuery, cursor.Cursor{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.Error()+"/"+tt.saved.String(), func(t *testing.T) {
			var buf bytes.Buffer
			log := logging.New(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: logging.ReplaceLevel})))
			j := &fakeJournal{errs: []error{pkgerrors.New(tt.kind, "sys1", "fetch", errors.New("boom"))}}
			store := newFakeStore()
			if !tt.saved.IsZero() {
				store.cursors[testKey] = tt.saved
			}
			m := NewHost(testOptions(), j, &fakeSink{}, store, log, nil)
			m.load(context.Background())

			if _, err := m.Cycle(context.Background()); err == nil {
				t.Fatal("expected fetch error")
			}
			var line string
			for _, l := range strings.Split(buf.String(), "\n") {
				if strings.Contains(l, `"msg":"fetch failed"`) {
					line = l
				}
			}
			if !strings.Contains(line, `"level":"CRITICAL"`) {
				t.Fatalf("fetch failure not logged at critical: %q", buf.String())
			}
			if got := strings.Contains(line, `"hint":`); got != tt.wantHint {
				t.Errorf("hint present = %v, want %v: %s", got, tt.wantHint, line)
			}
		})
	}
}

func TestSaveFailureRetriedOnNextAdvance(t *testing.T) {
	j := &fakeJournal{}
	j.append(entry("R1", 1, 6, "PW"))
	s := &fakeSink{}
	store := newFakeStore()
	store.failSaves = 1
	m := newTestHost(testOptions(), j, s, store)
	m.load(context.Background())

	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if m.Cursor() != cursor.New("R1", 1) {
		t.Errorf("cursor = %s", m.Cursor())
	}
	if _, ok := store.get(testKey); ok {
		t.Error("expected no persisted cursor after failed save")
	}
	if !m.Status().Unsaved {
		t.Error("status should report an unsaved cursor")
	}

	j.append(entry("R1", 2, 6, "PW"))
	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if c, _ := store.get(testKey); c != cursor.New("R1", 2) {
		t.Errorf("saved cursor = %s, want R1/2", c)
	}
	if got := s.messages(); len(got) != 2 {
		t.Errorf("sent %v, want each entry once", got)
	}
	if m.Status().Unsaved {
		t.Error("status still reports an unsaved cursor")
	}
}

func TestSaveFailureRetriedOnEmptyCycle(t *testing.T) {
	j := &fakeJournal{}
	j.append(entry("R1", 1, 6, "PW"))
	store := newFakeStore()
	store.failSaves = 1
	m := newTestHost(testOptions(), j, &fakeSink{}, store)
	m.load(context.Background())

	for range 2 {
		if _, err := m.Cycle(context.Background()); err != nil {
			t.Fatalf("Cycle: %v", err)
		}
	}
	if c, _ := store.get(testKey); c != cursor.New("R1", 1) {
		t.Errorf("saved cursor = %s", c)
	}
}

func TestIdempotentResume(t *testing.T) {
	j := &fakeJournal{}
	j.append(entry("R1", 1, 6, "PW"), entry("R1", 2, 6, "PW"))
	store := newFakeStore()

	first := &fakeSink{}
	m := newTestHost(testOptions(), j, first, store)
	m.load(context.Background())
	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	j.append(entry("R1", 3, 6, "PW"))
	second := &fakeSink{}
	restarted := newTestHost(testOptions(), j, second, store)
	restarted.load(context.Background())
	if restarted.Cursor() != cursor.New("R1", 2) {
		t.Fatalf("resumed at %s", restarted.Cursor())
	}
	if _, err := restarted.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if got := second.messages(); !reflect.DeepEqual(got, []string{"PW@R1/3"}) {
		t.Errorf("restarted monitor sent %v", got)
	}
}

func TestNoPersistenceStartsFromBeginning(t *testing.T) {
	j := &fakeJournal{}
	j.append(entry("R1", 1, 6, "PW"))
	s := &fakeSink{}
	m := newTestHost(testOptions(), j, s, nil)
	m.load(context.Background())

	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if m.Cursor() != cursor.New("R1", 1) || len(s.messages()) != 1 {
		t.Errorf("cursor %s, sent %v", m.Cursor(), s.messages())
	}
}

func TestSeverityRule(t *testing.T) {
	rule, err := severity.CompileRule(`type == "PW" ? 2 : severity`)
	if err != nil {
		t.Fatal(err)
	}
	j := &fakeJournal{}
	j.append(entry("R1", 1, 6, "PW"), entry("R1", 2, 6, "AF"), entry("R1", 3, audit.SeverityUnknown, "CA"))
	s := &fakeSink{}
	opts := testOptions()
	opts.Rule = rule
	m := newTestHost(opts, j, s, nil)

	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	want := []severity.Level{severity.Critical, severity.Info, severity.Info}
	if got := s.levels(); !reflect.DeepEqual(got, want) {
		t.Errorf("levels = %v, want %v", got, want)
	}
}

func TestFullBatchSkipsWait(t *testing.T) {
	j := &fakeJournal{limit: 2}
	for seq := uint64(1); seq <= 5; seq++ {
		j.append(entry("R1", seq, 6, "PW"))
	}
	s := &fakeSink{}
	opts := testOptions()
	opts.BatchSize = 2
	m := newTestHost(opts, j, s, newFakeStore())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitFor(t, "five deliveries", func() bool { return len(s.messages()) == 5 })
	waitFor(t, "waiting state", func() bool { return m.State() == Waiting })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if m.State() != Stopped {
		t.Errorf("state = %s, want stopped", m.State())
	}
	if m.Cursor() != cursor.New("R1", 5) {
		t.Errorf("cursor = %s", m.Cursor())
	}
}

func TestShutdownCompletesBatchInProgress(t *testing.T) {
	j := &fakeJournal{}
	j.append(entry("R1", 1, 6, "PW"), entry("R1", 2, 6, "PW"), entry("R1", 3, 6, "PW"))
	s := &fakeSink{gate: make(chan struct{}), started: make(chan struct{})}
	store := newFakeStore()
	m := newTestHost(testOptions(), j, s, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	<-s.started
	if m.State() != Delivering {
		t.Errorf("state = %s, want delivering", m.State())
	}
	cancel()
	close(s.gate)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := len(s.messages()); got != 3 {
		t.Errorf("delivered %d entries, want 3", got)
	}
	if c, _ := store.get(testKey); c != cursor.New("R1", 3) {
		t.Errorf("saved cursor = %s", c)
	}
	if m.State() != Stopped {
		t.Errorf("state = %s", m.State())
	}
}

func TestCycleMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	j := &fakeJournal{}
	j.append(entry("R1", 7, 6, "PW"), entry("R1", 8, 6, "PW"))
	m := NewHost(testOptions(), j, &fakeSink{}, nil, logging.Discard(), metrics)

	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	if got := testutil.ToFloat64(metrics.EntriesForwarded.WithLabelValues("sys1")); got != 2 {
		t.Errorf("entries forwarded = %v", got)
	}
	if got := testutil.ToFloat64(metrics.CursorSequence.WithLabelValues("sys1")); got != 8 {
		t.Errorf("cursor sequence = %v", got)
	}
	if got := testutil.ToFloat64(metrics.Cycles.WithLabelValues("sys1", "ok")); got != 1 {
		t.Errorf("ok cycles = %v", got)
	}
	if got := testutil.ToFloat64(metrics.Cycles.WithLabelValues("sys1", "empty")); got != 1 {
		t.Errorf("empty cycles = %v", got)
	}
	if got := testutil.ToFloat64(metrics.BytesForwarded.WithLabelValues("sys1")); got != float64(len("PW@R1/7")+len("PW@R1/8")) {
		t.Errorf("bytes forwarded = %v", got)
	}
}

func TestStatus(t *testing.T) {
	j := &fakeJournal{}
	j.append(entry("R1", 4, 6, "PW"))
	m := newTestHost(testOptions(), j, &fakeSink{}, nil)
	if st := m.Status(); st.State != Idle || st.Host != "sys1" {
		t.Errorf("initial status = %+v", st)
	}
	if _, err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	st := m.Status()
	if st.Receiver != "R1" || st.Sequence != 4 || st.Forwarded != 1 || st.LastCycle.IsZero() || st.LastError != "" {
		t.Errorf("status = %+v", st)
	}
}

func TestStateString(t *testing.T) {
	if Bookmarking.String() != "bookmarking" || State(42).String() != "State(42)" {
		t.Errorf("String() = %s, %s", Bookmarking, State(42))
	}
}
