package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IvanBrykalov/popcache/store"
	"github.com/IvanBrykalov/popcache/store/memstore"
)

type fakeClock struct{ t atomic.Int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t.Load() }
func (f *fakeClock) add(d time.Duration) { f.t.Add(int64(d)) }

// newMemStore returns a memstore driven by a fake clock.
func newMemStore(t testing.TB) (*memstore.Store, *fakeClock) {
	t.Helper()
	clk := &fakeClock{}
	clk.t.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	s := memstore.New(memstore.Options{Shards: 4, Clock: clk})
	t.Cleanup(func() { _ = s.Close() })
	return s, clk
}

var errInjected = errors.New("injected: EXECABORT")

// faultyStore fails every transactional Exec and passes everything else
// through, like a Redis whose MULTI/EXEC is aborted.
type faultyStore struct {
	store.Store
}

func (f faultyStore) TxPipeline() store.Pipeline {
	return failingPipeline{f.Store.TxPipeline()}
}

type failingPipeline struct {
	store.Pipeline
}

func (failingPipeline) Exec(context.Context) error { return errInjected }

type refreshCall struct {
	outcome RefreshOutcome
	items   int
}

// recordingMetrics captures every hook call.
type recordingMetrics struct {
	mu        sync.Mutex
	refreshes []refreshCall
	returned  int
	degraded  int
	views     int
	recent    int
}

func (m *recordingMetrics) Refresh(o RefreshOutcome, items int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes = append(m.refreshes, refreshCall{o, items})
}

func (m *recordingMetrics) TopN(returned, degraded int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returned += returned
	m.degraded += degraded
}

func (m *recordingMetrics) ViewRecorded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views++
}

func (m *recordingMetrics) RecentRead(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent++
}
