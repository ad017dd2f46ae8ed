package cache

import "time"

// RefreshOutcome classifies a finished Refresh.
type RefreshOutcome int

const (
	// RefreshOK means the new snapshot committed.
	RefreshOK RefreshOutcome = iota
	// RefreshSourceError means the source query failed and the store was not touched.
	RefreshSourceError
	// RefreshStoreError means reading the old ranking or committing the new one failed.
	RefreshStoreError
)

func (o RefreshOutcome) String() string {
	switch o {
	case RefreshOK:
		return "ok"
	case RefreshSourceError:
		return "source_error"
	default:
		return "store_error"
	}
}

// Metrics exposes cache-level observability hooks.
// Implementations must be safe for concurrent use.
type Metrics interface {
	Refresh(outcome RefreshOutcome, items int, took time.Duration)
	TopN(returned, degraded int)
	ViewRecorded()
	RecentRead(entries int)
}

// NoopMetrics is the default Metrics; it does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Refresh(RefreshOutcome, int, time.Duration) {}
func (NoopMetrics) TopN(int, int)                              {}
func (NoopMetrics) ViewRecorded()                              {}
func (NoopMetrics) RecentRead(int)                             {}

var _ Metrics = NoopMetrics{}
