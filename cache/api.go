package cache

import "context"

// Ranking is the popularity view: a ranking snapshot rebuilt from the
// source of truth and read back best-first.
// All methods are safe for concurrent use by multiple goroutines.
type Ranking interface {
	// Refresh rebuilds the snapshot from the source in one atomic store
	// transaction. Concurrent refreshes are not serialized unless
	// PopularityOptions.Coalesce is set; the last commit wins in full.
	Refresh(ctx context.Context) error

	// TopN returns up to n items, best first. n <= 0 means the configured
	// Limit. Missing or malformed item records come back degraded instead
	// of failing the read.
	TopN(ctx context.Context, n int) ([]ItemSummary, error)
}

// Recency is the per-subject view of recently viewed items.
// All methods are safe for concurrent use by multiple goroutines.
type Recency interface {
	// RecordView pushes itemID to the head of the subject's log, trims the
	// log to its bound and resets its TTL. Not idempotent.
	RecordView(ctx context.Context, subject string, itemID int64) error

	// Recent returns the subject's log, most recent first. A missing or
	// expired log yields an empty slice.
	Recent(ctx context.Context, subject string) ([]int64, error)
}

var (
	_ Ranking = (*PopularityCache)(nil)
	_ Recency = (*RecencyTracker)(nil)
)
