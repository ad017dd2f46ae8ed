package cache

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied by the constructors for zero-valued options.
const (
	DefaultLimit         = 10
	DefaultRankingKey    = "item:popular"
	DefaultItemKeyPrefix = "item:"

	DefaultMaxRecent     = 20
	DefaultRecentTTL     = 24 * time.Hour
	DefaultSubjectPrefix = "subject:"
	recentViewsKeySuffix = ":recent_views"
	pendingSuffix        = ":pruning"
)

// PopularityOptions configures a PopularityCache. Zero values are safe:
//   - Limit <= 0        => DefaultLimit (N)
//   - empty key names   => "item:popular" and "item:<id>"
//   - nil Metrics       => NoopMetrics
//   - nil Logger        => disabled
type PopularityOptions struct {
	// Limit is N: how many items Refresh asks the source for, and the
	// default count for TopN.
	Limit int

	RankingKey    string
	ItemKeyPrefix string

	// PruneOrphans deletes item hashes that have dropped out of the ranking,
	// inside the refresh transaction. Deletion lags one refresh: members that
	// leave the ranking are parked in "<RankingKey>:pruning" and removed by
	// the following refresh if they did not come back, so a TopN racing a
	// refresh still finds the records of the ranking it read. A reader that
	// straddles two full refreshes can still see degraded entries.
	// Off by default: stale hashes are left behind.
	PruneOrphans bool

	// Coalesce makes concurrent Refresh calls on this cache share a single
	// in-flight execution instead of racing each other.
	Coalesce bool

	Metrics Metrics
	Logger  *zerolog.Logger
}

func (o PopularityOptions) withDefaults() PopularityOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.RankingKey == "" {
		o.RankingKey = DefaultRankingKey
	}
	if o.ItemKeyPrefix == "" {
		o.ItemKeyPrefix = DefaultItemKeyPrefix
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	return o
}

// RecencyOptions configures a RecencyTracker. Zero values are safe:
//   - MaxEntries <= 0  => 20
//   - TTL <= 0         => 24h
//   - empty KeyPrefix  => "subject:" (key "subject:<id>:recent_views")
type RecencyOptions struct {
	MaxEntries int
	TTL        time.Duration
	KeyPrefix  string

	// Transactional wraps push/trim/expire in MULTI/EXEC. By default they
	// are sent as one ordered, non-transactional pipeline.
	Transactional bool

	Metrics Metrics
	Logger  *zerolog.Logger
}

func (o RecencyOptions) withDefaults() RecencyOptions {
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxRecent
	}
	if o.TTL <= 0 {
		o.TTL = DefaultRecentTTL
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultSubjectPrefix
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	return o
}

func loggerOrNop(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}
