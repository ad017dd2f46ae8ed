package memstore

// EvictReason explains why a key was dropped without an explicit Del.
type EvictReason int

const (
	// EvictTTL: the key's deadline passed (lazy eviction on access).
	EvictTTL EvictReason = iota
	// EvictCapacity: removed as least recently touched to satisfy MaxKeys.
	EvictCapacity
)

func (r EvictReason) String() string {
	if r == EvictTTL {
		return "ttl"
	}
	return "capacity"
}

// Clock provides time in UnixNano; useful for deterministic TTL tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Store. Zero values are safe:
//   - Shards <= 0   => auto (rounded up to a power of two)
//   - MaxKeys <= 0  => unbounded
//   - nil Clock     => time.Now()
type Options struct {
	// Shards defines the number of lock partitions.
	Shards int

	// MaxKeys bounds resident keys, split evenly across shards. When a shard
	// is full the least recently touched key is evicted, like Redis
	// allkeys-lru, so hashes can disappear independently of the ranking.
	MaxKeys int

	// OnEvict is called under the shard lock; keep it lightweight.
	OnEvict func(key string, reason EvictReason)

	Clock Clock
}
