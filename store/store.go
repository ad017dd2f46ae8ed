// Package store defines the key-value capability the popularity and recency
// caches are built on: hashes, sorted sets, capped lists, per-key expiry and
// ordered command pipelines (optionally atomic).
//
// Two implementations live in subpackages: memstore (in-process, used by
// tests and the bench command) and redisstore (go-redis). Both follow Redis
// semantics, including inclusive, negative-capable range indexes.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned by every operation on a store that has been closed.
	ErrClosed = errors.New("store: closed")
	// ErrWrongType mirrors Redis WRONGTYPE: the key holds a different kind of value.
	ErrWrongType = errors.New("store: operation against a key holding the wrong kind of value")
)

// Z is a sorted-set member with its score.
type Z struct {
	Score  float64
	Member string
}

// HashReply receives the result of a queued HGetAll once the pipeline
// has executed. Fields is empty (not nil) for a missing key.
type HashReply struct {
	Fields map[string]string
	Err    error
}

// Store is the capability consumed by the cache package.
// Implementations must be safe for concurrent use.
//
// Reads of missing keys are not errors: HGetAll returns an empty map,
// range reads return an empty slice.
type Store interface {
	// HSet sets the given fields on the hash at key, creating it if needed.
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns every field of the hash at key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// ZAdd adds or updates members of the sorted set at key.
	ZAdd(ctx context.Context, key string, members ...Z) error
	// ZRevRangeWithScores returns members ranked by descending score,
	// ties in descending member order, between start and stop inclusive.
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error)

	// LPush inserts values at the head of the list, one after another,
	// so the last value ends up first.
	LPush(ctx context.Context, key string, values ...string) error
	// LTrim keeps only the elements between start and stop inclusive.
	LTrim(ctx context.Context, key string, start, stop int64) error
	// LRange returns the elements between start and stop inclusive.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Expire sets a relative TTL on key. Missing keys are ignored.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Del removes keys. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error

	// Pipeline returns an ordered batch that is sent in one round trip
	// but may interleave with other clients.
	Pipeline() Pipeline
	// TxPipeline returns an ordered batch that executes as one atomic unit.
	TxPipeline() Pipeline
}

// Pipeline queues commands until Exec. Every queued command runs even if
// an earlier one fails; Exec reports the first failure.
// A Pipeline is not safe for concurrent use and must not be reused after Exec.
type Pipeline interface {
	HSet(key string, fields map[string]string)
	HGetAll(key string) *HashReply
	ZAdd(key string, members ...Z)
	LPush(key string, values ...string)
	LTrim(key string, start, stop int64)
	Expire(key string, ttl time.Duration)
	Del(keys ...string)

	// Len returns the number of queued commands.
	Len() int
	// Exec sends the queued commands.
	Exec(ctx context.Context) error
}
