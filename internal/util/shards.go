package util

import (
	"math/bits"
	"runtime"
)

// maxShards bounds the automatic shard count.
const maxShards = 256

// NextPow2 returns the smallest power of two >= x (1 for x <= 1).
// Values above the largest int power of two are clamped to it.
func NextPow2(x int) int {
	const top = 1 << (bits.UintSize - 2)
	if x <= 1 {
		return 1
	}
	if x > top {
		return top
	}
	return 1 << bits.Len(uint(x-1))
}

// ReasonableShardCount picks a default shard count from CPU parallelism:
// NextPow2(2*GOMAXPROCS), clamped to [1..256].
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	return min(NextPow2(2*p), maxShards)
}

// ShardCount normalizes a requested shard count: non-positive picks
// ReasonableShardCount, anything else is rounded up to a power of two.
func ShardCount(requested int) int {
	if requested <= 0 {
		return ReasonableShardCount()
	}
	return NextPow2(requested)
}

// ShardIndex maps a key to its shard. shards must be a power of two.
func ShardIndex(key string, shards int) int {
	if shards <= 1 {
		return 0
	}
	return int(Fnv64a(key) & uint64(shards-1))
}
