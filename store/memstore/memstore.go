// Package memstore is an in-process store.Store that emulates the subset of
// Redis the caches need: hashes, sorted sets, lists, per-key TTL and
// pipelines.
//
// The keyspace is split into shards, each guarded by its own mutex and
// keeping an intrusive list of keys ordered by last touch. A plain Pipeline
// locks one shard per command; a TxPipeline locks every shard it touches (in
// ascending index order) for the whole batch, so concurrent readers observe
// either none or all of its effects.
//
// TTL is lazy: an expired key is dropped the next time it is touched.
package memstore

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/popcache/internal/util"
	"github.com/IvanBrykalov/popcache/store"
)

// Store is an in-memory store.Store. All methods are safe for concurrent use.
type Store struct {
	shards []*shard
	closed atomic.Bool
	opt    Options
}

var _ store.Store = (*Store)(nil)

// New constructs a Store with the provided Options.
func New(opt Options) *Store {
	n := util.ShardCount(opt.Shards)
	opt.Shards = n

	s := &Store{shards: make([]*shard, n), opt: opt}
	perShard := 0
	if opt.MaxKeys > 0 {
		perShard = (opt.MaxKeys + n - 1) / n // split evenly (ceil)
	}
	for i := range s.shards {
		s.shards[i] = newShard(perShard, &s.opt)
	}
	return s
}

// command is one queued operation bound to the key that selects its shard.
type command struct {
	key string
	run func(sh *shard) error
}

// ---- store.Store implementation ----

func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	return s.exec(ctx, true, hsetCmd(key, fields))
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	r := &store.HashReply{}
	if err := s.exec(ctx, true, hgetallCmd(key, r)); err != nil {
		return nil, err
	}
	return r.Fields, r.Err
}

func (s *Store) ZAdd(ctx context.Context, key string, members ...store.Z) error {
	return s.exec(ctx, true, zaddCmd(key, members))
}

func (s *Store) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]store.Z, error) {
	var out []store.Z
	err := s.exec(ctx, true, command{key: key, run: func(sh *shard) (err error) {
		out, err = sh.zrevrange(key, start, stop)
		return err
	}})
	return out, err
}

func (s *Store) LPush(ctx context.Context, key string, values ...string) error {
	return s.exec(ctx, true, lpushCmd(key, values))
}

func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.exec(ctx, true, ltrimCmd(key, start, stop))
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var out []string
	err := s.exec(ctx, true, command{key: key, run: func(sh *shard) (err error) {
		out, err = sh.lrange(key, start, stop)
		return err
	}})
	return out, err
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.exec(ctx, true, expireCmd(key, ttl))
}

// Del removes keys atomically, like a single Redis DEL.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.exec(ctx, true, delCmds(keys)...)
}

func (s *Store) Pipeline() store.Pipeline   { return &pipeline{s: s} }
func (s *Store) TxPipeline() store.Pipeline { return &pipeline{s: s, atomic: true} }

// Len returns the number of resident keys across all shards.
// Expired keys count until they are touched.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += sh.len
		sh.mu.Unlock()
	}
	return total
}

// Close marks the store closed; every later operation returns store.ErrClosed.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// ---- execution ----

// exec runs cmds in order. With atomic set, every shard involved is locked
// for the whole batch. All commands run; the first error is returned.
func (s *Store) exec(ctx context.Context, atomic bool, cmds ...command) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(cmds) == 0 {
		return nil
	}

	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if !atomic {
		for _, c := range cmds {
			sh := s.shardFor(c.key)
			sh.mu.Lock()
			record(c.run(sh))
			sh.mu.Unlock()
		}
		return first
	}

	locked := s.lockAll(cmds)
	for _, c := range cmds {
		record(c.run(s.shardFor(c.key)))
	}
	for i := len(locked) - 1; i >= 0; i-- {
		s.shards[locked[i]].mu.Unlock()
	}
	return first
}

// lockAll locks the distinct shards used by cmds in ascending index order,
// which keeps concurrent transactions deadlock-free.
func (s *Store) lockAll(cmds []command) []int {
	seen := make(map[int]struct{}, len(cmds))
	idx := make([]int, 0, len(cmds))
	for _, c := range cmds {
		i := util.ShardIndex(c.key, len(s.shards))
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		s.shards[i].mu.Lock()
	}
	return idx
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[util.ShardIndex(key, len(s.shards))]
}

// ---- command constructors (shared by direct calls and pipelines) ----

func hsetCmd(key string, fields map[string]string) command {
	cp := make(map[string]string, len(fields))
	for f, v := range fields {
		cp[f] = v
	}
	return command{key: key, run: func(sh *shard) error { return sh.hset(key, cp) }}
}

func hgetallCmd(key string, r *store.HashReply) command {
	return command{key: key, run: func(sh *shard) error {
		r.Fields, r.Err = sh.hgetall(key)
		if r.Fields == nil {
			r.Fields = map[string]string{}
		}
		return r.Err
	}}
}

func zaddCmd(key string, members []store.Z) command {
	cp := append([]store.Z(nil), members...)
	return command{key: key, run: func(sh *shard) error { return sh.zadd(key, cp) }}
}

func lpushCmd(key string, values []string) command {
	cp := append([]string(nil), values...)
	return command{key: key, run: func(sh *shard) error { return sh.lpush(key, cp) }}
}

func ltrimCmd(key string, start, stop int64) command {
	return command{key: key, run: func(sh *shard) error { return sh.ltrim(key, start, stop) }}
}

func expireCmd(key string, ttl time.Duration) command {
	return command{key: key, run: func(sh *shard) error { return sh.expire(key, ttl) }}
}

func delCmds(keys []string) []command {
	cmds := make([]command, 0, len(keys))
	for _, k := range keys {
		k := k
		cmds = append(cmds, command{key: k, run: func(sh *shard) error { return sh.del(k) }})
	}
	return cmds
}

// ---- pipeline ----

type pipeline struct {
	s      *Store
	atomic bool
	cmds   []command
}

func (p *pipeline) HSet(key string, fields map[string]string) {
	p.cmds = append(p.cmds, hsetCmd(key, fields))
}

func (p *pipeline) HGetAll(key string) *store.HashReply {
	r := &store.HashReply{}
	p.cmds = append(p.cmds, hgetallCmd(key, r))
	return r
}

func (p *pipeline) ZAdd(key string, members ...store.Z) {
	p.cmds = append(p.cmds, zaddCmd(key, members))
}

func (p *pipeline) LPush(key string, values ...string) {
	p.cmds = append(p.cmds, lpushCmd(key, values))
}

func (p *pipeline) LTrim(key string, start, stop int64) {
	p.cmds = append(p.cmds, ltrimCmd(key, start, stop))
}

func (p *pipeline) Expire(key string, ttl time.Duration) {
	p.cmds = append(p.cmds, expireCmd(key, ttl))
}

func (p *pipeline) Del(keys ...string) {
	p.cmds = append(p.cmds, delCmds(keys)...)
}

func (p *pipeline) Len() int { return len(p.cmds) }

func (p *pipeline) Exec(ctx context.Context) error {
	cmds := p.cmds
	p.cmds = nil
	return p.s.exec(ctx, p.atomic, cmds...)
}
