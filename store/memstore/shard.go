package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/IvanBrykalov/popcache/store"
)

// shard is an independent partition of the keyspace with its own lock, map,
// and an intrusive doubly linked list (head = most recently touched).
type shard struct {
	// ---- guarded by mu ----
	mu   sync.Mutex
	m    map[string]*node
	head *node
	tail *node
	len  int
	cap  int // per-shard key limit (0 = unbounded)

	opt *Options
}

func newShard(capacity int, opt *Options) *shard {
	return &shard{
		m:   make(map[string]*node),
		cap: capacity,
		opt: opt,
	}
}

// -------------------- commands (mu held) --------------------

func (s *shard) hset(key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	n, err := s.getOrCreateLocked(key, kindHash)
	if err != nil {
		return err
	}
	for f, v := range fields {
		n.hash[f] = v
	}
	return nil
}

func (s *shard) hgetall(key string) (map[string]string, error) {
	out := make(map[string]string)
	n := s.lookupLocked(key)
	if n == nil {
		return out, nil
	}
	if n.kind != kindHash {
		return nil, store.ErrWrongType
	}
	for f, v := range n.hash {
		out[f] = v
	}
	return out, nil
}

func (s *shard) zadd(key string, members []store.Z) error {
	if len(members) == 0 {
		return nil
	}
	n, err := s.getOrCreateLocked(key, kindZSet)
	if err != nil {
		return err
	}
	for _, z := range members {
		n.zset[z.Member] = z.Score
	}
	return nil
}

func (s *shard) zrevrange(key string, start, stop int64) ([]store.Z, error) {
	n := s.lookupLocked(key)
	if n == nil {
		return []store.Z{}, nil
	}
	if n.kind != kindZSet {
		return nil, store.ErrWrongType
	}
	all := make([]store.Z, 0, len(n.zset))
	for m, sc := range n.zset {
		all = append(all, store.Z{Score: sc, Member: m})
	}
	// Redis orders by (score, member) ascending; the reverse range flips both.
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Member > all[j].Member
	})
	lo, hi, ok := bounds(len(all), start, stop)
	if !ok {
		return []store.Z{}, nil
	}
	return all[lo:hi], nil
}

func (s *shard) lpush(key string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	n, err := s.getOrCreateLocked(key, kindList)
	if err != nil {
		return err
	}
	list := make([]string, 0, len(n.list)+len(values))
	for i := len(values) - 1; i >= 0; i-- {
		list = append(list, values[i])
	}
	n.list = append(list, n.list...)
	return nil
}

func (s *shard) ltrim(key string, start, stop int64) error {
	n := s.lookupLocked(key)
	if n == nil {
		return nil
	}
	if n.kind != kindList {
		return store.ErrWrongType
	}
	lo, hi, ok := bounds(len(n.list), start, stop)
	if !ok {
		s.deleteLocked(n)
		return nil
	}
	n.list = append([]string(nil), n.list[lo:hi]...)
	return nil
}

func (s *shard) lrange(key string, start, stop int64) ([]string, error) {
	n := s.lookupLocked(key)
	if n == nil {
		return []string{}, nil
	}
	if n.kind != kindList {
		return nil, store.ErrWrongType
	}
	lo, hi, ok := bounds(len(n.list), start, stop)
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), n.list[lo:hi]...), nil
}

// expire sets a relative TTL; a non-positive ttl deletes the key, as in Redis.
func (s *shard) expire(key string, ttl time.Duration) error {
	n := s.lookupLocked(key)
	if n == nil {
		return nil
	}
	if ttl <= 0 {
		s.deleteLocked(n)
		return nil
	}
	n.exp = s.now() + int64(ttl)
	return nil
}

func (s *shard) del(key string) error {
	if n, ok := s.m[key]; ok {
		s.deleteLocked(n)
	}
	return nil
}

// -------------------- internals (mu held) --------------------

// lookupLocked returns the live node for key and marks it recently touched.
// Expired nodes are evicted and reported as absent.
func (s *shard) lookupLocked(key string) *node {
	n, ok := s.m[key]
	if !ok {
		return nil
	}
	if n.exp != 0 && s.now() > n.exp {
		s.evictNode(n, EvictTTL)
		return nil
	}
	s.moveToFront(n)
	return n
}

// getOrCreateLocked returns the node for key, creating an empty one of kind k.
func (s *shard) getOrCreateLocked(key string, k kind) (*node, error) {
	if n := s.lookupLocked(key); n != nil {
		if n.kind != k {
			return nil, store.ErrWrongType
		}
		return n, nil
	}
	n := newNode(key, k)
	s.m[key] = n
	s.insertFront(n)
	s.enforceLimitsLocked()
	return n, nil
}

func (s *shard) deleteLocked(n *node) {
	s.removeNode(n)
	delete(s.m, n.key)
}

func (s *shard) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// insertFront inserts n at the head in O(1).
func (s *shard) insertFront(n *node) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
}

// moveToFront promotes n to the head in O(1).
func (s *shard) moveToFront(n *node) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
}

// removeNode unlinks n and updates the resident count in O(1).
func (s *shard) removeNode(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
}

// evictNode drops n and notifies OnEvict.
func (s *shard) evictNode(n *node, reason EvictReason) {
	s.deleteLocked(n)
	if cb := s.opt.OnEvict; cb != nil {
		cb(n.key, reason)
	}
}

// enforceLimitsLocked evicts from the tail until the key limit is satisfied.
// The node just inserted sits at the head, so it survives any cap >= 1.
func (s *shard) enforceLimitsLocked() {
	if s.cap <= 0 {
		return
	}
	for s.len > s.cap && s.tail != nil {
		s.evictNode(s.tail, EvictCapacity)
	}
}

// bounds converts Redis-style inclusive indexes into a half-open slice window.
func bounds(n int, start, stop int64) (lo, hi int, ok bool) {
	size := int64(n)
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0, false
	}
	return int(start), int(stop) + 1, true
}
