package memstore

// kind is the type of value a key holds, mirroring Redis value types.
type kind uint8

const (
	kindHash kind = iota + 1
	kindZSet
	kindList
)

// node is an intrusive doubly linked list element owned by a shard.
// Exactly one of hash/zset/list is in use, selected by kind.
type node struct {
	key  string
	kind kind

	hash map[string]string
	zset map[string]float64
	// list holds elements head-first: list[0] is the most recent LPUSH.
	list []string

	// Intrusive list links: head is the most recently touched key.
	prev *node
	next *node

	// Absolute expiration deadline in UnixNano. Zero means "no TTL".
	exp int64
}

func newNode(key string, k kind) *node {
	n := &node{key: key, kind: k}
	switch k {
	case kindHash:
		n.hash = make(map[string]string)
	case kindZSet:
		n.zset = make(map[string]float64)
	}
	return n
}
