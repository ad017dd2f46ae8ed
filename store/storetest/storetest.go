// Package storetest is a conformance suite for store.Store implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/popcache/store"
)

// Harness wires an implementation into the suite.
type Harness struct {
	Store store.Store
	// Advance moves the store's notion of time forward (fake clock,
	// miniredis FastForward, ...). Required for the TTL cases.
	Advance func(d time.Duration)
}

// Run executes every conformance case. newHarness is called once per case
// and must return an empty store.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	cases := []struct {
		name string
		fn   func(t *testing.T, h Harness)
	}{
		{"Hash", testHash},
		{"SortedSetOrder", testSortedSetOrder},
		{"ListPushTrimRange", testList},
		{"Expire", testExpire},
		{"Del", testDel},
		{"WrongType", testWrongType},
		{"TxPipeline", testTxPipeline},
		{"PipelineReplies", testPipelineReplies},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newHarness(t))
		})
	}
}

func testHash(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	got, err := st.HGetAll(ctx, "item:1")
	require.NoError(t, err)
	assert.NotNil(t, got, "missing hash must read as an empty map")
	assert.Empty(t, got)

	require.NoError(t, st.HSet(ctx, "item:1", map[string]string{"id": "1", "title": "Alps"}))
	require.NoError(t, st.HSet(ctx, "item:1", map[string]string{"title": "Alps 2", "price": "10.50"}))

	got, err = st.HGetAll(ctx, "item:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "1", "title": "Alps 2", "price": "10.50"}, got)
}

func testSortedSetOrder(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	got, err := st.ZRevRangeWithScores(ctx, "rank", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, st.ZAdd(ctx, "rank",
		store.Z{Score: 1, Member: "item:a"},
		store.Z{Score: 5, Member: "item:b"},
		store.Z{Score: 3, Member: "item:c"},
		store.Z{Score: 3, Member: "item:d"},
	))
	// re-adding updates the score
	require.NoError(t, st.ZAdd(ctx, "rank", store.Z{Score: 0, Member: "item:a"}))

	got, err = st.ZRevRangeWithScores(ctx, "rank", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []store.Z{
		{Score: 5, Member: "item:b"},
		{Score: 3, Member: "item:d"}, // ties: descending member order
		{Score: 3, Member: "item:c"},
		{Score: 0, Member: "item:a"},
	}, got)

	got, err = st.ZRevRangeWithScores(ctx, "rank", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []store.Z{{Score: 5, Member: "item:b"}, {Score: 3, Member: "item:d"}}, got)

	got, err = st.ZRevRangeWithScores(ctx, "rank", -1, -1)
	require.NoError(t, err)
	assert.Equal(t, []store.Z{{Score: 0, Member: "item:a"}}, got)

	got, err = st.ZRevRangeWithScores(ctx, "rank", 10, 20)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testList(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	got, err := st.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, st.LTrim(ctx, "l", 0, 1), "trimming a missing list is a no-op")

	require.NoError(t, st.LPush(ctx, "l", "1"))
	require.NoError(t, st.LPush(ctx, "l", "2", "3"))

	got, err = st.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, got)

	require.NoError(t, st.LTrim(ctx, "l", 0, 1))
	got, err = st.LRange(ctx, "l", 0, 19)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2"}, got)

	// an empty trim window deletes the list
	require.NoError(t, st.LTrim(ctx, "l", 5, 10))
	got, err = st.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testExpire(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store
	require.NotNil(t, h.Advance, "harness must provide Advance")

	require.NoError(t, st.Expire(ctx, "missing", time.Minute))

	require.NoError(t, st.LPush(ctx, "l", "1"))
	require.NoError(t, st.Expire(ctx, "l", 10*time.Second))
	h.Advance(5 * time.Second)

	got, err := st.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, got)

	// resetting the TTL pushes the deadline out again
	require.NoError(t, st.Expire(ctx, "l", 10*time.Second))
	h.Advance(8 * time.Second)
	got, err = st.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, got)

	h.Advance(3 * time.Second)
	got, err = st.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testDel(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	require.NoError(t, st.HSet(ctx, "a", map[string]string{"f": "v"}))
	require.NoError(t, st.LPush(ctx, "b", "x"))
	require.NoError(t, st.Del(ctx, "a", "b", "never-existed"))

	ha, err := st.HGetAll(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, ha)
	lb, err := st.LRange(ctx, "b", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, lb)
}

func testWrongType(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	require.NoError(t, st.HSet(ctx, "k", map[string]string{"f": "v"}))
	assert.ErrorIs(t, st.LPush(ctx, "k", "x"), store.ErrWrongType)
	_, err := st.LRange(ctx, "k", 0, -1)
	assert.ErrorIs(t, err, store.ErrWrongType)
}

func testTxPipeline(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	require.NoError(t, st.ZAdd(ctx, "rank", store.Z{Score: 9, Member: "item:old"}))

	tx := st.TxPipeline()
	tx.Del("rank")
	tx.HSet("item:1", map[string]string{"id": "1"})
	tx.ZAdd("rank", store.Z{Score: 2, Member: "item:1"})
	tx.HSet("item:2", map[string]string{"id": "2"})
	tx.ZAdd("rank", store.Z{Score: 4, Member: "item:2"})
	assert.Equal(t, 5, tx.Len())
	require.NoError(t, tx.Exec(ctx))

	got, err := st.ZRevRangeWithScores(ctx, "rank", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []store.Z{{Score: 4, Member: "item:2"}, {Score: 2, Member: "item:1"}}, got)
}

func testPipelineReplies(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	require.NoError(t, st.HSet(ctx, "item:1", map[string]string{"id": "1", "title": "x"}))

	p := st.Pipeline()
	r1 := p.HGetAll("item:1")
	r2 := p.HGetAll("item:2")
	p.LPush("l", "a")
	p.LPush("l", "b")
	p.LTrim("l", 0, 0)
	p.Expire("l", time.Hour)
	require.NoError(t, p.Exec(ctx))

	require.NoError(t, r1.Err)
	assert.Equal(t, map[string]string{"id": "1", "title": "x"}, r1.Fields)
	require.NoError(t, r2.Err)
	assert.Empty(t, r2.Fields)

	got, err := st.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)
}
