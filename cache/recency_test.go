package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecency_KeepsLastTwenty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, _ := newMemStore(t)

	m := &recordingMetrics{}
	r := NewRecencyTracker(st, RecencyOptions{Metrics: m})
	for i := int64(1); i <= 25; i++ {
		require.NoError(t, r.RecordView(ctx, "42", i))
	}

	got, err := r.Recent(ctx, "42")
	require.NoError(t, err)
	want := make([]int64, 0, 20)
	for i := int64(25); i >= 6; i-- {
		want = append(want, i)
	}
	assert.Equal(t, want, got)

	raw, err := st.LRange(ctx, "subject:42:recent_views", 0, -1)
	require.NoError(t, err)
	assert.Len(t, raw, 20, "log is trimmed in the store, not just on read")
	assert.Equal(t, 25, m.views)
	assert.Equal(t, 1, m.recent)
}

func TestRecency_DuplicatesAllowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, _ := newMemStore(t)

	r := NewRecencyTracker(st, RecencyOptions{})
	for _, id := range []int64{7, 7, 3, 7} {
		require.NoError(t, r.RecordView(ctx, "u", id))
	}
	got, err := r.Recent(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 3, 7, 7}, got)
}

// Each view pushes the TTL out again; an idle log expires.
func TestRecency_TTLResetOnView(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, tx := range []bool{false, true} {
		st, clk := newMemStore(t)
		r := NewRecencyTracker(st, RecencyOptions{Transactional: tx})

		require.NoError(t, r.RecordView(ctx, "s", 1))
		clk.add(20 * time.Hour)
		require.NoError(t, r.RecordView(ctx, "s", 2))
		clk.add(20 * time.Hour) // 40h after the first view, 20h after the last

		got, err := r.Recent(ctx, "s")
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 1}, got, "transactional=%v", tx)

		clk.add(4*time.Hour + time.Second)
		got, err = r.Recent(ctx, "s")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got, "transactional=%v", tx)
	}
}

func TestRecency_CustomBounds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, clk := newMemStore(t)

	r := NewRecencyTracker(st, RecencyOptions{MaxEntries: 3, TTL: time.Minute, KeyPrefix: "user:"})
	assert.Equal(t, "user:9:recent_views", r.Key("9"))

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, r.RecordView(ctx, "9", i))
	}
	got, err := r.Recent(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 3}, got)

	clk.add(2 * time.Minute)
	got, err = r.Recent(ctx, "9")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecency_SkipsMalformedEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, _ := newMemStore(t)

	r := NewRecencyTracker(st, RecencyOptions{})
	require.NoError(t, r.RecordView(ctx, "s", 1))
	require.NoError(t, st.LPush(ctx, r.Key("s"), "garbage"))
	require.NoError(t, r.RecordView(ctx, "s", 2))

	got, err := r.Recent(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, got)
}

func TestRecency_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, _ := newMemStore(t)

	r := NewRecencyTracker(st, RecencyOptions{})
	assert.ErrorIs(t, r.RecordView(ctx, "", 1), ErrInvalidSubject)
	_, err := r.Recent(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSubject)

	// a non-list value under the key
	require.NoError(t, st.HSet(ctx, r.Key("h"), map[string]string{"f": "v"}))
	assert.ErrorIs(t, r.RecordView(ctx, "h", 1), ErrStoreUnavailable)
	_, err = r.Recent(ctx, "h")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	require.NoError(t, st.Close())
	assert.ErrorIs(t, r.RecordView(ctx, "s", 1), ErrStoreUnavailable)
	_, err = r.Recent(ctx, "s")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

// Subjects do not share logs.
func TestRecency_SubjectsIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, _ := newMemStore(t)

	r := NewRecencyTracker(st, RecencyOptions{})
	for s := 0; s < 5; s++ {
		require.NoError(t, r.RecordView(ctx, strconv.Itoa(s), int64(s*100)))
	}
	for s := 0; s < 5; s++ {
		got, err := r.Recent(ctx, strconv.Itoa(s))
		require.NoError(t, err)
		assert.Equal(t, []int64{int64(s * 100)}, got)
	}
}
