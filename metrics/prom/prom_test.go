package prom

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/popcache/cache"
)

func TestAdapter_Exports(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	a := New(reg, "popcache", "test", prometheus.Labels{"app": "unit"})

	a.Refresh(cache.RefreshOK, 10, 5*time.Millisecond)
	a.Refresh(cache.RefreshSourceError, 0, time.Millisecond)
	a.Refresh(cache.RefreshOK, 7, 3*time.Millisecond)
	a.TopN(10, 2)
	a.TopN(3, 0)
	a.ViewRecorded()
	a.RecentRead(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.refreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.refreshes.WithLabelValues("source_error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(a.ranked), "gauge tracks the last successful refresh")
	assert.Equal(t, 2.0, testutil.ToFloat64(a.topReads))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.degraded))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.views))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.recentReads))

	n, err := testutil.GatherAndCount(reg, "popcache_test_refresh_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expected := `
# HELP popcache_test_views_recorded_total Views appended to recency logs
# TYPE popcache_test_views_recorded_total counter
popcache_test_views_recorded_total{app="unit"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "popcache_test_views_recorded_total"))
}

func TestAdapter_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg, "popcache", "dup", nil)
	assert.Panics(t, func() { New(reg, "popcache", "dup", nil) })
}
