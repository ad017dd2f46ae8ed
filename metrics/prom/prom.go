// Package prom exports cache.Metrics as Prometheus collectors.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/popcache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	refreshes   *prometheus.CounterVec
	refreshTime prometheus.Histogram
	ranked      prometheus.Gauge
	topReads    prometheus.Counter
	degraded    prometheus.Counter
	views       prometheus.Counter
	recentReads prometheus.Counter
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "refreshes_total",
				Help:        "Ranking refreshes by outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		refreshTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "refresh_duration_seconds",
			Help:        "Time spent in Refresh, source query included",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14),
			ConstLabels: constLabels,
		}),
		ranked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "ranked_items",
			Help:        "Items in the last committed ranking",
			ConstLabels: constLabels,
		}),
		topReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "topn_reads_total",
			Help:        "TopN calls that reached the store",
			ConstLabels: constLabels,
		}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "degraded_entries_total",
			Help:        "TopN entries served without a readable item record",
			ConstLabels: constLabels,
		}),
		views: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "views_recorded_total",
			Help:        "Views appended to recency logs",
			ConstLabels: constLabels,
		}),
		recentReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "recent_reads_total",
			Help:        "Recency log reads",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.refreshes, a.refreshTime, a.ranked, a.topReads, a.degraded, a.views, a.recentReads)
	return a
}

// Refresh counts the outcome and, on success, updates the ranked gauge.
func (a *Adapter) Refresh(o cache.RefreshOutcome, items int, took time.Duration) {
	a.refreshes.WithLabelValues(o.String()).Inc()
	a.refreshTime.Observe(took.Seconds())
	if o == cache.RefreshOK {
		a.ranked.Set(float64(items))
	}
}

func (a *Adapter) TopN(_, degraded int) {
	a.topReads.Inc()
	a.degraded.Add(float64(degraded))
}

func (a *Adapter) ViewRecorded() { a.views.Inc() }

func (a *Adapter) RecentRead(int) { a.recentReads.Inc() }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
