package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	commits         *prometheus.CounterVec
	commitDuration  prometheus.Histogram
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	lowStock        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "makerspace",
			Name:      "usage_commits_total",
			Help:      "Usage commits by outcome.",
		}, []string{"outcome"}),
		commitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "makerspace",
			Name:      "usage_commit_duration_seconds",
			Help:      "Time spent committing staged usage.",
			Buckets:   prometheus.DefBuckets,
		}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "makerspace",
			Name:      "catalog_refreshes_total",
			Help:      "Catalog refreshes by result.",
		}, []string{"result"}),
		refreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "makerspace",
			Name:      "catalog_refresh_duration_seconds",
			Help:      "Time spent loading materials and machines.",
			Buckets:   prometheus.DefBuckets,
		}),
		lowStock: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "makerspace",
			Name:      "low_stock_alerts_total",
			Help:      "Commits that left a material at or below its threshold.",
		}, []string{"material_id"}),
	}
}

func (m *Metrics) CommitObserved(outcome string, took time.Duration) {
	m.commits.WithLabelValues(outcome).Inc()
	m.commitDuration.Observe(took.Seconds())
}

func (m *Metrics) LowStockObserved(materialID string) {
	m.lowStock.WithLabelValues(materialID).Inc()
}

func (m *Metrics) CatalogRefreshed(ok bool, took time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.refreshes.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(took.Seconds())
}
