package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CommitObserved("ok", 10*time.Millisecond)
	m.CommitObserved("ok", 20*time.Millisecond)
	m.CommitObserved("insufficient_stock", time.Millisecond)
	m.CatalogRefreshed(true, time.Millisecond)
	m.CatalogRefreshed(false, time.Millisecond)
	m.LowStockObserved("m1")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commits.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commits.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lowStock.WithLabelValues("m1")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.commits), "one series per outcome")
}
