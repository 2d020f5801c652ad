package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBackendMetrics(reg)
	m.ObserveCall("clients.list", "ok", 0.2)
	m.ObserveCall("clients.list", "http_5xx", 1.5)
	m.ObserveRetry("clients.list")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsTotal.WithLabelValues("clients.list", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("clients.list")))
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest("/api/clients", "GET", "2xx", 0.01)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/clients", "GET", "2xx")))
}

func TestMetricsNilSafe(t *testing.T) {
	var b *BackendMetrics
	b.ObserveCall("op", "ok", 0.1)
	b.ObserveRetry("op")
	var h *HTTPMetrics
	h.ObserveRequest("/", "GET", "2xx", 0.1)
}

func TestSnapshotBackendLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBackendMetrics(reg)
	m.ObserveCall("clients.list", "ok", 0.07)
	m.ObserveCall("clients.list", "ok", 0.08)
	m.ObserveCall("appointments.list", "ok", 0.09)
	m.ObserveCall("appointments.list", "ok", 0.3)
	m.ObserveCall("appointments.list", "network", 20)

	snap := SnapshotBackendLatency(reg)
	require.Equal(t, int64(4), snap.Total)
	assert.InDelta(t, 83.3, snap.P50Ms, 0.5)
	assert.Greater(t, snap.P95Ms, 250.0)

	var counted int64
	for _, b := range snap.Buckets {
		counted += b.Count
	}
	assert.Equal(t, int64(4), counted)
}

func TestSnapshotBackendLatencyEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.Equal(t, LatencySnapshot{}, SnapshotBackendLatency(reg))

	NewBackendMetrics(reg).ObserveCall("op", "timeout", 30)
	assert.Equal(t, int64(0), SnapshotBackendLatency(reg).Total)
}

type stubGatherer struct {
	families []*dto.MetricFamily
}

func (s stubGatherer) Gather() ([]*dto.MetricFamily, error) {
	return s.families, nil
}

func TestSnapshotOverflowBucket(t *testing.T) {
	name := BackendLatencyMetric
	metricType := dto.MetricType_HISTOGRAM
	labelName, labelValue := "outcome", "ok"
	count := uint64(2)
	upper := 1.0
	cum := uint64(1)

	g := stubGatherer{families: []*dto.MetricFamily{{
		Name: &name,
		Type: &metricType,
		Metric: []*dto.Metric{{
			Label: []*dto.LabelPair{{Name: &labelName, Value: &labelValue}},
			Histogram: &dto.Histogram{
				SampleCount: &count,
				Bucket:      []*dto.Bucket{{UpperBound: &upper, CumulativeCount: &cum}},
			},
		}},
	}}}

	snap := SnapshotBackendLatency(g)
	require.Len(t, snap.Buckets, 2)
	assert.Equal(t, ">1.0s", snap.Buckets[1].Label)
	assert.Equal(t, int64(1), snap.Buckets[1].Count)
}
