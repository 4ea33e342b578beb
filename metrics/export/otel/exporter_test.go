package otel

import (
	"context"
	"maps"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/meowauth"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot meowauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() meowauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := meowauth.MetricsSnapshot{
		Counters:   maps.Clone(f.snapshot.Counters),
		Histograms: make(map[meowauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T, src Source) (*sdkmetric.ManualReader, *Exporter) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exp, err := New(provider.Meter("meowauth-test"), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return reader, exp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestExporterCollectsCounters(t *testing.T) {
	reader, _ := newReader(t, &fakeSource{
		snapshot: meowauth.MetricsSnapshot{
			Counters: map[meowauth.MetricID]uint64{meowauth.MetricLoginSuccess: 3},
		},
		dropped: 1,
	})
	got := collect(t, reader)

	sum, ok := got["meowauth_login_success_total"].(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("login_success = %#v", got["meowauth_login_success_total"])
	}
	dropped, ok := got["meowauth_audit_dropped_total"].(metricdata.Sum[int64])
	if !ok || dropped.DataPoints[0].Value != 1 {
		t.Fatalf("audit_dropped = %#v", got["meowauth_audit_dropped_total"])
	}
	if g, ok := got["meowauth_authorize_latency_seconds_bucket"].(metricdata.Gauge[int64]); ok && len(g.DataPoints) != 0 {
		t.Fatalf("buckets observed without a histogram: %#v", g)
	}
}

func TestExporterCollectsLatencyBuckets(t *testing.T) {
	reader, _ := newReader(t, &fakeSource{
		snapshot: meowauth.MetricsSnapshot{
			Counters: map[meowauth.MetricID]uint64{},
			Histograms: map[meowauth.MetricID][]uint64{
				meowauth.MetricAuthorizeLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
	})
	got := collect(t, reader)

	gauge, ok := got["meowauth_authorize_latency_seconds_bucket"].(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 8 {
		t.Fatalf("buckets = %#v", got["meowauth_authorize_latency_seconds_bucket"])
	}
	byBound := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		le, ok := dp.Attributes.Value("le")
		if !ok {
			t.Fatalf("bucket without le attribute")
		}
		byBound[le.AsString()] = dp.Value
	}
	if byBound["0.005"] != 1 || byBound["0.05"] != 4 || byBound["+Inf"] != 8 {
		t.Fatalf("cumulative buckets = %v", byBound)
	}
	count, ok := got["meowauth_authorize_latency_seconds_count"].(metricdata.Gauge[int64])
	if !ok || count.DataPoints[0].Value != 8 {
		t.Fatalf("count = %#v", got["meowauth_authorize_latency_seconds_count"])
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	if _, err := New(provider.Meter("meowauth-test"), nil); err != ErrNilSource {
		t.Fatalf("nil source err = %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("nil meter err = %v", err)
	}
	var exp *Exporter
	if err := exp.Close(); err != nil {
		t.Fatalf("nil Close = %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	src := &fakeSource{
		snapshot: meowauth.MetricsSnapshot{
			Counters: map[meowauth.MetricID]uint64{meowauth.MetricLoginSuccess: 1},
			Histograms: map[meowauth.MetricID][]uint64{
				meowauth.MetricAuthorizeLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}
	reader, _ := newReader(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[meowauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
