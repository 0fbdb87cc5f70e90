package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestGestureCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Gestures.Add(ctx, 1, metric.WithAttributes(AttrGesture("single")))
	m.Gestures.Add(ctx, 1, metric.WithAttributes(AttrGesture("double")))
	m.Gestures.Add(ctx, 1, metric.WithAttributes(AttrGesture("double")))

	rm := collect(t, reader)
	found := findMetric(rm, "wakebot.gestures")
	if found == nil {
		t.Fatal("wakebot.gestures not found in collected metrics")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("gesture total = %d, want 3", total)
	}
	if len(sum.DataPoints) != 2 {
		t.Errorf("data points = %d, want 2 (one per gesture kind)", len(sum.DataPoints))
	}
}

func TestRMSHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	for _, v := range []float64{120, 140, 4500} {
		m.RMSLevel.Record(ctx, v)
	}

	rm := collect(t, reader)
	found := findMetric(rm, "wakebot.rms.level")
	if found == nil {
		t.Fatal("wakebot.rms.level not found in collected metrics")
	}

	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}
	if got := hist.DataPoints[0].Count; got != 3 {
		t.Errorf("histogram count = %d, want 3", got)
	}
}

func TestDetectionActiveUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.DetectionActive.Add(ctx, 1)  // started active
	m.DetectionActive.Add(ctx, -1) // triple clap paused it

	rm := collect(t, reader)
	found := findMetric(rm, "wakebot.detection.active")
	if found == nil {
		t.Fatal("wakebot.detection.active not found in collected metrics")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 0 {
		t.Errorf("detection.active = %+v, want single data point of 0", sum.DataPoints)
	}
}
