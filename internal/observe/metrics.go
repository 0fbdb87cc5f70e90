// Package observe provides observability primitives for wakebot:
// OpenTelemetry metrics, tracing, and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. Tests should use [NewMetrics]
// with a private [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all wakebot metrics.
const meterName = "github.com/wakebot/wakebot"

// AttrGesture labels gesture counters with the classified kind
// (single/double/triple).
func AttrGesture(kind string) attribute.KeyValue {
	return attribute.String("gesture", kind)
}

// AttrStatus labels action dispatch metrics with the dispatch outcome
// ("ok" or "error").
func AttrStatus(status string) attribute.KeyValue {
	return attribute.String("status", status)
}

// Metrics holds all OpenTelemetry metric instruments for the daemon.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// RMSLevel tracks the loudness of each processed block. Its
	// distribution is what the calibration tool reasons about, so the
	// buckets span the quiet-room-to-clap range of 16-bit RMS values.
	RMSLevel metric.Float64Histogram

	// PullDuration tracks how long each block pull took, including any
	// recovery cycles.
	PullDuration metric.Float64Histogram

	// BlocksProcessed counts blocks that made it through the pipeline.
	BlocksProcessed metric.Int64Counter

	// Gestures counts emitted gestures. Use with [AttrGesture].
	Gestures metric.Int64Counter

	// StreamFaults counts transient read faults absorbed by the source.
	StreamFaults metric.Int64Counter

	// StreamReopens counts successful device reopens after a fault.
	StreamReopens metric.Int64Counter

	// ActionsDispatched counts gesture actions handed to the dispatcher.
	// Use with [AttrGesture] and [AttrStatus].
	ActionsDispatched metric.Int64Counter

	// DetectionActive is 1 while clap detection is enabled and 0 while
	// paused via the triple-clap toggle.
	DetectionActive metric.Int64UpDownCounter
}

// rmsBuckets spans 16-bit RMS loudness from room silence to a close clap.
var rmsBuckets = []float64{
	50, 100, 250, 500, 1000, 2000, 3000, 5000, 8000, 12000, 20000, 32768,
}

// pullBuckets covers block pull latency: tens of milliseconds nominally,
// seconds when a reopen cycle was absorbed.
var pullBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RMSLevel, err = m.Float64Histogram("wakebot.rms.level",
		metric.WithDescription("RMS loudness per processed sample block."),
		metric.WithExplicitBucketBoundaries(rmsBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PullDuration, err = m.Float64Histogram("wakebot.capture.pull.duration",
		metric.WithDescription("Time to pull one sample block, including fault recovery."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(pullBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BlocksProcessed, err = m.Int64Counter("wakebot.blocks.processed",
		metric.WithDescription("Sample blocks pulled and fed through the detector."),
	); err != nil {
		return nil, err
	}
	if met.Gestures, err = m.Int64Counter("wakebot.gestures",
		metric.WithDescription("Classified clap gestures emitted by the detector."),
	); err != nil {
		return nil, err
	}
	if met.StreamFaults, err = m.Int64Counter("wakebot.capture.faults",
		metric.WithDescription("Transient stream read faults absorbed by the source."),
	); err != nil {
		return nil, err
	}
	if met.StreamReopens, err = m.Int64Counter("wakebot.capture.reopens",
		metric.WithDescription("Successful device reopens after a read fault."),
	); err != nil {
		return nil, err
	}
	if met.ActionsDispatched, err = m.Int64Counter("wakebot.actions.dispatched",
		metric.WithDescription("Gesture actions handed to the dispatcher."),
	); err != nil {
		return nil, err
	}
	if met.DetectionActive, err = m.Int64UpDownCounter("wakebot.detection.active",
		metric.WithDescription("1 while detection is enabled, 0 while paused."),
	); err != nil {
		return nil, err
	}
	return met, nil
}
