// Package observe provides observability primitives for the voicecore
// audio pipeline: OpenTelemetry metrics, tracing, and the provider setup
// that bridges them to Prometheus.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all voicecore metrics.
const meterName = "github.com/handsfree-io/voicecore"

// Metrics holds all OpenTelemetry metric instruments for the audio core.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// FrameDuration tracks end-to-end per-frame processing latency. Frames
	// must complete well inside one frame period (20 ms) to keep real time.
	FrameDuration metric.Float64Histogram

	// StageDuration tracks per-stage processing latency. Use with attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// FramesProcessed counts frames through the pipeline.
	FramesProcessed metric.Int64Counter

	// FramesDegraded counts frames where a stage failed and its input was
	// passed through instead. Use with attribute:
	//   attribute.String("stage", ...)
	FramesDegraded metric.Int64Counter

	// EngineFallbacks counts external engine failures that fell back to the
	// built-in algorithm. Use with attribute:
	//   attribute.String("engine", "aec"|"vad")
	EngineFallbacks metric.Int64Counter

	// QualityChecks counts quality verdicts. Use with attribute:
	//   attribute.String("verdict", "acceptable"|"degraded")
	QualityChecks metric.Int64Counter

	// ActiveCalls tracks the number of live voice sessions.
	ActiveCalls metric.Int64UpDownCounter
}

// frameBuckets defines histogram bucket boundaries (in seconds) scaled for
// per-frame DSP latencies, which sit far below typical request latencies.
var frameBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FrameDuration, err = m.Float64Histogram("voicecore.pipeline.frame.duration",
		metric.WithDescription("End-to-end processing latency of one capture frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("voicecore.pipeline.stage.duration",
		metric.WithDescription("Processing latency of a single pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesProcessed, err = m.Int64Counter("voicecore.pipeline.frames",
		metric.WithDescription("Frames processed by the pipeline."),
	); err != nil {
		return nil, err
	}
	if met.FramesDegraded, err = m.Int64Counter("voicecore.pipeline.frames.degraded",
		metric.WithDescription("Frames where a stage failed and was bypassed."),
	); err != nil {
		return nil, err
	}
	if met.EngineFallbacks, err = m.Int64Counter("voicecore.engine.fallbacks",
		metric.WithDescription("External engine failures handled by the built-in fallback."),
	); err != nil {
		return nil, err
	}
	if met.QualityChecks, err = m.Int64Counter("voicecore.quality.checks",
		metric.WithDescription("Quality verdicts emitted by the monitor."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCalls, err = m.Int64UpDownCounter("voicecore.calls.active",
		metric.WithDescription("Live voice sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Stage returns the attribute set identifying a pipeline stage.
func Stage(name string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("stage", name))
}

// Engine returns the attribute set identifying an external engine kind.
func Engine(kind string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("engine", kind))
}

// Verdict returns the attribute set for a quality check outcome.
func Verdict(acceptable bool) metric.MeasurementOption {
	v := "acceptable"
	if !acceptable {
		v = "degraded"
	}
	return metric.WithAttributes(attribute.String("verdict", v))
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns the process-wide [Metrics] instance backed by the
// globally registered meter provider. Instruments are created on first use;
// creation errors are surfaced as no-op instruments by the OTel SDK.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// The global provider never fails instrument creation; a custom
			// one that does still leaves every instrument usable.
			m, _ = NewMetrics(noop.NewMeterProvider())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
