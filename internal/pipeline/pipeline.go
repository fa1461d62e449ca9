// Package pipeline implements the real-time voice enhancement chain that
// turns a raw microphone stream into a clean, level-controlled, echo-free
// stream suitable for a narrow-band voice link.
//
// The stage order is fixed: high-pass → echo cancellation → noise reduction
// → automatic gain control. Stages can be disabled individually via
// [Config] but never reordered. Each stage owns its running state (filter
// history, adaptive weights, noise profile, gain); a new call gets a
// freshly constructed pipeline. Apart from the echo reference buffer —
// written by the playback path, read by the capture path — a Pipeline is
// intended for use by a single capture worker goroutine.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/handsfree-io/voicecore/internal/observe"
	"github.com/handsfree-io/voicecore/pkg/frame"
	"github.com/handsfree-io/voicecore/pkg/provider/aec"
	"github.com/handsfree-io/voicecore/pkg/provider/vad"
)

// Metrics is a snapshot of pipeline state for the metrics surface.
type Metrics struct {
	FramesProcessed     int
	AvgGain             float64
	AvgGainDb           float64
	NoiseProfileReady   bool
	AECEnabled          bool
	NoiseReductionLevel int
}

// options collects optional collaborators injected at construction.
type options struct {
	engine   aec.Engine
	detector vad.Detector
	obs      *observe.Metrics
}

// Option injects an optional collaborator into [New].
type Option func(*options)

// WithEchoEngine installs an external acoustic echo canceller. Without one
// the built-in NLMS filter handles every frame.
func WithEchoEngine(e aec.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithVoiceDetector installs an external voice activity detector. Without
// one the energy threshold handles every frame.
func WithVoiceDetector(d vad.Detector) Option {
	return func(o *options) { o.detector = d }
}

// WithObserver records stage durations, degradations, and engine fallbacks
// to the given instruments.
func WithObserver(m *observe.Metrics) Option {
	return func(o *options) { o.obs = m }
}

// Pipeline orchestrates the processing stages for one call.
type Pipeline struct {
	cfg   Config
	codec *frame.Codec
	obs   *observe.Metrics

	// Stages; nil when disabled by config. The voice stage is always
	// present: it gates noise-profile updates and feeds the monitor.
	highpass *HighPassStage
	echo     *EchoCancellationStage
	voice    *VoiceActivityStage
	noise    *NoiseReductionStage
	agc      *AutomaticGainStage

	frames int
}

// New constructs a pipeline from cfg. Construction-time misconfiguration
// (invalid frame size, cutoff outside (0, Nyquist), FFT shorter than a
// frame) is fatal; per-frame failures later degrade gracefully instead.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	codec, err := frame.NewCodec(cfg.FrameSize())
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, codec: codec, obs: o.obs}

	if cfg.EnableHighPass {
		p.highpass, err = NewHighPassStage(cfg.HighPassCutoffHz, cfg.SampleRate)
		if err != nil {
			return nil, err
		}
	}

	p.voice = NewVoiceActivityStage(cfg.SampleRate, cfg.VoiceRMSThreshold, o.detector)

	if cfg.EnableEchoCancel {
		if cfg.EchoTaps <= 0 {
			return nil, fmt.Errorf("pipeline: %w: echo taps %d", ErrInvalidFilterConfig, cfg.EchoTaps)
		}
		p.echo = NewEchoCancellationStage(cfg.EchoTaps, cfg.EchoStepSize, o.engine)
	}

	if cfg.NoiseReductionLevel > 0 {
		if cfg.FFTSize < cfg.FrameSize() {
			return nil, fmt.Errorf("pipeline: %w: fft size %d < frame size %d",
				ErrInvalidFilterConfig, cfg.FFTSize, cfg.FrameSize())
		}
		p.noise = NewNoiseReductionStage(cfg, p.voice)
	}

	if cfg.EnableAGC {
		p.agc = NewAutomaticGainStage(cfg)
	}

	if o.obs != nil {
		if p.echo != nil {
			p.echo.onFallback = func() {
				o.obs.EngineFallbacks.Add(context.Background(), 1, observe.Engine("aec"))
			}
		}
		p.voice.onFallback = func() {
			o.obs.EngineFallbacks.Add(context.Background(), 1, observe.Engine("vad"))
		}
	}

	slog.Info("pipeline initialized",
		"sample_rate", cfg.SampleRate,
		"frame_ms", cfg.FrameMs,
		"highpass", cfg.EnableHighPass,
		"aec", cfg.EnableEchoCancel,
		"aec_engine", o.engine != nil,
		"noise_reduction_level", cfg.NoiseReductionLevel,
		"agc", cfg.EnableAGC,
	)
	return p, nil
}

// Process runs one raw capture frame through the enabled stages and returns
// the processed frame, always the same length as the input. The only error
// is [frame.ErrInvalidFrameSize], which signals a collaborator contract
// violation; any stage-internal failure instead degrades to that stage's
// input for the one frame.
func (p *Pipeline) Process(raw []byte) ([]byte, error) {
	samples, err := p.codec.ToSamples(raw)
	if err != nil {
		return nil, err
	}

	if p.highpass != nil {
		samples = p.runStage("highpass", samples, p.highpass.Process)
	}
	if p.echo != nil {
		samples = p.runStage("echo_cancel", samples, p.echo.Process)
	}
	if p.noise != nil {
		samples = p.runStage("noise_reduction", samples, p.noise.Process)
	}
	if p.agc != nil {
		samples = p.runStage("agc", samples, p.agc.Process)
	}

	p.frames++
	return p.codec.ToBytes(samples)
}

// runStage executes one stage with a degradation guard: a panic or a
// wrong-length result yields the stage's input instead of aborting the call.
func (p *Pipeline) runStage(name string, in []float64, fn func([]float64) []float64) (out []float64) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline stage failed, passing frame through", "stage", name, "panic", r)
			p.degraded(name)
			out = in
			return
		}
		if p.obs != nil {
			p.obs.StageDuration.Record(context.Background(), time.Since(start).Seconds(), observe.Stage(name))
		}
	}()

	out = fn(in)
	if len(out) != len(in) {
		slog.Error("pipeline stage changed frame length, passing frame through",
			"stage", name, "got", len(out), "want", len(in))
		p.degraded(name)
		out = in
	}
	return out
}

func (p *Pipeline) degraded(stage string) {
	if p.obs != nil {
		p.obs.FramesDegraded.Add(context.Background(), 1, observe.Stage(stage))
	}
}

// IsVoice reports whether a raw frame contains speech, using the same
// detector (or fallback threshold) that gates noise-profile updates.
func (p *Pipeline) IsVoice(raw []byte) (bool, error) {
	samples, err := p.codec.ToSamples(raw)
	if err != nil {
		return false, err
	}
	return p.voice.IsVoice(samples), nil
}

// UpdateReference feeds one speaker frame into the echo reference buffer.
// The playback path must call this before the corresponding physical
// output; it is safe to call from a different goroutine than Process.
// Chunk sizes follow the transport, not the capture frame size.
func (p *Pipeline) UpdateReference(raw []byte) {
	if p.echo == nil {
		return
	}
	p.echo.UpdateReference(frame.Samples(raw))
}

// ResetNoiseProfile clears the noise profile and forces recalibration, for
// use when the acoustic environment changes.
func (p *Pipeline) ResetNoiseProfile() {
	if p.noise == nil {
		return
	}
	p.noise.Reset()
	slog.Info("noise profile reset")
}

// Metrics returns a snapshot of the pipeline counters.
func (p *Pipeline) Metrics() Metrics {
	avgGain := 1.0
	if p.agc != nil {
		avgGain = p.agc.AverageGain()
	}
	return Metrics{
		FramesProcessed:     p.frames,
		AvgGain:             avgGain,
		AvgGainDb:           dB(avgGain),
		NoiseProfileReady:   p.noise != nil && p.noise.ProfileReady(),
		AECEnabled:          p.echo != nil,
		NoiseReductionLevel: p.cfg.NoiseReductionLevel,
	}
}

// FrameSize returns the samples per frame this pipeline was built for.
func (p *Pipeline) FrameSize() int { return p.codec.FrameSize() }

// dB converts a linear amplitude to decibels with a -100 dB floor.
func dB(v float64) float64 {
	if v <= 0 {
		return -100
	}
	return 20 * math.Log10(v)
}
