// Package monitor observes the voice stream and reports its health: sliding
// RMS/peak levels, SNR against an estimated noise floor, clipping, voice
// activity, codec identity, and an end-to-end latency estimate.
//
// A Monitor observes frames independently of the processing pipeline — it
// never modifies audio. It is intended for single-goroutine (capture worker)
// use; a new call gets a fresh monitor.
package monitor

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/handsfree-io/voicecore/pkg/frame"
)

// Quality verdict thresholds, from field experience with narrow-band links.
const (
	maxClippingPercent = 1.0
	minSNRDb           = 10.0
	minSNRFrames       = 50
	minRMSDb           = -40.0
	maxLatencyMs       = 300.0
)

// initialNoiseFloor is the noise-floor estimate before any non-voice frames
// have been observed.
const initialNoiseFloor = 1e-6

// Config holds the monitor's window sizes and codec identity defaults.
type Config struct {
	// SampleRate in Hz; with FrameMs it fixes the frame-size contract.
	SampleRate int

	// FrameMs is the frame period in milliseconds.
	FrameMs int

	// WindowSize is how many frames the sliding statistics average over.
	WindowSize int

	// NoiseFloorWindow is how many non-voice RMS samples feed the
	// noise-floor median.
	NoiseFloorWindow int

	// TimestampWindow bounds the capture/output timestamp buffers.
	TimestampWindow int

	// LatencySamples is how many recent capture timestamps the latency
	// estimator inspects.
	LatencySamples int

	// Codec is the initial codec label ("CVSD" until renegotiated).
	Codec string
}

// DefaultConfig returns the production defaults: 16 kHz, 20 ms frames,
// 100-frame statistics window.
func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		FrameMs:          20,
		WindowSize:       100,
		NoiseFloorWindow: 50,
		TimestampWindow:  10,
		LatencySamples:   5,
		Codec:            "CVSD",
	}
}

// frameSize returns the samples per frame.
func (c Config) frameSize() int {
	return c.SampleRate * c.FrameMs / 1000
}

// Metrics is a point-in-time snapshot of stream quality.
type Metrics struct {
	Timestamp            time.Time
	RMSDb                float64
	PeakDb               float64
	SNRDb                float64
	ClippingPercent      float64
	VoiceActivityPercent float64
	Codec                string
	SampleRate           int
	LatencyMs            float64
}

// Statistics extends Metrics with whole-call counters.
type Statistics struct {
	Metrics
	FramesMonitored   int
	ClippingFrameRate float64 // % of frames containing any clipped sample
	NoiseFloorDb      float64
}

// Option configures a Monitor at construction.
type Option func(*Monitor)

// WithClock substitutes the time source, for deterministic latency tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor computes sliding-window quality statistics over observed frames.
type Monitor struct {
	cfg Config
	now func() time.Time

	codec      string
	sampleRate int

	rmsWindow   *floatRing
	peakWindow  *floatRing
	clipWindow  *floatRing
	voiceWindow *floatRing

	noiseFloor   float64
	noiseSamples []float64 // last NoiseFloorWindow non-voice RMS values

	captureTimes *timeRing
	outputTimes  *timeRing

	framesMonitored int
	clippingFrames  int
}

// New creates a Monitor from cfg.
func New(cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:          cfg,
		now:          time.Now,
		codec:        cfg.Codec,
		sampleRate:   cfg.SampleRate,
		rmsWindow:    newFloatRing(cfg.WindowSize),
		peakWindow:   newFloatRing(cfg.WindowSize),
		clipWindow:   newFloatRing(cfg.WindowSize),
		voiceWindow:  newFloatRing(cfg.WindowSize),
		noiseFloor:   initialNoiseFloor,
		captureTimes: newTimeRing(cfg.TimestampWindow),
		outputTimes:  newTimeRing(cfg.TimestampWindow),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// AnalyzeFrame folds one raw PCM frame into the sliding statistics. hasVoice
// comes from the pipeline's voice activity decision; non-voice frames with
// measurable energy feed the noise-floor estimator. Returns
// [frame.ErrInvalidFrameSize] on a mis-sized frame.
func (m *Monitor) AnalyzeFrame(pcm []byte, hasVoice bool) error {
	want := m.cfg.frameSize() * 2
	if len(pcm) != want {
		return fmt.Errorf("monitor: %w: got %d bytes, want %d", frame.ErrInvalidFrameSize, len(pcm), want)
	}

	samples := frame.Samples(pcm)

	var sum, peak float64
	clipped := 0
	for i, s := range samples {
		sum += s * s
		if a := math.Abs(s); a > peak {
			peak = a
		}
		// Clipping is judged in the int16 domain: at or beyond full scale.
		raw := int(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		if raw >= 32767 || raw <= -32767 {
			clipped++
		}
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	clipPercent := float64(clipped) / float64(len(samples)) * 100

	m.rmsWindow.push(rms)
	m.peakWindow.push(peak)
	m.clipWindow.push(clipPercent)
	if clipPercent > 0 {
		m.clippingFrames++
	}

	if hasVoice {
		m.voiceWindow.push(1)
	} else {
		m.voiceWindow.push(0)
		if rms > 0 {
			m.updateNoiseFloor(rms)
		}
	}

	m.framesMonitored++
	return nil
}

// updateNoiseFloor tracks the median of the most recent non-voice RMS
// samples once a full window has been collected.
func (m *Monitor) updateNoiseFloor(rms float64) {
	m.noiseSamples = append(m.noiseSamples, rms)
	if len(m.noiseSamples) > m.cfg.NoiseFloorWindow {
		m.noiseSamples = m.noiseSamples[len(m.noiseSamples)-m.cfg.NoiseFloorWindow:]
		m.noiseFloor = median(m.noiseSamples)
	}
}

// median returns the middle value of vs (mean of the middle pair for even
// lengths). vs must be non-empty; it is not modified.
func median(vs []float64) float64 {
	sorted := slices.Clone(vs)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// RecordCaptureTimestamp marks the arrival of a capture frame.
func (m *Monitor) RecordCaptureTimestamp() {
	m.captureTimes.push(m.now())
}

// RecordOutputTimestamp marks a frame leaving toward the transport.
func (m *Monitor) RecordOutputTimestamp() {
	m.outputTimes.push(m.now())
}

// EstimateLatency estimates end-to-end latency in milliseconds by pairing
// each recent capture timestamp with the closest later output timestamp.
// Returns 0 until both buffers hold at least two samples.
func (m *Monitor) EstimateLatency() float64 {
	if m.captureTimes.len() < 2 || m.outputTimes.len() < 2 {
		return 0
	}

	outputs := m.outputTimes.last(m.cfg.LatencySamples)
	var total float64
	count := 0
	for _, capture := range m.captureTimes.last(m.cfg.LatencySamples) {
		closest := outputs[0]
		for _, out := range outputs[1:] {
			if absDuration(out.Sub(capture)) < absDuration(closest.Sub(capture)) {
				closest = out
			}
		}
		if closest.After(capture) {
			total += float64(closest.Sub(capture)) / float64(time.Millisecond)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// SetCodec relabels the stream after codec negotiation (e.g. CVSD → mSBC).
func (m *Monitor) SetCodec(codec string, sampleRate int) {
	m.codec = codec
	m.sampleRate = sampleRate
	slog.Info("codec updated", "codec", codec, "sample_rate", sampleRate)
}

// CurrentMetrics returns the sliding-window quality snapshot.
func (m *Monitor) CurrentMetrics() Metrics {
	avgRMS := m.rmsWindow.mean()
	avgPeak := m.peakWindow.mean()

	snr := 0.0
	if m.noiseFloor > 0 && avgRMS > m.noiseFloor {
		snr = 20 * math.Log10(avgRMS/m.noiseFloor)
	}

	return Metrics{
		Timestamp:            m.now(),
		RMSDb:                dB(avgRMS),
		PeakDb:               dB(avgPeak),
		SNRDb:                snr,
		ClippingPercent:      m.clipWindow.mean(),
		VoiceActivityPercent: m.voiceWindow.mean() * 100,
		Codec:                m.codec,
		SampleRate:           m.sampleRate,
		LatencyMs:            m.EstimateLatency(),
	}
}

// Statistics returns CurrentMetrics plus whole-call counters.
func (m *Monitor) Statistics() Statistics {
	clipRate := 0.0
	if m.framesMonitored > 0 {
		clipRate = float64(m.clippingFrames) / float64(m.framesMonitored) * 100
	}
	return Statistics{
		Metrics:           m.CurrentMetrics(),
		FramesMonitored:   m.framesMonitored,
		ClippingFrameRate: clipRate,
		NoiseFloorDb:      dB(m.noiseFloor),
	}
}

// QualityAcceptable reports whether the stream currently meets the quality
// bar, with a human-readable reason when it does not.
func (m *Monitor) QualityAcceptable() (bool, string) {
	metrics := m.CurrentMetrics()

	if metrics.ClippingPercent > maxClippingPercent {
		return false, fmt.Sprintf("excessive clipping: %.1f%%", metrics.ClippingPercent)
	}
	if metrics.SNRDb < minSNRDb && m.framesMonitored > minSNRFrames {
		return false, fmt.Sprintf("low SNR: %.1fdB", metrics.SNRDb)
	}
	if metrics.RMSDb < minRMSDb {
		return false, fmt.Sprintf("signal too quiet: %.1fdB", metrics.RMSDb)
	}
	if metrics.LatencyMs > maxLatencyMs {
		return false, fmt.Sprintf("high latency: %.0fms", metrics.LatencyMs)
	}
	return true, "quality OK"
}

// Reset clears all windows, timestamps, counters, and noise-floor state.
func (m *Monitor) Reset() {
	m.rmsWindow.reset()
	m.peakWindow.reset()
	m.clipWindow.reset()
	m.voiceWindow.reset()
	m.captureTimes.reset()
	m.outputTimes.reset()
	m.noiseSamples = nil
	m.noiseFloor = initialNoiseFloor
	m.framesMonitored = 0
	m.clippingFrames = 0
	slog.Info("audio monitor reset")
}

// dB converts a linear amplitude to decibels with a -100 dB floor.
func dB(v float64) float64 {
	if v <= 0 {
		return -100
	}
	return 20 * math.Log10(v)
}
