package pipeline

import (
	"log/slog"
	"math"

	"github.com/handsfree-io/voicecore/pkg/frame"
	"github.com/handsfree-io/voicecore/pkg/provider/vad"
)

// VoiceActivityStage classifies frames as voice or non-voice. It delegates
// to an external [vad.Detector] when one is configured, handing it a fixed
// 10 ms sub-window in the 16-bit domain; on delegate absence or failure it
// falls back to an RMS energy threshold. The decision itself is stateless.
type VoiceActivityStage struct {
	detector   vad.Detector // optional
	sampleRate int
	subWindow  int // samples in the detector's 10 ms sub-window
	threshold  float64

	onFallback func() // observability hook, may be nil
}

// NewVoiceActivityStage creates the stage. detector may be nil to always use
// the energy threshold.
func NewVoiceActivityStage(sampleRate int, threshold float64, detector vad.Detector) *VoiceActivityStage {
	return &VoiceActivityStage{
		detector:   detector,
		sampleRate: sampleRate,
		subWindow:  sampleRate / 100,
		threshold:  threshold,
	}
}

// IsVoice reports whether the frame contains speech.
func (v *VoiceActivityStage) IsVoice(samples []float64) bool {
	if v.detector != nil {
		voice, err := v.detector.Classify(frame.Bytes(v.fitSubWindow(samples)), v.sampleRate)
		if err == nil {
			return voice
		}
		slog.Warn("voice detector failed, using energy threshold", "err", err)
		if v.onFallback != nil {
			v.onFallback()
		}
	}
	return rms(samples) > v.threshold
}

// fitSubWindow truncates or zero-pads samples to the detector's sub-window.
func (v *VoiceActivityStage) fitSubWindow(samples []float64) []float64 {
	if len(samples) == v.subWindow {
		return samples
	}
	if len(samples) > v.subWindow {
		return samples[:v.subWindow]
	}
	padded := make([]float64, v.subWindow)
	copy(padded, samples)
	return padded
}

// rms returns the root-mean-square level of samples, 0 for an empty slice.
func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
