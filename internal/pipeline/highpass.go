package pipeline

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFilterConfig is returned when a filter is constructed with
// parameters outside their valid range (e.g. a cutoff at or beyond Nyquist).
var ErrInvalidFilterConfig = errors.New("invalid filter configuration")

// butterworthQ holds the section Q values that make two cascaded biquads a
// 4th-order Butterworth response.
var butterworthQ = [2]float64{0.5411961, 1.3065630}

// biquad is one second-order filter section in transposed direct form II.
// The z1/z2 state carries across frames, making the filter streaming rather
// than block-independent.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

func (s *biquad) process(x float64) float64 {
	y := s.b0*x + s.z1
	s.z1 = s.b1*x - s.a1*y + s.z2
	s.z2 = s.b2*x - s.a2*y
	return y
}

// HighPassStage removes sub-cutoff rumble with a 4th-order Butterworth
// high-pass filter. Coefficients are fixed at construction; filter state
// persists across frames and resets only on reconstruction.
//
// Intended for single-goroutine use by its owning pipeline.
type HighPassStage struct {
	sections [2]biquad
}

// NewHighPassStage designs the filter for the given cutoff and sample rate.
// The Nyquist-normalized cutoff must lie in (0, 1) or construction fails
// with [ErrInvalidFilterConfig].
func NewHighPassStage(cutoffHz float64, sampleRate int) (*HighPassStage, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("pipeline: %w: sample rate %d", ErrInvalidFilterConfig, sampleRate)
	}
	nyquist := float64(sampleRate) / 2
	normalized := cutoffHz / nyquist
	if normalized <= 0 || normalized >= 1 {
		return nil, fmt.Errorf("pipeline: %w: cutoff %gHz at %dHz (normalized %g not in (0,1))",
			ErrInvalidFilterConfig, cutoffHz, sampleRate, normalized)
	}

	st := &HighPassStage{}
	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	for i, q := range butterworthQ {
		alpha := sinW0 / (2 * q)
		a0 := 1 + alpha
		st.sections[i] = biquad{
			b0: (1 + cosW0) / 2 / a0,
			b1: -(1 + cosW0) / a0,
			b2: (1 + cosW0) / 2 / a0,
			a1: -2 * cosW0 / a0,
			a2: (1 - alpha) / a0,
		}
	}
	return st, nil
}

// Process filters one frame in place and returns it, carrying the IIR state
// forward to the next call.
func (h *HighPassStage) Process(samples []float64) []float64 {
	for i, x := range samples {
		y := h.sections[0].process(x)
		samples[i] = h.sections[1].process(y)
	}
	return samples
}
