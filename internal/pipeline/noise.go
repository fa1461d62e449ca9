package pipeline

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// NoiseReductionStage suppresses stationary noise by spectral subtraction.
//
// The first few hundred milliseconds of a call calibrate the noise profile:
// each frame's magnitude spectrum feeds an exponential moving average while
// the frame itself passes through untouched. Afterwards, frames classified
// as non-voice keep refreshing the profile, and every frame has
// overSubtraction × profile subtracted from its magnitude spectrum before
// reconstruction with the original phase. A spectral floor proportional to
// the original magnitude bounds the subtraction to avoid musical noise.
type NoiseReductionStage struct {
	voice *VoiceActivityStage

	fftSize   int
	level     int
	alpha     float64
	floor     float64
	calFrames int

	profile      []float64 // nil until the first calibration frame
	calCollected int
}

// NewNoiseReductionStage creates the stage. The voice stage gates profile
// updates after calibration.
func NewNoiseReductionStage(cfg Config, voice *VoiceActivityStage) *NoiseReductionStage {
	return &NoiseReductionStage{
		voice:     voice,
		fftSize:   cfg.FFTSize,
		level:     cfg.NoiseReductionLevel,
		alpha:     cfg.NoiseEMAAlpha,
		floor:     cfg.SpectralFloor,
		calFrames: cfg.CalibrationFrames(),
	}
}

// ProfileReady reports whether a noise profile has been established.
func (n *NoiseReductionStage) ProfileReady() bool {
	return n.profile != nil
}

// Reset clears the noise profile and calibration counter, forcing a fresh
// calibration phase (e.g. after an environment change).
func (n *NoiseReductionStage) Reset() {
	n.profile = nil
	n.calCollected = 0
}

// Process returns the frame with the estimated noise spectrum subtracted.
// During calibration the input is returned unchanged.
func (n *NoiseReductionStage) Process(samples []float64) []float64 {
	if n.calCollected < n.calFrames {
		n.updateProfile(samples)
		n.calCollected++
		return samples
	}
	if n.profile == nil {
		return samples
	}

	if !n.voice.IsVoice(samples) && n.level > 0 {
		// Refresh the profile during silence.
		n.updateProfile(samples)
	}

	spectrum := fft.FFTReal(n.pad(samples))

	overSubtraction := 1 + float64(n.level)*0.5
	for i, c := range spectrum {
		magnitude := cmplx.Abs(c)
		clean := magnitude - overSubtraction*n.profile[i]
		if sf := n.floor * magnitude; clean < sf {
			clean = sf
		}
		// Keep the original phase; only the magnitude changes. The edit is
		// symmetric across conjugate bins, so the inverse stays real.
		phase := cmplx.Phase(c)
		spectrum[i] = cmplx.Rect(clean, phase)
	}

	reconstructed := fft.IFFT(spectrum)
	out := make([]float64, len(samples))
	for i := range out {
		out[i] = real(reconstructed[i])
	}
	return out
}

// updateProfile folds the frame's magnitude spectrum into the noise profile.
// Magnitudes are non-negative, so the profile never goes negative.
func (n *NoiseReductionStage) updateProfile(samples []float64) {
	spectrum := fft.FFTReal(n.pad(samples))
	if n.profile == nil {
		n.profile = make([]float64, len(spectrum))
		for i, c := range spectrum {
			n.profile[i] = cmplx.Abs(c)
		}
		return
	}
	for i, c := range spectrum {
		n.profile[i] = n.alpha*cmplx.Abs(c) + (1-n.alpha)*n.profile[i]
	}
}

// pad zero-extends the frame to the FFT length.
func (n *NoiseReductionStage) pad(samples []float64) []float64 {
	if len(samples) >= n.fftSize {
		return samples[:n.fftSize]
	}
	padded := make([]float64, n.fftSize)
	copy(padded, samples)
	return padded
}
