package pipeline

import "math"

// agcSilenceFloor is the RMS below which a frame is left untouched to avoid
// dividing by a vanishing level.
const agcSilenceFloor = 1e-6

// AutomaticGainStage holds the output level near a configured target with an
// asymmetric control loop: gain rises quickly toward louder targets (attack)
// and falls slowly (release), which responds to sudden loud input without
// audible pumping. The applied gain is clamped to configured bounds and the
// result is soft-limited with tanh rather than hard-clipped.
//
// Gain state persists across frames; a new call gets a fresh stage.
type AutomaticGainStage struct {
	target  float64 // linear target level
	attack  float64
	release float64
	minGain float64
	maxGain float64

	gain      float64
	totalGain float64
	frames    int
}

// NewAutomaticGainStage creates the stage with gain initialized to unity.
// targetDb is the desired RMS level in dBFS.
func NewAutomaticGainStage(cfg Config) *AutomaticGainStage {
	return &AutomaticGainStage{
		target:  math.Pow(10, cfg.AGCTargetDb/20),
		attack:  cfg.AGCAttack,
		release: cfg.AGCRelease,
		minGain: cfg.AGCMinGain,
		maxGain: cfg.AGCMaxGain,
		gain:    1,
	}
}

// Process applies the gain loop to one frame in place and returns it.
func (a *AutomaticGainStage) Process(samples []float64) []float64 {
	level := rms(samples)
	if level < agcSilenceFloor {
		return samples
	}

	targetGain := a.target / level
	if targetGain > a.gain {
		a.gain += a.attack * (targetGain - a.gain)
	} else {
		a.gain += a.release * (targetGain - a.gain)
	}
	a.gain = math.Min(math.Max(a.gain, a.minGain), a.maxGain)

	for i, s := range samples {
		// Soft limit: controlled saturation instead of hard clipping.
		samples[i] = math.Tanh(s*a.gain*2) / 2
	}

	a.totalGain += a.gain
	a.frames++
	return samples
}

// AverageGain returns the mean gain applied over all processed frames,
// or 1 before the first frame.
func (a *AutomaticGainStage) AverageGain() float64 {
	if a.frames == 0 {
		return 1
	}
	return a.totalGain / float64(a.frames)
}
