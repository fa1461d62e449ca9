package pipeline

import (
	"math"
	"testing"
)

func TestAGCBoostsQuietSignal(t *testing.T) {
	cfg := DefaultConfig()
	stage := NewAutomaticGainStage(cfg)

	const frameSize = 320
	first := rms(stage.Process(sine(440, 0.05, frameSize, 0, cfg.SampleRate)))
	var last float64
	for i := 1; i < 30; i++ {
		last = rms(stage.Process(sine(440, 0.05, frameSize, i*frameSize, cfg.SampleRate)))
	}

	if last <= first {
		t.Errorf("gain did not rise on a quiet signal: first frame RMS %.4f, frame 30 RMS %.4f", first, last)
	}
}

func TestAGCSoftLimitBoundsOutput(t *testing.T) {
	cfg := DefaultConfig()
	stage := NewAutomaticGainStage(cfg)

	const frameSize = 320
	for i := range 20 {
		out := stage.Process(sine(440, 0.95, frameSize, i*frameSize, cfg.SampleRate))
		for j, s := range out {
			// tanh(x)/2 saturates at 0.5; nothing may exceed it.
			if math.Abs(s) > 0.5 {
				t.Fatalf("frame %d sample %d = %g beyond the soft limit", i, j, s)
			}
		}
	}
}

func TestAGCGainStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	stage := NewAutomaticGainStage(cfg)

	// A barely audible signal asks for far more gain than MaxGain allows.
	const frameSize = 320
	for i := range 2000 {
		stage.Process(sine(440, 0.001, frameSize, i*frameSize, cfg.SampleRate))
	}
	if stage.gain > cfg.AGCMaxGain || stage.gain < cfg.AGCMinGain {
		t.Errorf("gain %.3f outside [%g, %g]", stage.gain, cfg.AGCMinGain, cfg.AGCMaxGain)
	}
	if avg := stage.AverageGain(); avg > cfg.AGCMaxGain {
		t.Errorf("average gain %.3f above max %g", avg, cfg.AGCMaxGain)
	}
}

func TestAGCSkipsSilence(t *testing.T) {
	cfg := DefaultConfig()
	stage := NewAutomaticGainStage(cfg)

	out := stage.Process(make([]float64, 320))
	for i, s := range out {
		if s != 0 {
			t.Fatalf("silent sample %d modified: %g", i, s)
		}
	}
	if avg := stage.AverageGain(); avg != 1 {
		t.Errorf("AverageGain after silence = %g, want 1", avg)
	}
}

func TestAverageGainBeforeFirstFrame(t *testing.T) {
	stage := NewAutomaticGainStage(DefaultConfig())
	if avg := stage.AverageGain(); avg != 1 {
		t.Errorf("AverageGain = %g, want 1", avg)
	}
}
