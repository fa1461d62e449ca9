package pipeline

import (
	"log/slog"

	"github.com/handsfree-io/voicecore/pkg/frame"
	"github.com/handsfree-io/voicecore/pkg/provider/aec"
)

// nlmsEpsilon guards the NLMS normalization against near-zero reference energy.
const nlmsEpsilon = 1e-6

// EchoCancellationStage removes the speaker's acoustic echo from the
// microphone signal. When an external [aec.Engine] is configured it handles
// the frame; on engine failure, or when no engine is present, a built-in
// NLMS adaptive filter takes over. Filter weights persist and adapt for the
// life of the stage; they are never reset mid-call.
//
// UpdateReference may be called from the playback goroutine; everything else
// belongs to the capture worker.
type EchoCancellationStage struct {
	engine aec.Engine // optional
	ref    *EchoReference

	weights []float64
	step    float64

	onFallback func() // observability hook, may be nil
}

// NewEchoCancellationStage creates the stage with a reference buffer of
// taps×8 samples (sized generously to absorb playback-path latency).
// engine may be nil to always use the built-in filter.
func NewEchoCancellationStage(taps int, step float64, engine aec.Engine) *EchoCancellationStage {
	return &EchoCancellationStage{
		engine:  engine,
		ref:     NewEchoReference(taps * 8),
		weights: make([]float64, taps),
		step:    step,
	}
}

// UpdateReference pushes one speaker frame into the reference buffer. The
// playback path must call this before the corresponding physical output.
func (e *EchoCancellationStage) UpdateReference(samples []float64) {
	e.ref.Push(samples)
}

// Process returns mic with the estimated echo removed. With fewer reference
// samples buffered than one frame it returns mic unchanged rather than wait.
func (e *EchoCancellationStage) Process(mic []float64) []float64 {
	ref, ok := e.ref.ReadLatest(len(mic))
	if !ok {
		return mic
	}

	if e.engine != nil {
		out, err := e.engine.Cancel(frame.Bytes(mic), frame.Bytes(ref))
		if err == nil && len(out) == len(mic)*2 {
			return frame.Samples(out)
		}
		if err != nil {
			slog.Warn("echo canceller engine failed, using NLMS fallback", "err", err)
		} else {
			slog.Warn("echo canceller engine returned wrong frame length, using NLMS fallback",
				"got", len(out), "want", len(mic)*2)
		}
		if e.onFallback != nil {
			e.onFallback()
		}
	}

	return e.nlms(mic, ref)
}

// nlms runs the normalized least-mean-squares adaptive filter over the
// reference window, subtracting the echo estimate sample by sample while
// updating the weights.
func (e *EchoCancellationStage) nlms(mic, ref []float64) []float64 {
	taps := len(e.weights)
	out := make([]float64, len(mic))

	// Reference with taps-1 zeros of leading history so the window is
	// always full-length.
	padded := make([]float64, taps-1+len(ref))
	copy(padded[taps-1:], ref)

	window := make([]float64, taps)
	for i := range mic {
		// Most-recent-first window over the padded reference.
		for j := range taps {
			window[j] = padded[i+taps-1-j]
		}

		var estimate, energy float64
		for j, w := range e.weights {
			estimate += w * window[j]
			energy += window[j] * window[j]
		}

		err := mic[i] - estimate
		out[i] = err

		g := e.step / (energy + nlmsEpsilon) * err
		for j := range e.weights {
			e.weights[j] += g * window[j]
		}
	}
	return out
}
