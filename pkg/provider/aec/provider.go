// Package aec defines the Engine interface for external acoustic echo
// canceller backends.
//
// An AEC engine (e.g., a SpeexDSP or WebRTC APM binding) removes the portion
// of the microphone signal correlated with recent speaker output. The
// processing pipeline treats the engine as an optional capability: when no
// engine is configured, or when a call fails, the pipeline's built-in NLMS
// adaptive filter handles that frame instead. Engine failures are therefore
// never fatal to a call.
//
// Cancel is synchronous by design; it runs inside the per-frame capture loop
// and must not block.
package aec

// Engine cancels acoustic echo from microphone frames.
//
// Implementations must tolerate being called once per frame period for the
// duration of a call from a single goroutine. They need not be safe for
// concurrent use.
type Engine interface {
	// Cancel removes the speaker echo from mic using ref as the far-end
	// reference. Both arguments are mono little-endian 16-bit PCM of equal
	// length; the returned slice must be the same length as mic. An error
	// (or a wrong-length result) makes the pipeline fall back to its
	// built-in canceller for this frame only.
	Cancel(mic, ref []byte) ([]byte, error)
}
