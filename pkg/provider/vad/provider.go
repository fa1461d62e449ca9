// Package vad defines the Detector interface for external voice activity
// detection backends.
//
// A detector wraps a frame-level speech classifier (e.g., WebRTC VAD or a
// small neural model). Most such classifiers operate on a fixed 10 ms
// sub-window; the pipeline pads or truncates the capture frame to fit before
// delegating. When no detector is configured, or when a call fails, the
// pipeline falls back to a simple energy threshold for that frame.
//
// Classify is synchronous by design; it runs inside the per-frame capture
// loop and must not block.
package vad

// Detector classifies audio frames as speech or non-speech.
//
// Implementations are called once per frame period from a single goroutine
// for the duration of a call. They need not be safe for concurrent use.
type Detector interface {
	// Classify reports whether pcm contains speech. pcm is mono
	// little-endian 16-bit PCM at the given sample rate, sized to the
	// detector's native sub-window. An error makes the pipeline fall back
	// to its energy threshold for this frame only.
	Classify(pcm []byte, sampleRate int) (bool, error)
}
