// Package mock provides a test double for the vad package interfaces.
//
// Use Detector to inject classification results and inspect the sub-windows
// that were submitted:
//
//	det := &mock.Detector{Voice: true}
//	stage := pipeline.New(cfg, pipeline.WithVoiceDetector(det))
package mock

import (
	"sync"

	"github.com/handsfree-io/voicecore/pkg/provider/vad"
)

// ClassifyCall records a single invocation of Detector.Classify.
type ClassifyCall struct {
	// PCM is a copy of the bytes passed to Classify.
	PCM []byte

	// SampleRate is the sample rate passed to Classify.
	SampleRate int
}

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Voice is returned by every Classify call.
	Voice bool

	// Err, if non-nil, is returned as the error from every Classify call.
	Err error

	// ClassifyCalls records every call to Classify in order.
	ClassifyCalls []ClassifyCall
}

// Classify records the call and returns Voice, Err.
func (d *Detector) Classify(pcm []byte, sampleRate int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	d.ClassifyCalls = append(d.ClassifyCalls, ClassifyCall{PCM: cp, SampleRate: sampleRate})
	if d.Err != nil {
		return false, d.Err
	}
	return d.Voice, nil
}

// ResetCalls clears the recorded call history. Thread-safe.
func (d *Detector) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ClassifyCalls = nil
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)
