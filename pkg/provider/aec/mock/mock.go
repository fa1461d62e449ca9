// Package mock provides a test double for the aec package interfaces.
//
// Use Engine to inject canned Cancel results and inspect the frames that
// were submitted:
//
//	eng := &mock.Engine{Result: cleaned}
//	stage := pipeline.New(cfg, pipeline.WithEchoEngine(eng))
package mock

import (
	"sync"

	"github.com/handsfree-io/voicecore/pkg/provider/aec"
)

// CancelCall records a single invocation of Engine.Cancel.
type CancelCall struct {
	// Mic is a copy of the microphone frame passed to Cancel.
	Mic []byte

	// Ref is a copy of the reference frame passed to Cancel.
	Ref []byte
}

// Engine is a mock implementation of aec.Engine.
type Engine struct {
	mu sync.Mutex

	// Result is returned by every Cancel call. If nil, Cancel echoes the
	// mic frame back unchanged.
	Result []byte

	// Err, if non-nil, is returned as the error from every Cancel call.
	Err error

	// CancelCalls records every call to Cancel in order.
	CancelCalls []CancelCall
}

// Cancel records the call and returns Result (or the mic frame), Err.
func (e *Engine) Cancel(mic, ref []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	micCp := make([]byte, len(mic))
	copy(micCp, mic)
	refCp := make([]byte, len(ref))
	copy(refCp, ref)
	e.CancelCalls = append(e.CancelCalls, CancelCall{Mic: micCp, Ref: refCp})
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Result != nil {
		return e.Result, nil
	}
	return micCp, nil
}

// ResetCalls clears the recorded call history. Thread-safe.
func (e *Engine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CancelCalls = nil
}

// Ensure Engine implements aec.Engine at compile time.
var _ aec.Engine = (*Engine)(nil)
