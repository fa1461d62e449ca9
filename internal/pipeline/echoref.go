package pipeline

import "sync"

// EchoReference is a bounded ring buffer of recent speaker-output samples.
// The playback path writes it (Push) while the capture-side cancellation
// stage reads it (ReadLatest), so it is the one piece of shared mutable
// state in the pipeline and the only one carrying a lock.
//
// Writes beyond capacity overwrite the oldest samples; reads never block.
type EchoReference struct {
	mu   sync.Mutex
	buf  []float64
	next int // next write index
	size int // valid samples, ≤ cap
}

// NewEchoReference creates a reference buffer holding up to capacity samples.
func NewEchoReference(capacity int) *EchoReference {
	if capacity < 1 {
		capacity = 1
	}
	return &EchoReference{buf: make([]float64, capacity)}
}

// Push appends samples, overwriting the oldest data once full. Safe to call
// from a different goroutine than ReadLatest; never blocks a reader for more
// than the copy.
func (r *EchoReference) Push(samples []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.buf)
	if len(samples) >= capacity {
		// Only the newest capacity samples survive anyway.
		copy(r.buf, samples[len(samples)-capacity:])
		r.next = 0
		r.size = capacity
		return
	}
	for _, s := range samples {
		r.buf[r.next] = s
		r.next = (r.next + 1) % capacity
	}
	r.size += len(samples)
	if r.size > capacity {
		r.size = capacity
	}
}

// ReadLatest copies the most recent n samples in chronological order.
// Returns false without blocking when fewer than n samples are buffered —
// the cancellation stage treats that as its no-op case.
func (r *EchoReference) ReadLatest(n int) ([]float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || r.size < n {
		return nil, false
	}
	out := make([]float64, n)
	capacity := len(r.buf)
	start := (r.next - n + capacity*2) % capacity
	for i := range n {
		out[i] = r.buf[(start+i)%capacity]
	}
	return out, true
}

// Len returns the number of buffered samples.
func (r *EchoReference) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
