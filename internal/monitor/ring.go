package monitor

import "time"

// floatRing is a fixed-capacity ring of float64 statistics. Pushing past
// capacity evicts the oldest value.
type floatRing struct {
	buf  []float64
	next int
	size int
}

func newFloatRing(capacity int) *floatRing {
	return &floatRing{buf: make([]float64, capacity)}
}

func (r *floatRing) push(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *floatRing) len() int { return r.size }

// mean returns the average of the buffered values, or 0 when empty.
func (r *floatRing) mean() float64 {
	if r.size == 0 {
		return 0
	}
	var sum float64
	for i := range r.size {
		sum += r.buf[i]
	}
	return sum / float64(r.size)
}

func (r *floatRing) reset() {
	r.next = 0
	r.size = 0
}

// timeRing is a fixed-capacity ring of timestamps.
type timeRing struct {
	buf  []time.Time
	next int
	size int
}

func newTimeRing(capacity int) *timeRing {
	return &timeRing{buf: make([]time.Time, capacity)}
}

func (r *timeRing) push(t time.Time) {
	r.buf[r.next] = t
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *timeRing) len() int { return r.size }

// last returns up to n of the most recent timestamps in chronological order.
func (r *timeRing) last(n int) []time.Time {
	if n > r.size {
		n = r.size
	}
	out := make([]time.Time, n)
	capacity := len(r.buf)
	start := (r.next - n + 2*capacity) % capacity
	for i := range n {
		out[i] = r.buf[(start+i)%capacity]
	}
	return out
}

func (r *timeRing) reset() {
	r.next = 0
	r.size = 0
}
