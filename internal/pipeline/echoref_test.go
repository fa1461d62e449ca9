package pipeline

import (
	"sync"
	"testing"
)

func seq(start, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(start + i)
	}
	return out
}

func TestEchoReferenceReadLatest(t *testing.T) {
	ref := NewEchoReference(8)

	if _, ok := ref.ReadLatest(1); ok {
		t.Fatal("ReadLatest on empty buffer succeeded")
	}

	ref.Push(seq(0, 4))
	if _, ok := ref.ReadLatest(5); ok {
		t.Fatal("ReadLatest(5) with 4 buffered samples succeeded")
	}

	got, ok := ref.ReadLatest(4)
	if !ok {
		t.Fatal("ReadLatest(4) with 4 buffered samples failed")
	}
	for i, want := range seq(0, 4) {
		if got[i] != want {
			t.Errorf("sample %d = %g, want %g", i, got[i], want)
		}
	}
}

func TestEchoReferenceOverwritesOldest(t *testing.T) {
	ref := NewEchoReference(8)
	ref.Push(seq(0, 6))
	ref.Push(seq(6, 6)) // total 12 into capacity 8

	if got := ref.Len(); got != 8 {
		t.Fatalf("Len = %d, want 8", got)
	}
	got, ok := ref.ReadLatest(8)
	if !ok {
		t.Fatal("ReadLatest(8) failed on full buffer")
	}
	// The newest 8 of the 12 pushed samples are 4..11, in order.
	for i, want := range seq(4, 8) {
		if got[i] != want {
			t.Errorf("sample %d = %g, want %g", i, got[i], want)
		}
	}
}

func TestEchoReferenceOversizedPushKeepsNewest(t *testing.T) {
	ref := NewEchoReference(4)
	ref.Push(seq(0, 10))

	got, ok := ref.ReadLatest(4)
	if !ok {
		t.Fatal("ReadLatest(4) failed after oversized push")
	}
	for i, want := range seq(6, 4) {
		if got[i] != want {
			t.Errorf("sample %d = %g, want %g", i, got[i], want)
		}
	}
}

func TestEchoReferenceConcurrentAccess(t *testing.T) {
	ref := NewEchoReference(256)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 1000 {
			ref.Push(seq(i, 16))
		}
	}()
	go func() {
		defer wg.Done()
		for range 1000 {
			if out, ok := ref.ReadLatest(16); ok && len(out) != 16 {
				t.Errorf("ReadLatest returned %d samples, want 16", len(out))
				return
			}
		}
	}()
	wg.Wait()
}
