package frame_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/handsfree-io/voicecore/pkg/frame"
)

func mustCodec(t *testing.T, size int) *frame.Codec {
	t.Helper()
	c, err := frame.NewCodec(size)
	if err != nil {
		t.Fatalf("NewCodec(%d): %v", size, err)
	}
	return c
}

func TestNewCodec_InvalidSize(t *testing.T) {
	t.Parallel()
	for _, size := range []int{0, -1, -320} {
		if _, err := frame.NewCodec(size); err == nil {
			t.Errorf("NewCodec(%d): expected error", size)
		}
	}
}

func TestToSamples_WrongLength(t *testing.T) {
	t.Parallel()
	c := mustCodec(t, 320)

	for _, n := range []int{0, 2, 639, 641, 1280} {
		_, err := c.ToSamples(make([]byte, n))
		if !errors.Is(err, frame.ErrInvalidFrameSize) {
			t.Errorf("ToSamples(%d bytes): err = %v, want ErrInvalidFrameSize", n, err)
		}
	}
}

func TestToBytes_WrongLength(t *testing.T) {
	t.Parallel()
	c := mustCodec(t, 320)

	_, err := c.ToBytes(make([]float64, 319))
	if !errors.Is(err, frame.ErrInvalidFrameSize) {
		t.Errorf("ToBytes(319 samples): err = %v, want ErrInvalidFrameSize", err)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	c := mustCodec(t, 4)

	pcm := []byte{
		0x00, 0x00, // 0
		0xff, 0x7f, // 32767
		0x00, 0x80, // -32768
		0x39, 0x30, // 12345
	}
	samples, err := c.ToSamples(pcm)
	if err != nil {
		t.Fatalf("ToSamples: %v", err)
	}
	want := []float64{0, 32767.0 / 32768.0, -1.0, 12345.0 / 32768.0}
	for i, s := range samples {
		if math.Abs(s-want[i]) > 1e-12 {
			t.Errorf("sample[%d] = %v, want %v", i, s, want[i])
		}
	}

	back, err := c.ToBytes(samples)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !bytes.Equal(back, pcm) {
		t.Errorf("round trip: got % x, want % x", back, pcm)
	}
}

func TestToBytes_Clamps(t *testing.T) {
	t.Parallel()
	c := mustCodec(t, 2)

	out, err := c.ToBytes([]float64{1.5, -1.5})
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	hi := int16(out[0]) | int16(out[1])<<8
	lo := int16(out[2]) | int16(out[3])<<8
	if hi != 32767 {
		t.Errorf("positive overdrive encoded as %d, want 32767", hi)
	}
	if lo != -32768 {
		t.Errorf("negative overdrive encoded as %d, want -32768", lo)
	}
}

func TestSamples_IgnoresTrailingOddByte(t *testing.T) {
	t.Parallel()
	got := frame.Samples([]byte{0x00, 0x40, 0x7f})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if math.Abs(got[0]-0.5) > 1e-12 {
		t.Errorf("sample = %v, want 0.5", got[0])
	}
}
