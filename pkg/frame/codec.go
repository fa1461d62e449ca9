// Package frame converts between raw 16-bit PCM byte frames and normalized
// floating-point sample vectors.
//
// All audio entering or leaving the processing pipeline is mono little-endian
// signed 16-bit PCM. Internally every stage operates on []float64 samples in
// [-1, 1]. A Codec enforces the fixed frame-size contract: one call-lifetime
// frame size, validated on every conversion.
package frame

import (
	"errors"
	"fmt"
)

// ErrInvalidFrameSize is returned when a PCM frame's byte length (or a sample
// vector's length) does not match the configured frame size. It indicates a
// contract violation by the capture/playback collaborator and is never
// silently coerced.
var ErrInvalidFrameSize = errors.New("invalid frame size")

// scale is the divisor mapping int16 full scale onto [-1, 1).
const scale = 32768.0

// Codec converts fixed-size PCM frames to sample vectors and back.
// It is stateless and safe for concurrent use.
type Codec struct {
	frameSize int
}

// NewCodec creates a Codec for frames of frameSize samples
// (frameSize = sampleRate × frameMs / 1000).
func NewCodec(frameSize int) (*Codec, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame: frame size must be positive, got %d", frameSize)
	}
	return &Codec{frameSize: frameSize}, nil
}

// FrameSize returns the number of samples per frame.
func (c *Codec) FrameSize() int { return c.frameSize }

// ByteLen returns the expected byte length of a raw PCM frame.
func (c *Codec) ByteLen() int { return c.frameSize * 2 }

// ToSamples converts a raw PCM frame to normalized samples. Returns
// [ErrInvalidFrameSize] if pcm is not exactly 2×FrameSize bytes.
func (c *Codec) ToSamples(pcm []byte) ([]float64, error) {
	if len(pcm) != c.ByteLen() {
		return nil, fmt.Errorf("frame: %w: got %d bytes, want %d", ErrInvalidFrameSize, len(pcm), c.ByteLen())
	}
	return Samples(pcm), nil
}

// ToBytes converts normalized samples back to a raw PCM frame, clamping each
// sample to the int16 range before truncation. Returns [ErrInvalidFrameSize]
// if samples is not exactly FrameSize long.
func (c *Codec) ToBytes(samples []float64) ([]byte, error) {
	if len(samples) != c.frameSize {
		return nil, fmt.Errorf("frame: %w: got %d samples, want %d", ErrInvalidFrameSize, len(samples), c.frameSize)
	}
	return Bytes(samples), nil
}

// Samples converts little-endian 16-bit PCM of any even length to normalized
// samples without a frame-size contract. The playback reference path uses
// this directly, since transport chunk sizes follow the SCO MTU rather than
// the capture frame size. A trailing odd byte is ignored.
func Samples(pcm []byte) []float64 {
	n := len(pcm) / 2
	out := make([]float64, n)
	for i := range n {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float64(s) / scale
	}
	return out
}

// Bytes converts normalized samples to little-endian 16-bit PCM, clamping to
// [-32768, 32767].
func Bytes(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		s := v * scale
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		iv := int16(s)
		out[i*2] = byte(iv)
		out[i*2+1] = byte(iv >> 8)
	}
	return out
}
