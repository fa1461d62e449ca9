package worker

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/handsfree-io/voicecore/internal/monitor"
	"github.com/handsfree-io/voicecore/internal/pipeline"
	"github.com/handsfree-io/voicecore/pkg/frame"
)

// scriptedSource replays a fixed list of frames, then reports io.EOF.
type scriptedSource struct {
	frames [][]byte
	i      int
}

func (s *scriptedSource) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.i >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.i]
	s.i++
	return f, nil
}

// blockingSource waits for cancellation, like an idle capture device.
type blockingSource struct{}

func (blockingSource) ReadFrame(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// collectSink records every frame it receives.
type collectSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *collectSink) WriteFrame(_ context.Context, f []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(f))
	copy(cp, f)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *collectSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func testPipeline(t *testing.T) (*pipeline.Pipeline, pipeline.Config) {
	t.Helper()
	cfg := pipeline.DefaultConfig()
	p, err := pipeline.New(cfg)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p, cfg
}

func toneFrames(count, frameSize, sampleRate int) [][]byte {
	frames := make([][]byte, count)
	for i := range frames {
		samples := make([]float64, frameSize)
		for j := range samples {
			samples[j] = 0.2 * math.Sin(2*math.Pi*440*float64(i*frameSize+j)/float64(sampleRate))
		}
		frames[i] = frame.Bytes(samples)
	}
	return frames
}

func TestRunProcessesUntilEOF(t *testing.T) {
	p, cfg := testPipeline(t)
	mon := monitor.New(monitor.DefaultConfig())

	const count = 20
	src := &scriptedSource{frames: toneFrames(count, cfg.FrameSize(), cfg.SampleRate)}
	sink := &collectSink{}
	w := New(p, mon, src, sink, WithLogInterval(0))

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sink.count(); got != count {
		t.Errorf("transmitted %d frames, want %d", got, count)
	}
	for i, f := range sink.frames {
		if len(f) != cfg.FrameSize()*2 {
			t.Fatalf("frame %d is %d bytes, want %d", i, len(f), cfg.FrameSize()*2)
		}
	}
	if got := mon.Statistics().FramesMonitored; got != count {
		t.Errorf("monitored %d frames, want %d", got, count)
	}
	if got := p.Metrics().FramesProcessed; got != count {
		t.Errorf("processed %d frames, want %d", got, count)
	}
}

func TestRunPropagatesFrameSizeViolation(t *testing.T) {
	p, _ := testPipeline(t)
	src := &scriptedSource{frames: [][]byte{make([]byte, 12)}}
	w := New(p, nil, src, &collectSink{}, WithLogInterval(0))

	if err := w.Run(context.Background()); !errors.Is(err, frame.ErrInvalidFrameSize) {
		t.Errorf("Run error = %v, want ErrInvalidFrameSize", err)
	}
}

func TestStartStop(t *testing.T) {
	p, _ := testPipeline(t)
	w := New(p, nil, blockingSource{}, &collectSink{}, WithLogInterval(0))

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start succeeded while running")
	}
	if err := w.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// After a clean stop the worker can be started again.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := w.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop after restart: %v", err)
	}
}

func TestStopIdleWorker(t *testing.T) {
	p, _ := testPipeline(t)
	w := New(p, nil, blockingSource{}, &collectSink{}, WithLogInterval(0))
	if err := w.Stop(time.Second); err != nil {
		t.Errorf("Stop on idle worker = %v, want nil", err)
	}
}

func TestPlaybackRoutesToSpeaker(t *testing.T) {
	p, cfg := testPipeline(t)
	speaker := &collectSink{}
	w := New(p, nil, blockingSource{}, &collectSink{}, WithSpeaker(speaker), WithLogInterval(0))

	pcm := toneFrames(1, cfg.FrameSize(), cfg.SampleRate)[0]
	if err := w.Playback(context.Background(), pcm); err != nil {
		t.Fatalf("Playback: %v", err)
	}
	if got := speaker.count(); got != 1 {
		t.Errorf("speaker received %d frames, want 1", got)
	}
}

func TestPlaybackWithoutSpeaker(t *testing.T) {
	p, cfg := testPipeline(t)
	w := New(p, nil, blockingSource{}, &collectSink{}, WithLogInterval(0))

	pcm := toneFrames(1, cfg.FrameSize(), cfg.SampleRate)[0]
	if err := w.Playback(context.Background(), pcm); err != nil {
		t.Errorf("Playback without speaker = %v, want nil", err)
	}
}
