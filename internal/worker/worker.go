// Package worker drives the capture→process→transmit cycle for one call.
//
// A Worker owns exactly one pipeline/monitor pair and reads frames from the
// capture source once per frame period, processes them, and hands them to
// the transmit sink. The playback path, usually a different goroutine fed by
// the transport, calls [Worker.Playback] before each physical speaker write
// so the echo canceller's reference stays current.
//
// The stop signal is cooperative: it is checked once per iteration and never
// interrupts an in-flight frame; [Worker.Stop] waits for the loop with a
// bounded timeout.
package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/handsfree-io/voicecore/internal/monitor"
	"github.com/handsfree-io/voicecore/internal/observe"
	"github.com/handsfree-io/voicecore/internal/pipeline"
	"github.com/handsfree-io/voicecore/pkg/frame"
)

// errorBackoff is how long the loop pauses after a capture error before
// retrying, so a wedged device cannot spin the CPU.
const errorBackoff = 100 * time.Millisecond

// Source delivers raw capture frames, one per frame period. ReadFrame
// returns [io.EOF] when the stream ends and should honour ctx cancellation.
type Source interface {
	ReadFrame(ctx context.Context) ([]byte, error)
}

// Sink accepts raw PCM frames for transmission or playback.
type Sink interface {
	WriteFrame(ctx context.Context, frame []byte) error
}

// Option configures a Worker at construction.
type Option func(*Worker)

// WithSpeaker routes playback frames to a speaker sink after the echo
// reference update. Without it, Playback only updates the reference.
func WithSpeaker(s Sink) Option {
	return func(w *Worker) { w.speaker = s }
}

// WithObserver records frame throughput and quality verdicts to the given
// instruments.
func WithObserver(m *observe.Metrics) Option {
	return func(w *Worker) { w.obs = m }
}

// WithLogInterval changes how often (in frames) the worker logs quality
// statistics. Zero disables periodic logging.
func WithLogInterval(frames int) Option {
	return func(w *Worker) { w.logInterval = frames }
}

// Worker runs the per-call audio cycle.
type Worker struct {
	pipe     *pipeline.Pipeline
	mon      *monitor.Monitor // nil when monitoring is disabled
	src      Source
	transmit Sink
	speaker  Sink
	obs      *observe.Metrics

	logInterval int

	lastFrame atomic.Int64 // unix nanos of the last completed frame

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Worker. mon may be nil to disable quality monitoring.
func New(pipe *pipeline.Pipeline, mon *monitor.Monitor, src Source, transmit Sink, opts ...Option) *Worker {
	w := &Worker{
		pipe:        pipe,
		mon:         mon,
		src:         src,
		transmit:    transmit,
		logInterval: 50,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run executes the capture loop until ctx is cancelled, the source reports
// [io.EOF], or the capture collaborator violates the frame-size contract.
// Per-frame processing failures degrade to the unprocessed frame; they never
// end the call.
func (w *Worker) Run(ctx context.Context) error {
	ctx, span := observe.StartSpan(ctx, "voicecore.call")
	defer span.End()
	if w.obs != nil {
		w.obs.ActiveCalls.Add(ctx, 1)
		defer w.obs.ActiveCalls.Add(ctx, -1)
	}

	slog.Info("audio worker started", "frame_size", w.pipe.FrameSize())
	defer slog.Info("audio worker stopped")

	frames := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := w.src.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("capture read failed", "err", err)
			time.Sleep(errorBackoff)
			continue
		}

		if w.mon != nil {
			w.mon.RecordCaptureTimestamp()
		}

		start := time.Now()
		processed, err := w.pipe.Process(raw)
		if err != nil {
			if errors.Is(err, frame.ErrInvalidFrameSize) {
				// Contract violation by the capture collaborator; must be
				// fixed upstream, not masked.
				return err
			}
			slog.Error("processing failed, transmitting raw frame", "err", err)
			processed = raw
		}
		if w.obs != nil {
			w.obs.FrameDuration.Record(ctx, time.Since(start).Seconds())
			w.obs.FramesProcessed.Add(ctx, 1)
		}

		hasVoice := true
		if v, err := w.pipe.IsVoice(raw); err == nil {
			hasVoice = v
		}

		if w.mon != nil {
			if err := w.mon.AnalyzeFrame(processed, hasVoice); err != nil {
				slog.Error("frame analysis failed", "err", err)
			}
		}

		if err := w.transmit.WriteFrame(ctx, processed); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("transmit write failed", "err", err)
		} else if w.mon != nil {
			w.mon.RecordOutputTimestamp()
		}

		w.lastFrame.Store(time.Now().UnixNano())
		frames++
		if w.logInterval > 0 && frames%w.logInterval == 0 {
			w.logQuality(ctx)
		}
	}
}

// LastFrameTime returns when the worker last completed a frame, or the zero
// time before the first frame. Safe to call from any goroutine; the health
// endpoint uses it to detect a stalled stream.
func (w *Worker) LastFrameTime() time.Time {
	ns := w.lastFrame.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// logQuality emits the periodic quality snapshot and verdict.
func (w *Worker) logQuality(ctx context.Context) {
	if w.mon == nil {
		return
	}
	stats := w.mon.Statistics()
	acceptable, reason := w.mon.QualityAcceptable()
	observe.Logger(ctx).Info("audio quality",
		"rms_db", stats.RMSDb,
		"snr_db", stats.SNRDb,
		"clipping_percent", stats.ClippingPercent,
		"voice_percent", stats.VoiceActivityPercent,
		"codec", stats.Codec,
		"latency_ms", stats.LatencyMs,
		"acceptable", acceptable,
		"reason", reason,
	)
	if w.obs != nil {
		w.obs.QualityChecks.Add(ctx, 1, observe.Verdict(acceptable))
	}
}

// Playback feeds one outbound speaker frame into the echo reference and then
// to the speaker sink. Must be called before the corresponding physical
// output; safe to call from a different goroutine than Run.
func (w *Worker) Playback(ctx context.Context, pcm []byte) error {
	w.pipe.UpdateReference(pcm)
	if w.speaker == nil {
		return nil
	}
	return w.speaker.WriteFrame(ctx, pcm)
}

// Start launches Run in its own goroutine. It fails if the worker is
// already running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return errors.New("worker: already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done

	go func() {
		defer close(done)
		if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("audio worker exited", "err", err)
		}
	}()
	return nil
}

// Stop signals the loop to finish and waits up to timeout for it. The
// in-flight frame always completes; only new iterations are prevented.
func (w *Worker) Stop(timeout time.Duration) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("worker: shutdown timed out")
	}
}
