// Command voicecore runs the voice enhancement pipeline as a standalone
// diagnostic tool. It pulls frames from stdin (raw 16-bit LE PCM) or from a
// built-in test tone generator, runs them through the full processing chain,
// and prints the pipeline and quality statistics on exit. With a metrics
// address configured it also serves the Prometheus /metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/handsfree-io/voicecore/internal/config"
	"github.com/handsfree-io/voicecore/internal/health"
	"github.com/handsfree-io/voicecore/internal/monitor"
	"github.com/handsfree-io/voicecore/internal/observe"
	"github.com/handsfree-io/voicecore/internal/pipeline"
	"github.com/handsfree-io/voicecore/internal/worker"
	"github.com/handsfree-io/voicecore/pkg/frame"
)

const version = "0.3.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	duration := flag.Duration("duration", 2*time.Second, "how much test-tone audio to synthesize")
	useStdin := flag.Bool("stdin", false, "read raw 16-bit LE PCM frames from stdin instead of the test tone")
	flag.Parse()

	configExplicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configExplicit = true
		}
	})

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !configExplicit {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "voicecore: %v\n", err)
			return 1
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicecore starting",
		"version", version,
		"config", *configPath,
		"sample_rate", cfg.Audio.SampleRate,
		"frame_ms", cfg.Audio.FrameMs,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voicecore",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	obs, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metric instruments", "err", err)
		return 1
	}

	// ── Pipeline and monitor ──────────────────────────────────────────────────
	pipe, err := pipeline.New(cfg.PipelineConfig(), pipeline.WithObserver(obs))
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon = monitor.New(cfg.MonitorConfig())
	}

	// ── Audio source and sink ─────────────────────────────────────────────────
	frameSize := cfg.PipelineConfig().FrameSize()
	var src worker.Source
	if *useStdin {
		src = &stdinSource{r: os.Stdin, frameBytes: frameSize * 2}
	} else {
		frames := int(duration.Milliseconds()) / cfg.Audio.FrameMs
		src = &toneSource{
			frameSize:  frameSize,
			sampleRate: cfg.Audio.SampleRate,
			remaining:  frames,
			rng:        rand.New(rand.NewPCG(42, 0)),
		}
		slog.Info("synthesizing test tone", "frames", frames, "duration", *duration)
	}
	sink := &countingSink{}

	w := worker.New(pipe, mon, src, sink, worker.WithObserver(obs))

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopAll := context.WithCancel(gctx)
	defer stopAll()

	g.Go(func() error {
		defer stopAll()
		return w.Run(runCtx)
	})

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		// The stream counts as stalled after five missed frame periods.
		maxAge := time.Duration(5*cfg.Audio.FrameMs) * time.Millisecond
		health.New(health.Freshness("worker", w.LastFrameTime, maxAge)).Register(mux)

		srv := &http.Server{Addr: addr, Handler: mux}

		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	printSummary(pipe.Metrics(), mon, sink)
	slog.Info("goodbye")
	return 0
}

// ── Audio sources ─────────────────────────────────────────────────────────────

// toneSource synthesizes a 1 kHz tone over low-level noise, the bench signal
// used to sanity-check the chain end to end.
type toneSource struct {
	frameSize  int
	sampleRate int
	remaining  int
	offset     int
	rng        *rand.Rand
}

func (s *toneSource) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.remaining <= 0 {
		return nil, io.EOF
	}
	s.remaining--

	samples := make([]float64, s.frameSize)
	for i := range samples {
		ts := float64(s.offset+i) / float64(s.sampleRate)
		samples[i] = 0.3*math.Sin(2*math.Pi*1000*ts) + 0.01*(s.rng.Float64()*2-1)
	}
	s.offset += s.frameSize
	return frame.Bytes(samples), nil
}

// stdinSource reads fixed-size PCM frames from a stream. A trailing partial
// frame is dropped.
type stdinSource struct {
	r          io.Reader
	frameBytes int
}

func (s *stdinSource) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, s.frameBytes)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return buf, nil
}

// countingSink discards processed frames but keeps throughput counters for
// the exit summary.
type countingSink struct {
	frames int
	bytes  int
}

func (s *countingSink) WriteFrame(_ context.Context, f []byte) error {
	s.frames++
	s.bytes += len(f)
	return nil
}

// ── Exit summary ──────────────────────────────────────────────────────────────

func printSummary(pm pipeline.Metrics, mon *monitor.Monitor, sink *countingSink) {
	fmt.Println("── voicecore summary ──────────────────────")
	fmt.Printf("  frames processed   : %d (%d bytes out)\n", pm.FramesProcessed, sink.bytes)
	fmt.Printf("  avg gain           : %.2fx (%.1f dB)\n", pm.AvgGain, pm.AvgGainDb)
	fmt.Printf("  noise profile      : ready=%t level=%d\n", pm.NoiseProfileReady, pm.NoiseReductionLevel)
	fmt.Printf("  echo cancellation  : enabled=%t\n", pm.AECEnabled)
	if mon != nil {
		stats := mon.Statistics()
		acceptable, reason := mon.QualityAcceptable()
		fmt.Printf("  rms / peak         : %.1f / %.1f dBFS\n", stats.RMSDb, stats.PeakDb)
		fmt.Printf("  snr                : %.1f dB (floor %.1f dBFS)\n", stats.SNRDb, stats.NoiseFloorDb)
		fmt.Printf("  clipping           : %.2f%% of samples, %.1f%% of frames\n", stats.ClippingPercent, stats.ClippingFrameRate)
		fmt.Printf("  voice activity     : %.1f%%\n", stats.VoiceActivityPercent)
		fmt.Printf("  latency            : %.1f ms\n", stats.LatencyMs)
		fmt.Printf("  codec              : %s @ %d Hz\n", stats.Codec, stats.SampleRate)
		fmt.Printf("  verdict            : acceptable=%t (%s)\n", acceptable, reason)
	}
	fmt.Println("───────────────────────────────────────────")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
