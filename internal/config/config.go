// Package config provides the configuration schema and loader for the
// voicecore audio pipeline.
package config

import (
	"github.com/handsfree-io/voicecore/internal/monitor"
	"github.com/handsfree-io/voicecore/internal/pipeline"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	Processing ProcessingConfig `yaml:"processing"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	LogLevel   LogLevel         `yaml:"log_level"`
}

// AudioConfig fixes the stream format negotiated with the transport.
type AudioConfig struct {
	// SampleRate in Hz: 8000 for CVSD, 16000 for mSBC wide-band.
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the capture/playback period in milliseconds.
	FrameMs int `yaml:"frame_ms"`

	// Codec is the negotiated codec label, used for metrics only.
	Codec string `yaml:"codec"`
}

// ProcessingConfig holds the per-stage tunables.
type ProcessingConfig struct {
	HighPass       HighPassConfig       `yaml:"highpass"`
	EchoCancel     EchoCancelConfig     `yaml:"echo_cancel"`
	NoiseReduction NoiseReductionConfig `yaml:"noise_reduction"`
	AGC            AGCConfig            `yaml:"agc"`
	VAD            VADConfig            `yaml:"vad"`
}

// HighPassConfig tunes the rumble filter.
type HighPassConfig struct {
	Enabled  bool    `yaml:"enabled"`
	CutoffHz float64 `yaml:"cutoff_hz"`
}

// EchoCancelConfig tunes acoustic echo cancellation.
type EchoCancelConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Taps     int     `yaml:"taps"`
	StepSize float64 `yaml:"step_size"`
}

// NoiseReductionConfig tunes spectral subtraction. Level 0 disables it.
type NoiseReductionConfig struct {
	Level         int     `yaml:"level"`
	FFTSize       int     `yaml:"fft_size"`
	EMAAlpha      float64 `yaml:"ema_alpha"`
	CalibrationMs int     `yaml:"calibration_ms"`
	SpectralFloor float64 `yaml:"spectral_floor"`
}

// AGCConfig tunes automatic gain control.
type AGCConfig struct {
	Enabled  bool    `yaml:"enabled"`
	TargetDb float64 `yaml:"target_db"`
	Attack   float64 `yaml:"attack"`
	Release  float64 `yaml:"release"`
	MinGain  float64 `yaml:"min_gain"`
	MaxGain  float64 `yaml:"max_gain"`
}

// VADConfig tunes the fallback voice activity threshold.
type VADConfig struct {
	RMSThreshold float64 `yaml:"rms_threshold"`
}

// MonitorConfig tunes the quality monitor windows.
type MonitorConfig struct {
	Enabled          bool `yaml:"enabled"`
	WindowSize       int  `yaml:"window_size"`
	NoiseFloorWindow int  `yaml:"noise_floor_window"`
}

// TelemetryConfig configures the metrics endpoint.
type TelemetryConfig struct {
	// MetricsAddr is the address serving Prometheus /metrics. Empty
	// disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a fully populated Config matching the library defaults:
// 16 kHz mSBC wide-band, all stages enabled, monitoring on.
func Default() *Config {
	p := pipeline.DefaultConfig()
	m := monitor.DefaultConfig()
	return &Config{
		Audio: AudioConfig{
			SampleRate: p.SampleRate,
			FrameMs:    p.FrameMs,
			Codec:      "mSBC",
		},
		Processing: ProcessingConfig{
			HighPass:   HighPassConfig{Enabled: p.EnableHighPass, CutoffHz: p.HighPassCutoffHz},
			EchoCancel: EchoCancelConfig{Enabled: p.EnableEchoCancel, Taps: p.EchoTaps, StepSize: p.EchoStepSize},
			NoiseReduction: NoiseReductionConfig{
				Level:         p.NoiseReductionLevel,
				FFTSize:       p.FFTSize,
				EMAAlpha:      p.NoiseEMAAlpha,
				CalibrationMs: p.NoiseCalibrationMs,
				SpectralFloor: p.SpectralFloor,
			},
			AGC: AGCConfig{
				Enabled:  p.EnableAGC,
				TargetDb: p.AGCTargetDb,
				Attack:   p.AGCAttack,
				Release:  p.AGCRelease,
				MinGain:  p.AGCMinGain,
				MaxGain:  p.AGCMaxGain,
			},
			VAD: VADConfig{RMSThreshold: p.VoiceRMSThreshold},
		},
		Monitor: MonitorConfig{
			Enabled:          true,
			WindowSize:       m.WindowSize,
			NoiseFloorWindow: m.NoiseFloorWindow,
		},
		LogLevel: LogInfo,
	}
}

// PipelineConfig maps the YAML schema onto the pipeline's construction
// parameters.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		SampleRate:          c.Audio.SampleRate,
		FrameMs:             c.Audio.FrameMs,
		EnableHighPass:      c.Processing.HighPass.Enabled,
		HighPassCutoffHz:    c.Processing.HighPass.CutoffHz,
		EnableEchoCancel:    c.Processing.EchoCancel.Enabled,
		EchoTaps:            c.Processing.EchoCancel.Taps,
		EchoStepSize:        c.Processing.EchoCancel.StepSize,
		NoiseReductionLevel: c.Processing.NoiseReduction.Level,
		FFTSize:             c.Processing.NoiseReduction.FFTSize,
		NoiseEMAAlpha:       c.Processing.NoiseReduction.EMAAlpha,
		NoiseCalibrationMs:  c.Processing.NoiseReduction.CalibrationMs,
		SpectralFloor:       c.Processing.NoiseReduction.SpectralFloor,
		EnableAGC:           c.Processing.AGC.Enabled,
		AGCTargetDb:         c.Processing.AGC.TargetDb,
		AGCAttack:           c.Processing.AGC.Attack,
		AGCRelease:          c.Processing.AGC.Release,
		AGCMinGain:          c.Processing.AGC.MinGain,
		AGCMaxGain:          c.Processing.AGC.MaxGain,
		VoiceRMSThreshold:   c.Processing.VAD.RMSThreshold,
	}
}

// MonitorConfig maps the YAML schema onto the monitor's construction
// parameters.
func (c *Config) MonitorConfig() monitor.Config {
	m := monitor.DefaultConfig()
	m.SampleRate = c.Audio.SampleRate
	m.FrameMs = c.Audio.FrameMs
	m.Codec = c.Audio.Codec
	if c.Monitor.WindowSize > 0 {
		m.WindowSize = c.Monitor.WindowSize
	}
	if c.Monitor.NoiseFloorWindow > 0 {
		m.NoiseFloorWindow = c.Monitor.NoiseFloorWindow
	}
	return m
}
