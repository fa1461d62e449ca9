package config

import (
	"strings"
	"testing"
)

func TestLoadFromReaderDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("default sample rate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.FrameMs != 20 {
		t.Errorf("default frame_ms = %d, want 20", cfg.Audio.FrameMs)
	}
	if !cfg.Processing.HighPass.Enabled || cfg.Processing.HighPass.CutoffHz != 80 {
		t.Errorf("default highpass = %+v", cfg.Processing.HighPass)
	}
	if cfg.Processing.NoiseReduction.Level != 2 {
		t.Errorf("default noise reduction level = %d, want 2", cfg.Processing.NoiseReduction.Level)
	}
	if cfg.LogLevel != LogInfo {
		t.Errorf("default log level = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromReaderOverrides(t *testing.T) {
	const doc = `
audio:
  sample_rate: 8000
  frame_ms: 10
  codec: CVSD
processing:
  highpass:
    enabled: true
    cutoff_hz: 120
  echo_cancel:
    enabled: false
    taps: 256
    step_size: 0.2
  noise_reduction:
    level: 1
    fft_size: 256
log_level: debug
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Audio.SampleRate != 8000 || cfg.Audio.FrameMs != 10 || cfg.Audio.Codec != "CVSD" {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Processing.HighPass.CutoffHz != 120 {
		t.Errorf("cutoff = %g, want 120", cfg.Processing.HighPass.CutoffHz)
	}
	if cfg.Processing.EchoCancel.Enabled {
		t.Error("echo cancel still enabled after override")
	}
	if cfg.Processing.NoiseReduction.Level != 1 || cfg.Processing.NoiseReduction.FFTSize != 256 {
		t.Errorf("noise reduction = %+v", cfg.Processing.NoiseReduction)
	}
	if cfg.LogLevel != LogDebug {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}

	// Untouched sections keep their defaults.
	if !cfg.Processing.AGC.Enabled || cfg.Processing.AGC.MaxGain != 10 {
		t.Errorf("agc defaults lost: %+v", cfg.Processing.AGC)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("audio:\n  bitrate: 64000\n")); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unsupported sample rate", func(c *Config) { c.Audio.SampleRate = 44100 }, "sample_rate"},
		{"zero frame period", func(c *Config) { c.Audio.FrameMs = 0 }, "frame_ms"},
		{"cutoff beyond nyquist", func(c *Config) { c.Processing.HighPass.CutoffHz = 9000 }, "cutoff_hz"},
		{"zero echo taps", func(c *Config) { c.Processing.EchoCancel.Taps = 0 }, "taps"},
		{"step size too large", func(c *Config) { c.Processing.EchoCancel.StepSize = 3 }, "step_size"},
		{"noise level out of range", func(c *Config) { c.Processing.NoiseReduction.Level = 4 }, "level"},
		{"fft smaller than frame", func(c *Config) { c.Processing.NoiseReduction.FFTSize = 100 }, "fft_size"},
		{"ema alpha out of range", func(c *Config) { c.Processing.NoiseReduction.EMAAlpha = 1 }, "ema_alpha"},
		{"inverted gain bounds", func(c *Config) { c.Processing.AGC.MinGain = 5; c.Processing.AGC.MaxGain = 2 }, "gain bounds"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllFailures(t *testing.T) {
	cfg := Default()
	cfg.Audio.SampleRate = 44100
	cfg.Processing.EchoCancel.Taps = -1
	cfg.LogLevel = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{"sample_rate", "taps", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q missing %q", err, want)
		}
	}
}

func TestPipelineConfigMapping(t *testing.T) {
	cfg := Default()
	cfg.Audio.SampleRate = 8000
	cfg.Processing.EchoCancel.Taps = 256

	p := cfg.PipelineConfig()
	if p.SampleRate != 8000 || p.EchoTaps != 256 {
		t.Errorf("pipeline config = %+v", p)
	}
	if p.FrameSize() != 160 {
		t.Errorf("frame size = %d, want 160", p.FrameSize())
	}
}

func TestMonitorConfigMapping(t *testing.T) {
	cfg := Default()
	cfg.Audio.Codec = "CVSD"
	cfg.Monitor.WindowSize = 42

	m := cfg.MonitorConfig()
	if m.Codec != "CVSD" {
		t.Errorf("codec = %q, want CVSD", m.Codec)
	}
	if m.WindowSize != 42 {
		t.Errorf("window size = %d, want 42", m.WindowSize)
	}
}
