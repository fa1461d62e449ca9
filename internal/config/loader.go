package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// supportedSampleRates lists the rates the Bluetooth voice link negotiates:
// 8 kHz narrow-band (CVSD) and 16 kHz wide-band (mSBC).
var supportedSampleRates = []int{8000, 16000}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Unset sections inherit [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !validSampleRate(cfg.Audio.SampleRate) {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is unsupported; valid values: 8000, 16000", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_ms must be positive, got %d", cfg.Audio.FrameMs))
	}

	if cfg.Processing.HighPass.Enabled {
		nyquist := float64(cfg.Audio.SampleRate) / 2
		if c := cfg.Processing.HighPass.CutoffHz; c <= 0 || c >= nyquist {
			errs = append(errs, fmt.Errorf("processing.highpass.cutoff_hz %g must be in (0, %g)", c, nyquist))
		}
	}
	if cfg.Processing.EchoCancel.Enabled {
		if cfg.Processing.EchoCancel.Taps <= 0 {
			errs = append(errs, fmt.Errorf("processing.echo_cancel.taps must be positive, got %d", cfg.Processing.EchoCancel.Taps))
		}
		if s := cfg.Processing.EchoCancel.StepSize; s <= 0 || s > 2 {
			errs = append(errs, fmt.Errorf("processing.echo_cancel.step_size %g must be in (0, 2]", s))
		}
	}
	if l := cfg.Processing.NoiseReduction.Level; l < 0 || l > 3 {
		errs = append(errs, fmt.Errorf("processing.noise_reduction.level %d must be in 0..3", l))
	}
	if cfg.Processing.NoiseReduction.Level > 0 {
		frameSize := cfg.Audio.SampleRate * cfg.Audio.FrameMs / 1000
		if cfg.Processing.NoiseReduction.FFTSize < frameSize {
			errs = append(errs, fmt.Errorf("processing.noise_reduction.fft_size %d is smaller than the %d-sample frame",
				cfg.Processing.NoiseReduction.FFTSize, frameSize))
		}
		if a := cfg.Processing.NoiseReduction.EMAAlpha; a <= 0 || a >= 1 {
			errs = append(errs, fmt.Errorf("processing.noise_reduction.ema_alpha %g must be in (0, 1)", a))
		}
	}
	if cfg.Processing.AGC.Enabled {
		if cfg.Processing.AGC.MinGain <= 0 || cfg.Processing.AGC.MaxGain < cfg.Processing.AGC.MinGain {
			errs = append(errs, fmt.Errorf("processing.agc gain bounds [%g, %g] are invalid",
				cfg.Processing.AGC.MinGain, cfg.Processing.AGC.MaxGain))
		}
	}

	if cfg.Monitor.Enabled && cfg.Monitor.WindowSize < 0 {
		errs = append(errs, fmt.Errorf("monitor.window_size must not be negative, got %d", cfg.Monitor.WindowSize))
	}

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	return errors.Join(errs...)
}

func validSampleRate(rate int) bool {
	for _, r := range supportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}
