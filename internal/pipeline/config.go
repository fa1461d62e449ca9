package pipeline

// Config holds every tunable of the processing pipeline. All values are
// fixed at construction; multiple pipeline instances never share state.
// Use [DefaultConfig] as a starting point and override fields as needed.
type Config struct {
	// SampleRate is the PCM sample rate in Hz (8000 for CVSD, 16000 for mSBC).
	SampleRate int

	// FrameMs is the frame period in milliseconds. One frame holds
	// SampleRate × FrameMs / 1000 samples.
	FrameMs int

	// EnableHighPass toggles the rumble-removal high-pass filter.
	EnableHighPass bool

	// HighPassCutoffHz is the high-pass cutoff frequency. Must be in
	// (0, SampleRate/2) when the filter is enabled.
	HighPassCutoffHz float64

	// EnableEchoCancel toggles acoustic echo cancellation.
	EnableEchoCancel bool

	// EchoTaps is the NLMS fallback filter length in samples.
	EchoTaps int

	// EchoStepSize is the NLMS adaptation step μ.
	EchoStepSize float64

	// NoiseReductionLevel is the spectral subtraction strength (0–3).
	// Zero disables noise reduction.
	NoiseReductionLevel int

	// FFTSize is the transform length for spectral subtraction. Frames are
	// zero-padded to this length; must be ≥ the frame size.
	FFTSize int

	// NoiseEMAAlpha is the smoothing factor for the noise-profile
	// exponential moving average.
	NoiseEMAAlpha float64

	// NoiseCalibrationMs is how much leading audio seeds the noise profile
	// before subtraction starts (frames pass through unmodified meanwhile).
	NoiseCalibrationMs int

	// SpectralFloor is the fraction of the original magnitude kept as a
	// lower bound after subtraction, suppressing musical-noise artifacts.
	SpectralFloor float64

	// EnableAGC toggles automatic gain control.
	EnableAGC bool

	// AGCTargetDb is the target RMS level in dBFS.
	AGCTargetDb float64

	// AGCAttack is the per-frame fraction of the gain gap closed when gain
	// is rising; AGCRelease when falling. Attack ≫ release prevents pumping.
	AGCAttack  float64
	AGCRelease float64

	// AGCMinGain and AGCMaxGain bound the linear gain.
	AGCMinGain float64
	AGCMaxGain float64

	// VoiceRMSThreshold is the energy-based voice activity threshold used
	// when no external detector is configured.
	VoiceRMSThreshold float64
}

// DefaultConfig returns the production defaults: 16 kHz wide-band, 20 ms
// frames, all stages enabled.
func DefaultConfig() Config {
	return Config{
		SampleRate:          16000,
		FrameMs:             20,
		EnableHighPass:      true,
		HighPassCutoffHz:    80,
		EnableEchoCancel:    true,
		EchoTaps:            512,
		EchoStepSize:        0.3,
		NoiseReductionLevel: 2,
		FFTSize:             512,
		NoiseEMAAlpha:       0.1,
		NoiseCalibrationMs:  500,
		SpectralFloor:       0.002,
		EnableAGC:           true,
		AGCTargetDb:         -6,
		AGCAttack:           0.01,
		AGCRelease:          0.001,
		AGCMinGain:          0.5,
		AGCMaxGain:          10,
		VoiceRMSThreshold:   0.01,
	}
}

// FrameSize returns the number of samples per frame.
func (c Config) FrameSize() int {
	return c.SampleRate * c.FrameMs / 1000
}

// CalibrationFrames returns how many leading frames seed the noise profile.
func (c Config) CalibrationFrames() int {
	if c.FrameMs <= 0 {
		return 0
	}
	return c.NoiseCalibrationMs / c.FrameMs
}
