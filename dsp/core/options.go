package core

// RenderConfig holds the settings every node of a render graph shares: the
// sample rate and the render quantum.
type RenderConfig struct {
	SampleRate float64
	BlockSize  int
}

// RenderOption adjusts a RenderConfig.
type RenderOption func(*RenderConfig)

// DefaultRenderConfig is 44.1 kHz in 128-frame quanta.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{SampleRate: 44100, BlockSize: 128}
}

// WithSampleRate sets the sample rate; non-positive values are ignored.
func WithSampleRate(sampleRate float64) RenderOption {
	return func(cfg *RenderConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the render quantum in frames; non-positive values are
// ignored.
func WithBlockSize(frames int) RenderOption {
	return func(cfg *RenderConfig) {
		if frames > 0 {
			cfg.BlockSize = frames
		}
	}
}

// ApplyRenderOptions returns the defaults with opts applied in order.
func ApplyRenderOptions(opts ...RenderOption) RenderConfig {
	cfg := DefaultRenderConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}
