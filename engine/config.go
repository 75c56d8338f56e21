package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override Config.
const EnvPrefix = "ALGO_DAW_"

// Config holds the engine settings. The zero value is not usable; start
// from DefaultConfig or LoadConfig.
type Config struct {
	SampleRate float64 `yaml:"sampleRate"`
	BlockSize  int     `yaml:"blockSize"`

	// LookAhead is the scheduling window; TickInterval the cadence at which
	// windows are filled. StartLatency delays the first window after a
	// start so the first events are not late.
	LookAhead    time.Duration `yaml:"lookAhead"`
	TickInterval time.Duration `yaml:"tickInterval"`
	StartLatency time.Duration `yaml:"startLatency"`

	// RampTimeConstant smooths volume and pan changes.
	RampTimeConstant time.Duration `yaml:"rampTimeConstant"`

	// RecordingSlice is how much captured audio is encoded per chunk.
	RecordingSlice time.Duration `yaml:"recordingSlice"`
	// RecordingFormats lists container preferences; the first supported
	// one is used.
	RecordingFormats []string `yaml:"recordingFormats"`

	PreviewGain float64 `yaml:"previewGain"`
	Tempo       float64 `yaml:"tempo"`
	LogLevel    string  `yaml:"logLevel"`
}

// DefaultConfig returns the real-time defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:       44100,
		BlockSize:        128,
		LookAhead:        100 * time.Millisecond,
		TickInterval:     25 * time.Millisecond,
		StartLatency:     50 * time.Millisecond,
		RampTimeConstant: 15 * time.Millisecond,
		RecordingSlice:   100 * time.Millisecond,
		RecordingFormats: []string{"wav24", "wav"},
		PreviewGain:      0.8,
		Tempo:            120,
		LogLevel:         "info",
	}
}

// LoadConfig reads a YAML file over the defaults, then applies ALGO_DAW_*
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("engine: config: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("engine: config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// applyEnv overrides fields from environment lookups.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	float := func(name string, dst *float64) {
		if v, ok := get(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}

			*dst = f
		}
	}

	duration := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}

			*dst = d
		}
	}

	float("SAMPLE_RATE", &c.SampleRate)
	if v, ok := get("BLOCK_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sBLOCK_SIZE: %w", EnvPrefix, err))
		} else {
			c.BlockSize = n
		}
	}

	duration("LOOKAHEAD", &c.LookAhead)
	duration("TICK_INTERVAL", &c.TickInterval)
	duration("START_LATENCY", &c.StartLatency)
	duration("RAMP_TIME_CONSTANT", &c.RampTimeConstant)
	duration("RECORDING_SLICE", &c.RecordingSlice)
	if v, ok := get("RECORDING_FORMATS"); ok {
		var formats []string
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				formats = append(formats, f)
			}
		}

		c.RecordingFormats = formats
	}

	float("PREVIEW_GAIN", &c.PreviewGain)
	float("TEMPO", &c.Tempo)
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	if len(errs) > 0 {
		return fmt.Errorf("engine: config: %w", errors.Join(errs...))
	}

	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.SampleRate < 8000 || c.SampleRate > 384000:
		return fmt.Errorf("engine: config: sample rate %v out of range", c.SampleRate)
	case c.BlockSize <= 0:
		return fmt.Errorf("engine: config: block size must be positive: %d", c.BlockSize)
	case c.LookAhead <= 0 || c.TickInterval <= 0:
		return fmt.Errorf("engine: config: look-ahead and tick interval must be positive")
	case c.TickInterval > c.LookAhead:
		return fmt.Errorf("engine: config: tick interval %v exceeds look-ahead %v", c.TickInterval, c.LookAhead)
	case c.StartLatency < 0 || c.RampTimeConstant < 0:
		return fmt.Errorf("engine: config: negative latency or ramp")
	case c.RecordingSlice <= 0:
		return fmt.Errorf("engine: config: recording slice must be positive")
	case c.Tempo <= 0:
		return fmt.Errorf("engine: config: tempo must be positive: %v", c.Tempo)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("engine: config: %w", err)
	}

	return nil
}

// recordingDepth returns the first supported recording format and its
// bit depth, falling back to 16-bit WAV.
func (c Config) recordingDepth() (string, int) {
	for _, f := range c.RecordingFormats {
		switch strings.ToLower(f) {
		case "wav24", "audio/wav;bits=24":
			return f, 24
		case "wav", "wav16", "audio/wav":
			return f, 16
		}
	}

	return "wav", 16
}
