package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100*time.Millisecond, cfg.LookAhead)
	assert.Equal(t, 25*time.Millisecond, cfg.TickInterval)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sampleRate: 48000
blockSize: 256
lookAhead: 200ms
recordingFormats: [wav]
logLevel: debug
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 48000.0, cfg.SampleRate)
	assert.Equal(t, 256, cfg.BlockSize)
	assert.Equal(t, 200*time.Millisecond, cfg.LookAhead)
	assert.Equal(t, 25*time.Millisecond, cfg.TickInterval, "unset keys keep defaults")
	assert.Equal(t, []string{"wav"}, cfg.RecordingFormats)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"SAMPLE_RATE", "22050")
	t.Setenv(EnvPrefix+"TICK_INTERVAL", "10ms")
	t.Setenv(EnvPrefix+"RECORDING_FORMATS", " wav , wav24 ")
	t.Setenv(EnvPrefix+"TEMPO", "96")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 22050.0, cfg.SampleRate)
	assert.Equal(t, 10*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, []string{"wav", "wav24"}, cfg.RecordingFormats)
	assert.Equal(t, 96.0, cfg.Tempo)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sampleRate: [1, 2"), 0o600))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestApplyEnvCollectsErrors(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvPrefix + "BLOCK_SIZE": "many",
		EnvPrefix + "LOOKAHEAD":  "soon",
		EnvPrefix + "TEMPO":      "   ",
	}

	cfg := DefaultConfig()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "BLOCK_SIZE")
	assert.ErrorContains(t, err, "LOOKAHEAD")
	assert.Equal(t, 120.0, cfg.Tempo, "blank values are ignored")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"sample rate":   func(c *Config) { c.SampleRate = 100 },
		"block size":    func(c *Config) { c.BlockSize = 0 },
		"look-ahead":    func(c *Config) { c.LookAhead = 0 },
		"tick too long": func(c *Config) { c.TickInterval = time.Second },
		"latency":       func(c *Config) { c.StartLatency = -time.Millisecond },
		"slice":         func(c *Config) { c.RecordingSlice = 0 },
		"tempo":         func(c *Config) { c.Tempo = 0 },
		"log level":     func(c *Config) { c.LogLevel = "loud" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRecordingDepth(t *testing.T) {
	t.Parallel()

	cases := []struct {
		formats []string
		format  string
		depth   int
	}{
		{[]string{"wav24", "wav"}, "wav24", 24},
		{[]string{"audio/webm;codecs=opus", "wav"}, "wav", 16},
		{[]string{"WAV16"}, "WAV16", 16},
		{nil, "wav", 16},
		{[]string{"ogg"}, "wav", 16},
	}

	for _, tc := range cases {
		cfg := Config{RecordingFormats: tc.formats}
		format, depth := cfg.recordingDepth()
		assert.Equal(t, tc.format, format, "%v", tc.formats)
		assert.Equal(t, tc.depth, depth, "%v", tc.formats)
	}
}
