package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-daw/codec"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
	"github.com/cwbudde/algo-daw/engine"
	"github.com/cwbudde/algo-daw/internal/testutil"
)

func testSession(t *testing.T, files ...string) *session {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.SampleRate = 16000
	logger, _ := test.NewNullLogger()

	return &session{cfg: cfg, log: logger, files: files}
}

func writeSine(t *testing.T, seconds float64) string {
	t.Helper()
	wave := testutil.Sine(220, 16000, 0.5, int(seconds*16000))
	buf := &graph.Buffer{SampleRate: 16000, Channels: [][]float64{wave}}
	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, writeWAV(path, buf))

	return path
}

func TestParseEffects(t *testing.T) {
	t.Parallel()

	got, err := parseEffects(" reverb, ,SYNC_DELAY")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, plugin.KindReverb, got[0].Kind)
	assert.Equal(t, plugin.KindDelay, got[1].Kind)
	assert.True(t, got[1].Enabled)
	assert.NotEqual(t, got[0].ID, got[1].ID)

	none, err := parseEffects("")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = parseEffects("SYNTH")
	assert.Error(t, err)
}

func TestBuildPlacesClipsBackToBack(t *testing.T) {
	t.Parallel()

	path := writeSine(t, 0.25)
	s := testSession(t, path, path)
	s.fx = "COMPRESSOR"
	e, tracks, length, err := s.build(context.Background(), engine.WithoutTicker())
	require.NoError(t, err)
	defer e.Close()

	require.Len(t, tracks, 1)
	clips := tracks[0].Clips
	require.Len(t, clips, 2)
	assert.Zero(t, clips[0].Start)
	assert.InDelta(t, 0.25, clips[1].Start, 1e-9)
	assert.InDelta(t, 0.5, length, 1e-9)
	assert.NotNil(t, e.PluginInstance(audioTrackID, tracks[0].Plugins[0].ID))
}

func TestBuildRejectsNonInstrument(t *testing.T) {
	t.Parallel()

	s := testSession(t)
	s.midiPort = "any"
	s.instrument = "REVERB"
	_, _, _, err := s.build(context.Background(), engine.WithoutTicker())
	assert.Error(t, err)
}

func TestRenderTo(t *testing.T) {
	t.Parallel()

	s := testSession(t, writeSine(t, 0.5))
	s.seconds = 1
	out := filepath.Join(t.TempDir(), "mix.wav")
	require.NoError(t, s.renderTo(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	buf, err := codec.DecodeBytes(data, 16000)
	require.NoError(t, err)
	assert.Equal(t, 2, buf.NumChannels())
	assert.Equal(t, 16000, buf.Frames())

	left := buf.Channel(0)
	testutil.RequireAudible(t, left[1600:8000], 0.1)
	testutil.RequireSilent(t, left[10000:], 1e-3)
}

func TestRenderToNeedsMaterial(t *testing.T) {
	t.Parallel()

	s := testSession(t)
	assert.Error(t, s.renderTo(filepath.Join(t.TempDir(), "empty.wav")))

	s.mic = true
	assert.Error(t, s.renderTo(filepath.Join(t.TempDir(), "live.wav")))
}

func TestRunTime(t *testing.T) {
	t.Parallel()

	s := &session{}
	assert.Zero(t, s.runTime(0))
	assert.InDelta(t, 2+tailSeconds, s.runTime(2).Seconds(), 1e-9)
	s.seconds = 3
	assert.InDelta(t, 3, s.runTime(2).Seconds(), 1e-9)
}
