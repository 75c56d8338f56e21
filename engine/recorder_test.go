package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingRoundTrip(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	track := audioTrack("a")
	e.UpdateTrack(track, nil)
	feed(t, e, "a", 0.25)

	require.True(t, e.StartRecording(3.0, "a"))
	assert.True(t, e.IsRecording())
	e.Advance(0.5)

	rc, err := e.StopRecording()
	require.NoError(t, err)
	require.NotNil(t, rc)
	assert.False(t, e.IsRecording())
	assert.Equal(t, "a", rc.TrackID)

	clip := rc.Clip
	assert.True(t, strings.HasPrefix(clip.ID, "clip-rec-"))
	assert.Equal(t, "Recording", clip.Name)
	assert.Equal(t, ClipAudio, clip.Type)
	assert.Equal(t, 3.0, clip.Start)
	assert.Zero(t, clip.Offset)
	assert.InDelta(t, 0.5, clip.Duration, 0.02)
	assert.Equal(t, 0.01, clip.FadeIn)
	assert.Equal(t, 0.01, clip.FadeOut)

	require.NotNil(t, clip.Buffer)
	require.Equal(t, 2, clip.Buffer.NumChannels())
	for ch := range 2 {
		data := clip.Buffer.Channel(ch)
		assert.InDelta(t, 0.25, data[len(data)/2], 1e-6)
	}
}

func TestRecordingSixteenBitFallback(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RecordingFormats = []string{"audio/webm;codecs=opus", "wav"}
	e, err := New(cfg, WithoutTicker())
	require.NoError(t, err)
	defer e.Close()

	e.UpdateTrack(audioTrack("a"), nil)
	feed(t, e, "a", -0.5)
	require.True(t, e.StartRecording(0, "a"))
	e.Advance(0.25)
	rc, err := e.StopRecording()
	require.NoError(t, err)
	data := rc.Clip.Buffer.Channel(0)
	assert.InDelta(t, -0.5, data[len(data)/2], 1e-3)
}

func TestStopRecordingWithoutSession(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	rc, err := e.StopRecording()
	assert.NoError(t, err)
	assert.Nil(t, rc)
}

func TestEmptyRecording(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	e.UpdateTrack(audioTrack("a"), nil)
	require.True(t, e.StartRecording(0, "a"))

	rc, err := e.StopRecording()
	assert.ErrorIs(t, err, ErrEmptyRecording)
	assert.Nil(t, rc)
	assert.False(t, e.IsRecording())
}

func TestStartRecordingRejects(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	assert.False(t, e.StartRecording(0, "missing"))

	e.UpdateTrack(audioTrack("a"), nil)
	e.UpdateTrack(audioTrack("b"), nil)
	require.True(t, e.StartRecording(0, "a"))
	assert.False(t, e.StartRecording(0, "b"), "only one session at a time")
	assert.False(t, e.StartRecording(0, "a"))

	e.Reset()
	assert.False(t, e.IsRecording())
}

func TestRecordingSurvivesTrackRebuild(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	track := audioTrack("a")
	e.UpdateTrack(track, nil)
	feed(t, e, "a", 0.25)
	require.True(t, e.StartRecording(0, "a"))
	e.Advance(0.1)

	track.Volume = 0.1
	track.Pan = 1
	e.UpdateTrack(track, nil)
	e.Advance(0.1)

	rc, err := e.StopRecording()
	require.NoError(t, err)
	data := rc.Clip.Buffer.Channel(1)
	assert.InDelta(t, 0.25, data[len(data)-10], 1e-4)
}
