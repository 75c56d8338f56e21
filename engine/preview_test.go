package engine

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-daw/codec"
	"github.com/cwbudde/algo-daw/internal/testutil"
)

// sineWAV returns seconds of a mono 16-bit WAV sine at the test rate.
func sineWAV(t *testing.T, seconds float64) []byte {
	t.Helper()

	enc, err := codec.NewEncoder(testRate, 1, 16)
	require.NoError(t, err)
	wave := testutil.Sine(440, testRate, 0.5, int(seconds*testRate))
	frames := make([]float32, len(wave))
	for i, v := range wave {
		frames[i] = float32(v)
	}

	require.NoError(t, enc.Write(frames))
	data, err := enc.Close()
	require.NoError(t, err)

	return data
}

func audioServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loop.wav" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestImport(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	clip, err := e.Import(context.Background(), bytes.NewReader(sineWAV(t, 0.75)), "loop")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(clip.ID, "clip-"))
	assert.Equal(t, "loop", clip.Name)
	assert.Equal(t, ClipAudio, clip.Type)
	assert.Zero(t, clip.Start)
	assert.Zero(t, clip.Offset)
	assert.InDelta(t, 0.75, clip.Duration, 1e-9)
	assert.Equal(t, testRate, int(clip.Buffer.SampleRate))
	assert.InDelta(t, 0.5/1.4142, testutil.RMS(clip.Buffer.Channel(0)), 0.01)
}

func TestImportRejectsUndecodableData(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	_, err := e.Import(context.Background(), strings.NewReader("definitely not audio"), "junk")
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrDecode) || errors.Is(err, codec.ErrUnsupportedFormat))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Import(ctx, bytes.NewReader(sineWAV(t, 0.1)), "late")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportFile(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "kick.wav")
	require.NoError(t, os.WriteFile(path, sineWAV(t, 0.2), 0o600))

	clip, err := e.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "kick", clip.Name)
	assert.InDelta(t, 0.2, clip.Duration, 1e-9)

	_, err = e.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestImportURL(t *testing.T) {
	t.Parallel()

	srv := audioServer(t, sineWAV(t, 0.5))
	e, _ := newTestEngine(t, WithHTTPClient(srv.Client()))

	clip, err := e.ImportURL(context.Background(), srv.URL+"/loop.wav")
	require.NoError(t, err)
	assert.Equal(t, "loop", clip.Name)
	assert.InDelta(t, 0.5, clip.Duration, 1e-9)

	_, err = e.ImportURL(context.Background(), srv.URL+"/missing.wav")
	assert.ErrorContains(t, err, "404")
}

func TestPlayPreview(t *testing.T) {
	t.Parallel()

	srv := audioServer(t, sineWAV(t, 0.75))
	e, _ := newTestEngine(t, WithHTTPClient(srv.Client()))

	require.NoError(t, e.PlayPreview(context.Background(), srv.URL+"/loop.wav"))
	assert.True(t, e.IsPreviewing())
	e.Advance(0.3)
	e.Inspect(func() {
		assert.Greater(t, e.PreviewAnalyser().RMS(), 0.1)
	})

	e.Advance(0.7)
	assert.False(t, e.IsPreviewing())

	require.NoError(t, e.PlayPreview(context.Background(), srv.URL+"/loop.wav"))
	e.StopPreview()
	assert.False(t, e.IsPreviewing())

	assert.Error(t, e.PlayPreview(context.Background(), srv.URL+"/nope.wav"))
	assert.False(t, e.IsPreviewing())
}

func TestPreviewAfterCloseFails(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	require.NoError(t, e.Close())
	buf := dcBuffer(0.1, 0.5)
	assert.ErrorIs(t, e.PlayPreviewBuffer(buf), ErrClosed)
}
