package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-daw/codec"
	"github.com/cwbudde/algo-daw/dsp/graph"
)

// previewLane auditions assets independently of the tracks and transport:
// source -> gain -> analyser -> destination.
type previewLane struct {
	gain     *graph.Gain
	analyser *graph.Analyser
	source   *graph.BufferSource
}

func newPreviewLane(ctx *graph.Context, level float64) (*previewLane, error) {
	a, err := graph.NewAnalyser(ctx, trackFFTSize, meterSmoothing)
	if err != nil {
		return nil, err
	}

	p := &previewLane{gain: graph.NewGain(ctx), analyser: a}
	p.gain.Gain().SetValue(level)
	if err := p.gain.Connect(a); err != nil {
		p.close()
		return nil, err
	}

	if err := a.Connect(ctx.Destination()); err != nil {
		p.close()
		return nil, err
	}

	return p, nil
}

func (p *previewLane) stop() {
	if p.source == nil {
		return
	}

	p.source.Close()
	p.source = nil
}

func (p *previewLane) close() {
	p.stop()
	p.gain.Close()
	p.analyser.Close()
}

// PlayPreview fetches and decodes url, then plays it on the preview lane,
// replacing any running preview.
func (e *Engine) PlayPreview(ctx context.Context, url string) error {
	buf, err := e.fetch(ctx, url)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"function": "PlayPreview",
			"url":      url,
		}).WithError(err).Error("Preview failed")

		return err
	}

	return e.PlayPreviewBuffer(buf)
}

// PlayPreviewBuffer plays buf on the preview lane.
func (e *Engine) PlayPreviewBuffer(buf *graph.Buffer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	e.stopPreviewLocked()
	src := graph.NewBufferSource(e.ctx, buf)
	if err := src.Connect(e.preview.gain); err != nil {
		src.Close()
		return fmt.Errorf("engine: preview: %w", err)
	}

	if err := src.Start(e.ctx.CurrentTime(), 0, 0); err != nil {
		src.Close()
		return fmt.Errorf("engine: preview: %w", err)
	}

	e.preview.gain.Gain().SetValue(e.cfg.PreviewGain)
	e.preview.source = src
	src.OnEnded(func() {
		if e.preview.source == src {
			e.preview.stop()
		}
	})

	return nil
}

// StopPreview stops the preview lane.
func (e *Engine) StopPreview() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPreviewLocked()
}

func (e *Engine) stopPreviewLocked() {
	if e.preview != nil {
		e.preview.stop()
	}
}

// IsPreviewing reports whether the preview lane is playing.
func (e *Engine) IsPreviewing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.preview.source != nil
}

// Import decodes r into a new audio clip at the engine rate. The clip
// starts at zero, spans the whole buffer and has no offset. Decode failures
// wrap codec.ErrDecode or codec.ErrUnsupportedFormat and create nothing.
func (e *Engine) Import(ctx context.Context, r io.Reader, name string) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := codec.Decode(r, e.cfg.SampleRate)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"function": "Import",
			"name":     name,
		}).WithError(err).Warn("Import failed")

		return nil, fmt.Errorf("engine: import %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Clip{
		ID:       "clip-" + uuid.NewString(),
		Name:     name,
		Type:     ClipAudio,
		Duration: buf.Duration(),
		Gain:     1,
		Buffer:   buf,
	}, nil
}

// ImportFile imports a local audio file.
func (e *Engine) ImportFile(ctx context.Context, path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("engine: import: %w", err)
	}

	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return e.Import(ctx, f, name)
}

// ImportURL fetches and imports a remote audio file.
func (e *Engine) ImportURL(ctx context.Context, url string) (*Clip, error) {
	body, err := e.get(ctx, url)
	if err != nil {
		return nil, err
	}

	defer body.Close()
	name := strings.TrimSuffix(filepath.Base(url), filepath.Ext(url))

	return e.Import(ctx, body, name)
}

func (e *Engine) fetch(ctx context.Context, url string) (*graph.Buffer, error) {
	body, err := e.get(ctx, url)
	if err != nil {
		return nil, err
	}

	defer body.Close()
	buf, err := codec.Decode(body, e.cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", url, err)
	}

	return buf, nil
}

func (e *Engine) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("engine: fetch %s: HTTP %d", url, resp.StatusCode)
	}

	return resp.Body, nil
}
