// Package otoout plays an engine's rendered output on the default audio
// device through oto.
package otoout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// DefaultBufferSize is the device buffer requested when none is given.
const DefaultBufferSize = 20 * time.Millisecond

const bytesPerSample = 4

// ErrClosed is returned by Reader after Close.
var ErrClosed = errors.New("otoout: output closed")

// Renderer produces interleaved stereo float32 frames.
type Renderer interface {
	Render(dst []float32)
}

// Reader adapts a Renderer to the little-endian float32 byte stream oto
// pulls from.
type Reader struct {
	mu     sync.Mutex
	r      Renderer
	frames []float32
	closed bool
}

// NewReader returns a Reader rendering from r.
func NewReader(r Renderer) *Reader {
	return &Reader{r: r}
}

// Read fills p with whole samples. A trailing partial sample is left for
// the next call.
func (rd *Reader) Read(p []byte) (int, error) {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if rd.closed {
		return 0, ErrClosed
	}

	n := len(p) / bytesPerSample
	if n == 0 {
		return 0, nil
	}

	if cap(rd.frames) < n {
		rd.frames = make([]float32, n)
	}

	frames := rd.frames[:n]
	rd.r.Render(frames)
	for i, v := range frames {
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(v))
	}

	return n * bytesPerSample, nil
}

// Close makes later reads fail with ErrClosed.
func (rd *Reader) Close() error {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	rd.closed = true

	return nil
}

var _ io.ReadCloser = (*Reader)(nil)

// Output is a running device stream.
type Output struct {
	reader *Reader
	player *oto.Player
	log    logrus.FieldLogger
}

// Options configures Open.
type Options struct {
	SampleRate int
	BufferSize time.Duration
	Logger     logrus.FieldLogger
}

// oto allows one context per process.
var (
	ctxOnce sync.Once
	ctxErr  error
	otoCtx  *oto.Context
	ctxRate int
)

func deviceContext(rate int, buffer time.Duration) (*oto.Context, error) {
	ctxOnce.Do(func() {
		c, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   buffer,
		})
		if err != nil {
			ctxErr = fmt.Errorf("otoout: open device: %w", err)
			return
		}

		<-ready
		otoCtx, ctxRate = c, rate
	})
	if ctxErr != nil {
		return nil, ctxErr
	}

	if ctxRate != rate {
		return nil, fmt.Errorf("otoout: device already open at %d Hz, want %d Hz", ctxRate, rate)
	}

	return otoCtx, nil
}

// Open starts playing r on the default output device.
func Open(r Renderer, opts Options) (*Output, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("otoout: invalid sample rate %d", opts.SampleRate)
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	c, err := deviceContext(opts.SampleRate, opts.BufferSize)
	if err != nil {
		return nil, err
	}

	reader := NewReader(r)
	player := c.NewPlayer(reader)
	player.SetBufferSize(bufferBytes(opts.SampleRate, opts.BufferSize))
	player.Play()
	log.WithFields(logrus.Fields{
		"function":    "Open",
		"sample_rate": opts.SampleRate,
		"buffer":      opts.BufferSize,
	}).Info("Audio output started")

	return &Output{reader: reader, player: player, log: log}, nil
}

func bufferBytes(rate int, d time.Duration) int {
	frames := int(math.Ceil(d.Seconds() * float64(rate)))
	return frames * 2 * bytesPerSample
}

// Close stops playback.
func (o *Output) Close() error {
	o.player.Pause()
	_ = o.reader.Close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("otoout: close: %w", err)
	}

	o.log.WithField("function", "Close").Info("Audio output stopped")

	return nil
}
