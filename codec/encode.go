package codec

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavPCMFormat is the WAVE format tag for integer PCM.
const wavPCMFormat = 1

// Encoder writes interleaved float32 frames into an in-memory WAV file.
// Frames are appended chunk by chunk; Close finalizes the header and
// returns the file.
type Encoder struct {
	channels int
	bitDepth int
	file     *memFile
	enc      *wav.Encoder
	frames   int
	scratch  audio.IntBuffer
}

// NewEncoder returns a WAV encoder. bitDepth must be 16 or 24.
func NewEncoder(sampleRate, channels, bitDepth int) (*Encoder, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("codec: encoder: invalid format %d Hz, %d channels", sampleRate, channels)
	}

	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, bitDepth)
	}

	f := &memFile{}
	e := &Encoder{
		channels: channels,
		bitDepth: bitDepth,
		file:     f,
		enc:      wav.NewEncoder(f, sampleRate, bitDepth, channels, wavPCMFormat),
	}

	e.scratch.Format = &audio.Format{NumChannels: channels, SampleRate: sampleRate}
	e.scratch.SourceBitDepth = bitDepth

	return e, nil
}

// Frames returns the number of frames written so far.
func (e *Encoder) Frames() int { return e.frames }

// Write encodes one chunk of interleaved frames.
func (e *Encoder) Write(frames []float32) error {
	if len(frames)%e.channels != 0 {
		return fmt.Errorf("codec: encoder: %d samples is not a multiple of %d channels", len(frames), e.channels)
	}

	if len(frames) == 0 {
		return nil
	}

	scale := math.Pow(2, float64(e.bitDepth-1)) - 1
	data := e.scratch.Data[:0]
	for _, s := range frames {
		v := math.Max(-1, math.Min(1, float64(s)))
		data = append(data, int(math.Round(v*scale)))
	}

	e.scratch.Data = data
	if err := e.enc.Write(&e.scratch); err != nil {
		return fmt.Errorf("codec: encoder: %w", err)
	}

	e.frames += len(frames) / e.channels

	return nil
}

// Close finalizes the container and returns the encoded file.
func (e *Encoder) Close() ([]byte, error) {
	if err := e.enc.Close(); err != nil {
		return nil, fmt.Errorf("codec: encoder: %w", err)
	}

	return e.file.Bytes(), nil
}

// memFile is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

var errNegativeOffset = errors.New("codec: negative seek offset")

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}

	n := copy(m.buf[m.pos:], p)
	m.pos += n

	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return 0, fmt.Errorf("codec: invalid whence %d", whence)
	}

	next := base + offset
	if next < 0 {
		return 0, errNegativeOffset
	}

	m.pos = int(next)

	return next, nil
}

// Bytes returns the written contents.
func (m *memFile) Bytes() []byte { return m.buf }
