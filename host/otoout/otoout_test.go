package otoout

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	next  float32
	calls int
}

func (c *counter) Render(dst []float32) {
	c.calls++
	for i := range dst {
		dst[i] = c.next
		c.next += 0.25
	}
}

func decode(p []byte) []float32 {
	out := make([]float32, len(p)/bytesPerSample)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*bytesPerSample:]))
	}

	return out
}

func TestReaderEncodesFloat32LE(t *testing.T) {
	t.Parallel()

	src := &counter{}
	rd := NewReader(src)
	p := make([]byte, 6*bytesPerSample+3)
	n, err := rd.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 6*bytesPerSample, n)
	assert.Equal(t, []float32{0, 0.25, 0.5, 0.75, 1, 1.25}, decode(p[:n]))

	n, err = rd.Read(p[:8])
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 1.75}, decode(p[:n]))
}

func TestReaderShortBuffer(t *testing.T) {
	t.Parallel()

	src := &counter{}
	rd := NewReader(src)
	n, err := rd.Read(make([]byte, 3))
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, src.calls)
}

func TestReaderClosed(t *testing.T) {
	t.Parallel()

	rd := NewReader(&counter{})
	require.NoError(t, rd.Close())
	_, err := rd.Read(make([]byte, 16))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBufferBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 441*2*bytesPerSample, bufferBytes(44100, 10*time.Millisecond))
	assert.Equal(t, 960*2*bytesPerSample, bufferBytes(48000, 20*time.Millisecond))
}

func TestOpenRejectsInvalidRate(t *testing.T) {
	t.Parallel()

	_, err := Open(&counter{}, Options{})
	assert.Error(t, err)
}
