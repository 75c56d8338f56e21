package graph

import "fmt"

// Buffer is decoded audio: per-channel samples at a sample rate. Buffers
// are shared between sources and never mutated after construction.
type Buffer struct {
	SampleRate float64
	Channels   [][]float64
}

// NewBuffer allocates a silent buffer.
func NewBuffer(channels, frames int, sampleRate float64) (*Buffer, error) {
	if channels <= 0 || frames < 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("graph: invalid buffer shape: %d channels, %d frames, %v Hz", channels, frames, sampleRate)
	}

	b := &Buffer{SampleRate: sampleRate, Channels: make([][]float64, channels)}
	for ch := range b.Channels {
		b.Channels[ch] = make([]float64, frames)
	}

	return b, nil
}

// Frames returns the length in sample frames.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}

	return len(b.Channels[0])
}

// Duration returns the length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}

	return float64(b.Frames()) / b.SampleRate
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int { return len(b.Channels) }

// Channel returns channel ch, repeating the last channel for mono-to-stereo
// reads.
func (b *Buffer) Channel(ch int) []float64 {
	if ch >= len(b.Channels) {
		ch = len(b.Channels) - 1
	}

	return b.Channels[ch]
}

// sampleAt reads channel ch at a fractional frame position with linear
// interpolation. Positions outside the buffer read as silence.
func (b *Buffer) sampleAt(ch int, pos float64) float64 {
	data := b.Channel(ch)
	if pos < 0 {
		return 0
	}

	i := int(pos)
	if i >= len(data) {
		return 0
	}

	frac := pos - float64(i)
	x0 := data[i]
	if frac == 0 || i+1 >= len(data) {
		return x0
	}

	return x0 + (data[i+1]-x0)*frac
}
