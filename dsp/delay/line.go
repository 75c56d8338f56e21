// Package delay provides the circular sample buffer behind delay-based
// stages: feedback delays, modulated chorus taps and look-ahead alignment.
package delay

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSize is returned for non-positive line sizes.
var ErrInvalidSize = errors.New("delay: size must be > 0")

// Line is a circular delay line.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line holding size samples of history.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	// Three guard samples keep the cubic interpolator inside written history
	// at the maximum delay.
	return &Line{buffer: make([]float64, size+3)}, nil
}

// ForDuration returns a line able to delay by maxSeconds at sampleRate.
func ForDuration(maxSeconds, sampleRate float64) (*Line, error) {
	return New(int(math.Ceil(maxSeconds*sampleRate)) + 1)
}

// MaxDelay returns the largest delay in samples that Tap accepts.
func (d *Line) MaxDelay() float64 {
	return float64(len(d.buffer) - 3)
}

// Write pushes one sample.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read returns the sample written delay samples ago. Read(1) is the most
// recent write.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	readPos := ((d.writePos-delay)%size + size) % size

	return d.buffer[readPos]
}

// Tap reads a fractional delay (in samples, clamped to [1, MaxDelay]) with
// cubic Hermite interpolation.
func (d *Line) Tap(delay float64) float64 {
	if delay < 1 {
		delay = 1
	}

	if maxDelay := d.MaxDelay(); delay > maxDelay {
		delay = maxDelay
	}

	p := int(math.Floor(delay))
	t := delay - float64(p)

	xm1 := d.Read(max(1, p-1))
	x0 := d.Read(p)
	x1 := d.Read(p + 1)
	x2 := d.Read(p + 2)

	return hermite(t, xm1, x0, x1, x2)
}

// Reset clears line state.
func (d *Line) Reset() {
	clear(d.buffer)
	d.writePos = 0
}

func hermite(t, xm1, x0, x1, x2 float64) float64 {
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)

	return ((c3*t+c2)*t+c1)*t + x0
}
