// Package testutil holds signal generators and tolerance checks shared by
// the audio tests.
package testutil

import (
	"math"
	"math/rand"
)

// Sine returns length samples of a sine at freqHz starting at phase 0.
func Sine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out
}

// Noise returns seeded white noise in [-amplitude, amplitude].
func Noise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out
}

// Impulse returns a unit impulse at pos.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}

	return out
}

// DC returns a constant signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}

	return out
}

// Interleave packs two channels into interleaved float32 frames. The
// shorter channel is padded with silence.
func Interleave(left, right []float64) []float32 {
	n := max(len(left), len(right))
	out := make([]float32, 2*n)
	for i := range n {
		if i < len(left) {
			out[2*i] = float32(left[i])
		}

		if i < len(right) {
			out[2*i+1] = float32(right[i])
		}
	}

	return out
}

// Deinterleave splits interleaved stereo frames into two channels.
func Deinterleave(frames []float32) (left, right []float64) {
	n := len(frames) / 2
	left = make([]float64, n)
	right = make([]float64, n)
	for i := range n {
		left[i] = float64(frames[2*i])
		right[i] = float64(frames[2*i+1])
	}

	return left, right
}

// RMS returns the root mean square of x, or 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}

	var sum float64
	for _, v := range x {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(x)))
}

// Peak returns the largest absolute sample of x.
func Peak(x []float64) float64 {
	var p float64
	for _, v := range x {
		p = math.Max(p, math.Abs(v))
	}

	return p
}
