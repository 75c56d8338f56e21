package core

import "math"

const defaultEpsilon = 1e-12

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// NearlyEqual reports whether a and b are equal within eps, relative to the
// larger magnitude.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))

	return diff/largest <= eps
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// FlushDenormals converts tiny denormal-like values to exact zero.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	if linear < 0 {
		return math.NaN()
	}

	if linear == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(linear)
}

// SemitoneRatio returns the frequency ratio for a pitch offset in semitones.
func SemitoneRatio(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}

// MIDIToHz converts a MIDI note number to frequency (A4 = 69 = 440 Hz).
func MIDIToHz(note float64) float64 {
	return 440 * SemitoneRatio(note-69)
}

// HzToMIDI converts a frequency to a fractional MIDI note number.
func HzToMIDI(hz float64) float64 {
	if hz <= 0 {
		return math.Inf(-1)
	}

	return 69 + 12*math.Log2(hz/440)
}

// OnePoleCoeff returns the per-sample smoothing coefficient of a one-pole
// follower reaching 1-1/e of a step after timeConstant seconds.
func OnePoleCoeff(timeConstant, sampleRate float64) float64 {
	if timeConstant <= 0 || sampleRate <= 0 {
		return 1
	}

	return 1 - math.Exp(-1/(timeConstant*sampleRate))
}
