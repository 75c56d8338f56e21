package core

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    float64
		min      float64
		max      float64
		expected float64
	}{
		{name: "inside", value: 0.5, min: 0, max: 1, expected: 0.5},
		{name: "below", value: -1, min: 0, max: 1, expected: 0},
		{name: "above", value: 2, min: 0, max: 1, expected: 1},
		{name: "swapped", value: 2, min: 1, max: 0, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Clamp(tt.value, tt.min, tt.max)
			if got != tt.expected {
				t.Fatalf("Clamp() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDBConversions(t *testing.T) {
	t.Parallel()

	db := LinearToDB(DBToLinear(-6))
	if !NearlyEqual(db, -6, 1e-10) {
		t.Fatalf("LinearToDB(DBToLinear(-6)) = %v, want -6", db)
	}

	if !math.IsInf(LinearToDB(0), -1) {
		t.Fatal("expected -Inf for zero")
	}

	if !math.IsNaN(LinearToDB(-1)) {
		t.Fatal("expected NaN for negative input")
	}
}

func TestPitchConversions(t *testing.T) {
	t.Parallel()

	if got := MIDIToHz(69); got != 440 {
		t.Fatalf("MIDIToHz(69) = %v, want 440", got)
	}

	if got := MIDIToHz(81); !NearlyEqual(got, 880, 1e-12) {
		t.Fatalf("MIDIToHz(81) = %v, want 880", got)
	}

	if got := HzToMIDI(261.6255653005986); !NearlyEqual(got, 60, 1e-9) {
		t.Fatalf("HzToMIDI(C4) = %v, want 60", got)
	}

	if got := SemitoneRatio(-12); !NearlyEqual(got, 0.5, 1e-12) {
		t.Fatalf("SemitoneRatio(-12) = %v, want 0.5", got)
	}
}

func TestOnePoleCoeff(t *testing.T) {
	t.Parallel()

	c := OnePoleCoeff(0.015, 44100)
	if c <= 0 || c >= 1 {
		t.Fatalf("OnePoleCoeff = %v, want (0,1)", c)
	}

	if got := OnePoleCoeff(0, 44100); got != 1 {
		t.Fatalf("OnePoleCoeff(0) = %v, want 1", got)
	}

	// After one time constant the follower should be at 1-1/e.
	y := 0.0
	n := int(math.Round(0.015 * 44100))
	for range n {
		y += (1 - y) * c
	}

	if math.Abs(y-(1-1/math.E)) > 0.01 {
		t.Fatalf("step response after tc = %v, want ~%v", y, 1-1/math.E)
	}
}

func TestRenderOptions(t *testing.T) {
	t.Parallel()

	cfg := ApplyRenderOptions(WithSampleRate(48000), WithBlockSize(0), nil)
	if cfg.SampleRate != 48000 || cfg.BlockSize != 128 {
		t.Fatalf("cfg = %+v, want 48000/128", cfg)
	}
}
