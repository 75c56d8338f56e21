package testutil

import "testing"

func TestLevelChecks(t *testing.T) {
	t.Parallel()

	RequireAudible(t, DC(0.5, 16), 0.49)
	RequireSilent(t, DC(1e-9, 16), 1e-6)
	RequireFinite(t, Sine(10, 1000, 1, 100))
}

func TestPeakAndRMS(t *testing.T) {
	t.Parallel()

	x := []float64{0.5, -2, 1}
	if got := Peak(x); got != 2 {
		t.Fatalf("Peak = %v, want 2", got)
	}

	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}

	if got := RMS([]float64{3, -3}); got != 3 {
		t.Fatalf("RMS = %v, want 3", got)
	}
}
