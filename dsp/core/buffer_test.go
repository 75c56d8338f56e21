package core

import "testing"

func TestEnsureLen(t *testing.T) {
	t.Parallel()

	buf := make([]float64, 4, 16)
	got := EnsureLen(buf, 10)
	if len(got) != 10 || &got[0] != &buf[0] {
		t.Fatalf("EnsureLen did not reuse capacity: len=%d", len(got))
	}

	grown := EnsureLen(buf, 32)
	if len(grown) != 32 {
		t.Fatalf("len = %d, want 32", len(grown))
	}

	if got := EnsureLen(buf, 0); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestZeroAndFill(t *testing.T) {
	t.Parallel()

	buf := make([]float64, 8)
	Fill(buf, 0.25)
	for i, v := range buf {
		if v != 0.25 {
			t.Fatalf("buf[%d] = %v after Fill", i, v)
		}
	}

	Zero(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("buf[%d] = %v after Zero", i, v)
		}
	}
}
