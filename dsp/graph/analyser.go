package graph

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/viterin/vek/vek32"

	"github.com/cwbudde/algo-daw/dsp/core"
)

// Analyser records the most recent fftSize samples of its (mono-summed)
// input for level and spectrum readouts and passes the input through
// unchanged. Analysers are always rendered, even when nothing consumes
// their output.
type Analyser struct {
	*node
	fftSize   int
	smoothing float64

	ring    []float32
	ringPos int

	linear  []float32
	squares []float32
	plan    *algofft.Plan[complex128]
	spec    []complex128
	re, im  []float64
	mags    []float64
	smooth  []float64
}

// NewAnalyser returns an analyser with the given power-of-two window size
// and spectral smoothing in [0, 1).
func NewAnalyser(ctx *Context, fftSize int, smoothing float64) (*Analyser, error) {
	if fftSize < 32 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("graph: analyser: fft size must be a power of two >= 32: %d", fftSize)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("graph: analyser: fft plan: %w", err)
	}

	a := &Analyser{
		fftSize:   fftSize,
		smoothing: math.Max(0, math.Min(smoothing, 0.999)),
		ring:      make([]float32, fftSize),
		linear:    make([]float32, fftSize),
		squares:   make([]float32, fftSize),
		plan:      plan,
		spec:      make([]complex128, fftSize),
		mags:      make([]float64, fftSize/2),
		smooth:    make([]float64, fftSize/2),
	}

	a.node = newNode(ctx, 1, a.process)
	ctx.addSink(a.node)

	return a, nil
}

// FFTSize returns the analysis window length.
func (a *Analyser) FFTSize() int { return a.fftSize }

func (a *Analyser) process(n *node) {
	n.passThrough()
	for i := range n.out[0] {
		a.ring[a.ringPos] = float32(0.5 * (n.out[0][i] + n.out[1][i]))
		a.ringPos = (a.ringPos + 1) % a.fftSize
	}
}

// TimeDomain copies the window, oldest sample first, into dst and returns
// the number of samples written.
func (a *Analyser) TimeDomain(dst []float32) int {
	n := min(len(dst), a.fftSize)
	start := (a.ringPos + a.fftSize - n) % a.fftSize
	for i := range n {
		dst[i] = a.ring[(start+i)%a.fftSize]
	}

	return n
}

// RMS returns the root-mean-square level of the window.
func (a *Analyser) RMS() float64 {
	a.TimeDomain(a.linear)
	vek32.Mul_Into(a.squares, a.linear, a.linear)

	return math.Sqrt(float64(vek32.Mean(a.squares)))
}

// Peak returns the absolute peak of the window.
func (a *Analyser) Peak() float64 {
	a.TimeDomain(a.linear)
	vek32.Abs_Inplace(a.linear)

	return float64(vek32.Max(a.linear))
}

// LevelDB returns the window RMS in dBFS.
func (a *Analyser) LevelDB() float64 {
	rms := a.RMS()
	if rms <= 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(rms)
}

// FrequencyData writes the smoothed magnitude spectrum in dB (fftSize/2
// bins) into dst and returns the number of bins written.
func (a *Analyser) FrequencyData(dst []float64) int {
	a.TimeDomain(a.linear)
	n := float64(a.fftSize)
	for i, v := range a.linear {
		w := 0.42 - 0.5*math.Cos(2*math.Pi*float64(i)/n) + 0.08*math.Cos(4*math.Pi*float64(i)/n)
		a.spec[i] = complex(float64(v)*w, 0)
	}

	if err := a.plan.Forward(a.spec, a.spec); err != nil {
		return 0
	}

	half := a.fftSize / 2
	a.re = core.EnsureLen(a.re, half)
	a.im = core.EnsureLen(a.im, half)
	for i := range half {
		a.re[i], a.im[i] = real(a.spec[i])/n, imag(a.spec[i])/n
	}

	vecmath.Magnitude(a.mags, a.re, a.im)

	bins := min(len(dst), half)
	for i := range half {
		a.smooth[i] = a.smoothing*a.smooth[i] + (1-a.smoothing)*a.mags[i]
	}

	for i := range bins {
		if a.smooth[i] <= 0 {
			dst[i] = math.Inf(-1)
			continue
		}

		dst[i] = 20 * math.Log10(a.smooth[i])
	}

	return bins
}
