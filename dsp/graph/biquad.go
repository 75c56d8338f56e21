package graph

import (
	"math"

	"github.com/cwbudde/algo-daw/dsp/core"
)

// FilterType selects the biquad response.
type FilterType int

// Supported biquad responses.
const (
	Lowpass FilterType = iota
	Highpass
	Bandpass
	Notch
	Peaking
	Lowshelf
	Highshelf
	Allpass
)

// ParseFilterType maps a filter name ("lowpass", "peaking", ...) to its type.
// Unknown names map to Peaking.
func ParseFilterType(name string) FilterType {
	switch name {
	case "lowpass":
		return Lowpass
	case "highpass":
		return Highpass
	case "bandpass":
		return Bandpass
	case "notch":
		return Notch
	case "lowshelf":
		return Lowshelf
	case "highshelf":
		return Highshelf
	case "allpass":
		return Allpass
	default:
		return Peaking
	}
}

type coefficients struct {
	b0, b1, b2, a1, a2 float64
}

// BiquadFilter is a second-order IIR section in direct form II transposed
// with RBJ cookbook coefficients. Params are evaluated once per quantum.
type BiquadFilter struct {
	*node
	typ       FilterType
	frequency *Param
	q         *Param
	gain      *Param

	coeffs coefficients
	last   [3]float64
	dirty  bool
	state  [Channels][2]float64
}

// NewBiquadFilter returns a filter of the given type at 350 Hz, Q 1.
func NewBiquadFilter(ctx *Context, typ FilterType) *BiquadFilter {
	f := &BiquadFilter{typ: typ, dirty: true}
	f.node = newNode(ctx, 1, f.process)
	f.frequency = f.addParam("frequency", 350, 10, ctx.sampleRate/2)
	f.q = f.addParam("Q", 1, 0.0001, 1000)
	f.gain = f.addParam("gain", 0, -40, 40)

	return f
}

// Frequency returns the cutoff or center frequency param in Hz.
func (f *BiquadFilter) Frequency() *Param { return f.frequency }

// Q returns the quality factor param.
func (f *BiquadFilter) Q() *Param { return f.q }

// Gain returns the gain param in dB (peaking and shelving types).
func (f *BiquadFilter) Gain() *Param { return f.gain }

// Type returns the response type.
func (f *BiquadFilter) Type() FilterType { return f.typ }

// SetType switches the response type, keeping filter state.
func (f *BiquadFilter) SetType(typ FilterType) {
	if typ != f.typ {
		f.typ = typ
		f.dirty = true
	}
}

// MagnitudeAt returns the linear magnitude response at freq Hz for the
// current coefficients.
func (f *BiquadFilter) MagnitudeAt(freq float64) float64 {
	c := design(f.typ, f.frequency.FinalValue(), f.q.FinalValue(), f.gain.FinalValue(), f.ctx.sampleRate)
	w := 2 * math.Pi * freq / f.ctx.sampleRate
	z1 := complex(math.Cos(-w), math.Sin(-w))
	z2 := z1 * z1
	num := complex(c.b0, 0) + complex(c.b1, 0)*z1 + complex(c.b2, 0)*z2
	den := 1 + complex(c.a1, 0)*z1 + complex(c.a2, 0)*z2

	return abs(num / den)
}

func abs(c complex128) float64 { return math.Hypot(real(c), imag(c)) }

func (f *BiquadFilter) process(n *node) {
	cur := [3]float64{f.frequency.first(), f.q.first(), f.gain.first()}
	if f.dirty || cur != f.last {
		f.coeffs = design(f.typ, cur[0], cur[1], cur[2], n.ctx.sampleRate)
		f.last = cur
		f.dirty = false
	}

	c := f.coeffs
	for ch := range Channels {
		d0, d1 := f.state[ch][0], f.state[ch][1]
		out := n.out[ch]
		for i, x := range n.in[0][ch] {
			y := c.b0*x + d0
			d0 = c.b1*x - c.a1*y + d1
			d1 = c.b2*x - c.a2*y
			out[i] = y
		}

		f.state[ch] = [2]float64{core.FlushDenormals(d0), core.FlushDenormals(d1)}
	}
}

func design(typ FilterType, freq, q, gainDB, sampleRate float64) coefficients {
	nyquist := sampleRate / 2
	freq = math.Max(1, math.Min(freq, nyquist*0.999))
	if q <= 0 {
		q = 1 / math.Sqrt2
	}

	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)
	a := math.Pow(10, gainDB/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch typ {
	case Lowpass:
		b0, b1, b2 = (1-cw)/2, 1-cw, (1-cw)/2
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Highpass:
		b0, b1, b2 = (1+cw)/2, -(1 + cw), (1+cw)/2
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Bandpass:
		b0, b1, b2 = alpha, 0, -alpha
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Notch:
		b0, b1, b2 = 1, -2*cw, 1
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Allpass:
		b0, b1, b2 = 1-alpha, -2*cw, 1+alpha
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Lowshelf:
		beta := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) - (a-1)*cw + beta)
		b1 = 2 * a * ((a - 1) - (a+1)*cw)
		b2 = a * ((a + 1) - (a-1)*cw - beta)
		a0 = (a + 1) + (a-1)*cw + beta
		a1 = -2 * ((a - 1) + (a+1)*cw)
		a2 = (a + 1) + (a-1)*cw - beta
	case Highshelf:
		beta := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) + (a-1)*cw + beta)
		b1 = -2 * a * ((a - 1) + (a+1)*cw)
		b2 = a * ((a + 1) + (a-1)*cw - beta)
		a0 = (a + 1) - (a-1)*cw + beta
		a1 = 2 * ((a - 1) - (a+1)*cw)
		a2 = (a + 1) - (a-1)*cw - beta
	default:
		b0, b1, b2 = 1+alpha*a, -2*cw, 1-alpha*a
		a0, a1, a2 = 1+alpha/a, -2*cw, 1-alpha/a
	}

	return coefficients{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}
