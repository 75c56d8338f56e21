package graph

import "math"

// WaveShaper maps each sample through a transfer curve spanning [-1, 1]
// with linear interpolation. A nil curve passes the input through.
type WaveShaper struct {
	*node
	curve []float64
}

// NewWaveShaper returns a pass-through shaper.
func NewWaveShaper(ctx *Context) *WaveShaper {
	w := &WaveShaper{}
	w.node = newNode(ctx, 1, w.process)

	return w
}

// SetCurve installs a transfer curve. Curves shorter than two points
// disable shaping.
func (w *WaveShaper) SetCurve(curve []float64) {
	if len(curve) < 2 {
		w.curve = nil
		return
	}

	w.curve = append(w.curve[:0], curve...)
}

// Curve returns the installed curve.
func (w *WaveShaper) Curve() []float64 { return w.curve }

// Shape maps one sample through the curve.
func (w *WaveShaper) Shape(x float64) float64 {
	curve := w.curve
	if curve == nil {
		return x
	}

	last := float64(len(curve) - 1)
	pos := (x + 1) * 0.5 * last
	if pos <= 0 {
		return curve[0]
	}

	if pos >= last {
		return curve[len(curve)-1]
	}

	i := int(math.Floor(pos))
	frac := pos - float64(i)

	return curve[i] + (curve[i+1]-curve[i])*frac
}

func (w *WaveShaper) process(n *node) {
	if w.curve == nil {
		n.passThrough()
		return
	}

	for ch := range Channels {
		out := n.out[ch]
		for i, x := range n.in[0][ch] {
			out[i] = w.Shape(x)
		}
	}
}
