package graph

import "math"

// StereoPanner positions its input with an equal-power pan law.
type StereoPanner struct {
	*node
	pan *Param
}

// NewStereoPanner returns a centered panner.
func NewStereoPanner(ctx *Context) *StereoPanner {
	p := &StereoPanner{}
	p.node = newNode(ctx, 1, p.process)
	p.pan = p.addParam("pan", 0, -1, 1)

	return p
}

// Pan returns the pan param, -1 (left) to 1 (right).
func (p *StereoPanner) Pan() *Param { return p.pan }

func (p *StereoPanner) process(n *node) {
	l, r := n.in[0][0], n.in[0][1]
	for i := range l {
		pan := math.Max(-1, math.Min(1, p.pan.at(i)))
		x := pan
		if pan <= 0 {
			x = pan + 1
		}

		gl := math.Cos(x * math.Pi / 2)
		gr := math.Sin(x * math.Pi / 2)
		if pan <= 0 {
			n.out[0][i] = l[i] + r[i]*gl
			n.out[1][i] = r[i] * gr
		} else {
			n.out[0][i] = l[i] * gl
			n.out[1][i] = r[i] + l[i]*gr
		}
	}
}
