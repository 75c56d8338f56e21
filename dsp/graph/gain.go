package graph

import vecmath "github.com/cwbudde/algo-vecmath"

// Gain scales its input by an automatable linear gain.
type Gain struct {
	*node
	gain *Param
}

// NewGain returns a unity gain stage.
func NewGain(ctx *Context) *Gain {
	g := &Gain{}
	g.node = newNode(ctx, 1, g.process)
	g.gain = g.addParam("gain", 1, -1e6, 1e6)

	return g
}

// Gain returns the linear gain param.
func (g *Gain) Gain() *Param { return g.gain }

func (g *Gain) process(n *node) {
	in := n.in[0]
	if g.gain.uniform {
		v := g.gain.first()
		vecmath.ScaleBlock(n.out[0], in[0], v)
		vecmath.ScaleBlock(n.out[1], in[1], v)

		return
	}

	vecmath.MulBlock(n.out[0], in[0], g.gain.values)
	vecmath.MulBlock(n.out[1], in[1], g.gain.values)
}
