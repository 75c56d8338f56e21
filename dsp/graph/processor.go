package graph

// ProcessFunc renders one quantum: in holds the summed stereo input per
// port, out the stereo output to fill, t0 the clock time of the first frame.
type ProcessFunc func(in [][Channels][]float64, out [Channels][]float64, t0 float64)

// Processor runs a caller-supplied block kernel inside the graph.
type Processor struct {
	*node
	fn ProcessFunc
}

// NewProcessor returns a processor with the given number of input ports.
func NewProcessor(ctx *Context, ports int, fn ProcessFunc) *Processor {
	p := &Processor{fn: fn}
	p.node = newNode(ctx, max(ports, 1), p.process)

	return p
}

// NewSinkProcessor returns a processor that is rendered every quantum even
// when nothing consumes its output.
func NewSinkProcessor(ctx *Context, ports int, fn ProcessFunc) *Processor {
	p := NewProcessor(ctx, ports, fn)
	ctx.addSink(p.node)

	return p
}

func (p *Processor) process(n *node) {
	if p.fn == nil {
		n.passThrough()
		return
	}

	p.fn(n.in, n.out, n.ctx.sampleTime(0))
}
