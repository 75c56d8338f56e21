package graph

// Capture is a stream destination: every rendered quantum of its input is
// handed to a callback as interleaved stereo float32 frames. Captures are
// always rendered.
type Capture struct {
	*node
	onBlock func(frames []float32)
	buf     []float32
}

// NewCapture returns a capture delivering blocks to onBlock. The slice is
// reused between calls.
func NewCapture(ctx *Context, onBlock func(frames []float32)) *Capture {
	c := &Capture{onBlock: onBlock, buf: make([]float32, Channels*ctx.blockSize)}
	c.node = newNode(ctx, 1, c.process)
	ctx.addSink(c.node)

	return c
}

func (c *Capture) process(n *node) {
	n.passThrough()
	if c.onBlock == nil {
		return
	}

	for i := range n.out[0] {
		c.buf[2*i] = float32(n.out[0][i])
		c.buf[2*i+1] = float32(n.out[1][i])
	}

	c.onBlock(c.buf)
}
