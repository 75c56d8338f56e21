package graph

// ChannelSplitter exposes each input channel as its own node.
type ChannelSplitter struct {
	*node
	outputs [Channels]*splitOutput
}

type splitOutput struct {
	*node
}

// NewChannelSplitter returns a splitter with one output per channel.
func NewChannelSplitter(ctx *Context) *ChannelSplitter {
	s := &ChannelSplitter{}
	s.node = newNode(ctx, 1, func(n *node) { n.passThrough() })
	for ch := range Channels {
		out := &splitOutput{}
		out.node = newNode(ctx, 1, func(n *node) {
			copy(n.out[0], n.in[0][ch])
			copy(n.out[1], n.in[0][ch])
		})
		// Internal edge: the splitter feeds each output.
		_ = s.node.Connect(out)
		s.outputs[ch] = out
	}

	return s
}

// Output returns the node carrying channel ch on both of its channels.
func (s *ChannelSplitter) Output(ch int) Node {
	return s.outputs[ch]
}

// Close releases the splitter and its outputs.
func (s *ChannelSplitter) Close() {
	for _, o := range s.outputs {
		o.Close()
	}

	s.node.Close()
}

// ChannelMerger combines two inputs into one stereo signal: the mono sum of
// port 0 becomes the left channel and the mono sum of port 1 the right.
type ChannelMerger struct {
	*node
}

// NewChannelMerger returns a two-port merger.
func NewChannelMerger(ctx *Context) *ChannelMerger {
	m := &ChannelMerger{}
	m.node = newNode(ctx, Channels, func(n *node) {
		for ch := range Channels {
			in := n.in[ch]
			for i := range n.out[ch] {
				n.out[ch][i] = 0.5 * (in[0][i] + in[1][i])
			}
		}
	})

	return m
}
