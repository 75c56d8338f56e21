package graph

// FrameReader supplies live interleaved stereo frames, for example from a
// capture device. ReadFrames fills dst as far as data is available and
// returns the number of frames written; missing frames render as silence.
type FrameReader interface {
	ReadFrames(dst []float32) int
}

// StreamSource feeds live input into the graph.
type StreamSource struct {
	*node
	reader  FrameReader
	scratch []float32
}

// NewStreamSource returns a source reading from r.
func NewStreamSource(ctx *Context, r FrameReader) *StreamSource {
	s := &StreamSource{reader: r, scratch: make([]float32, Channels*ctx.blockSize)}
	s.node = newNode(ctx, 0, s.process)

	return s
}

// Reader returns the underlying frame reader.
func (s *StreamSource) Reader() FrameReader { return s.reader }

func (s *StreamSource) process(n *node) {
	clear(s.scratch)
	got := 0
	if s.reader != nil {
		got = s.reader.ReadFrames(s.scratch)
	}

	for i := range n.out[0] {
		if i >= got {
			n.out[0][i], n.out[1][i] = 0, 0
			continue
		}

		n.out[0][i] = float64(s.scratch[2*i])
		n.out[1][i] = float64(s.scratch[2*i+1])
	}
}
