package graph

import (
	"fmt"
	"slices"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-daw/dsp/core"
)

// Node is a processing stage with numbered input ports and one stereo
// output.
type Node interface {
	// Connect routes this node's output into input port 0 of dst.
	Connect(dst Node) error
	// ConnectInput routes this node's output into the given input port of dst.
	ConnectInput(dst Node, port int) error
	// ConnectParam adds this node's output (left channel) to the param's
	// intrinsic value.
	ConnectParam(dst *Param) error
	// Disconnect removes every outgoing connection.
	Disconnect()
	// DisconnectFrom removes the outgoing connections to dst.
	DisconnectFrom(dst Node)
	// Close disconnects the node in both directions and releases it.
	Close()
	// Closed reports whether Close was called.
	Closed() bool

	base() *node
}

type edge struct {
	dst   *node
	port  int
	param *Param
}

type processFunc func(n *node)

// node is the shared state of every graph stage. Concrete nodes embed it and
// install a process function writing n.out from n.in and param values.
type node struct {
	ctx     *Context
	process processFunc

	inputs  [][]*node
	outputs []edge
	params  []*Param

	in  [][Channels][]float64
	out [Channels][]float64

	rendered   uint64
	processing bool
	closed     bool
	onClose    func()
}

func newNode(ctx *Context, ports int, process processFunc) *node {
	n := &node{
		ctx:     ctx,
		process: process,
		inputs:  make([][]*node, ports),
		in:      make([][Channels][]float64, ports),
	}

	for p := range n.in {
		for ch := range Channels {
			n.in[p][ch] = make([]float64, ctx.blockSize)
		}
	}

	for ch := range Channels {
		n.out[ch] = make([]float64, ctx.blockSize)
	}

	return n
}

func (n *node) base() *node { return n }

// Context returns the owning context.
func (n *node) Context() *Context { return n.ctx }

// Closed reports whether Close was called.
func (n *node) Closed() bool { return n.closed }

// NumInputs returns the number of input ports.
func (n *node) NumInputs() int { return len(n.inputs) }

// Connect routes the output into input port 0 of dst.
func (n *node) Connect(dst Node) error {
	return n.ConnectInput(dst, 0)
}

// ConnectInput routes the output into the given input port of dst.
// Connecting the same pair twice is a no-op.
func (n *node) ConnectInput(dst Node, port int) error {
	if dst == nil {
		return fmt.Errorf("graph: connect: nil destination")
	}

	d := dst.base()
	if err := n.checkPeer(d); err != nil {
		return err
	}

	if port < 0 || port >= len(d.inputs) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidPort, port, len(d.inputs))
	}

	if slices.Contains(d.inputs[port], n) {
		return nil
	}

	d.inputs[port] = append(d.inputs[port], n)
	n.outputs = append(n.outputs, edge{dst: d, port: port})

	return nil
}

// ConnectParam adds the output to the param's intrinsic value.
func (n *node) ConnectParam(dst *Param) error {
	if dst == nil {
		return fmt.Errorf("graph: connect: nil param")
	}

	if err := n.checkPeer(dst.owner); err != nil {
		return err
	}

	if slices.Contains(dst.inputs, n) {
		return nil
	}

	dst.inputs = append(dst.inputs, n)
	n.outputs = append(n.outputs, edge{dst: dst.owner, param: dst})

	return nil
}

func (n *node) checkPeer(d *node) error {
	if n.closed || d.closed {
		return ErrNodeClosed
	}

	if n.ctx != d.ctx {
		return ErrForeignNode
	}

	return nil
}

// Disconnect removes every outgoing connection.
func (n *node) Disconnect() {
	for _, e := range n.outputs {
		e.detach(n)
	}

	n.outputs = nil
}

// DisconnectFrom removes the outgoing connections to dst.
func (n *node) DisconnectFrom(dst Node) {
	if dst == nil {
		return
	}

	d := dst.base()
	n.outputs = slices.DeleteFunc(n.outputs, func(e edge) bool {
		if e.dst != d {
			return false
		}

		e.detach(n)

		return true
	})
}

func (e edge) detach(src *node) {
	if e.param != nil {
		e.param.inputs = slices.DeleteFunc(e.param.inputs, func(s *node) bool { return s == src })
		return
	}

	e.dst.inputs[e.port] = slices.DeleteFunc(e.dst.inputs[e.port], func(s *node) bool { return s == src })
}

// Close disconnects the node in both directions and releases it.
func (n *node) Close() {
	if n.closed {
		return
	}

	n.Disconnect()
	for port, srcs := range n.inputs {
		for _, s := range srcs {
			s.outputs = slices.DeleteFunc(s.outputs, func(e edge) bool { return e.dst == n && e.param == nil && e.port == port })
		}

		n.inputs[port] = nil
	}

	for _, p := range n.params {
		for _, s := range p.inputs {
			s.outputs = slices.DeleteFunc(s.outputs, func(e edge) bool { return e.param == p })
		}

		p.inputs = nil
	}

	n.closed = true
	n.ctx.removeSink(n)
	n.ctx.removeSource(n)
	if n.onClose != nil {
		n.onClose()
	}
}

func (n *node) addParam(name string, value, minValue, maxValue float64) *Param {
	p := newParam(n, name, value, minValue, maxValue)
	n.params = append(n.params, p)

	return p
}

// pull renders the node for the current quantum and returns its output.
// A node re-entered while processing (a feedback cycle) yields the block it
// produced in the previous quantum.
func (n *node) pull() [Channels][]float64 {
	if n.rendered == n.ctx.quantum || n.processing {
		return n.out
	}

	n.processing = true

	for port, srcs := range n.inputs {
		dst := n.in[port]
		clear(dst[0])
		clear(dst[1])
		for _, s := range srcs {
			src := s.pull()
			vecmath.AddBlockInPlace(dst[0], src[0])
			vecmath.AddBlockInPlace(dst[1], src[1])
		}
	}

	for _, p := range n.params {
		p.compute()
	}

	n.process(n)

	n.processing = false
	n.rendered = n.ctx.quantum

	return n.out
}

func (n *node) silence() {
	core.Zero(n.out[0])
	core.Zero(n.out[1])
}

func (n *node) passThrough() {
	copy(n.out[0], n.in[0][0])
	copy(n.out[1], n.in[0][1])
}

func peakAbs(buf []float64) float64 {
	return vecmath.MaxAbs(buf)
}

func finiteOr(x, def float64) float64 {
	if !core.IsFinite(x) {
		return def
	}

	return x
}
