package graph

import (
	"errors"
	"math"
	"slices"

	"github.com/cwbudde/algo-daw/dsp/core"
)

// Channels is the fixed channel count of every node output.
const Channels = 2

var (
	// ErrNodeClosed is returned when connecting to or from a closed node.
	ErrNodeClosed = errors.New("graph: node is closed")
	// ErrForeignNode is returned when connecting nodes of different contexts.
	ErrForeignNode = errors.New("graph: node belongs to another context")
	// ErrInvalidPort is returned for an input port the destination lacks.
	ErrInvalidPort = errors.New("graph: invalid input port")
)

// Context owns a node graph, its audio clock and the scheduled sources
// rendering into it. Nodes are pulled one render quantum at a time from the
// destination and from every registered sink.
//
// A Context is not safe for concurrent use; its owner serializes access.
type Context struct {
	sampleRate float64
	blockSize  int

	frame   int64
	quantum uint64

	dest    *Destination
	sinks   []*node
	sources []scheduled
	ended   []func()

	carry    []float32
	carryPos int
}

type scheduled interface {
	base() *node
	endTime() float64
	finish()
}

// NewContext returns a context rendering at the configured sample rate and
// block size.
func NewContext(opts ...core.RenderOption) *Context {
	cfg := core.ApplyRenderOptions(opts...)
	c := &Context{
		sampleRate: cfg.SampleRate,
		blockSize:  cfg.BlockSize,
	}

	c.dest = newDestination(c)

	return c
}

// SampleRate returns the render sample rate in Hz.
func (c *Context) SampleRate() float64 { return c.sampleRate }

// BlockSize returns the render quantum in frames.
func (c *Context) BlockSize() int { return c.blockSize }

// CurrentTime returns the audio clock in seconds: the start time of the next
// quantum to be rendered.
func (c *Context) CurrentTime() float64 {
	return float64(c.frame) / c.sampleRate
}

// Frame returns the number of frames rendered so far.
func (c *Context) Frame() int64 { return c.frame }

// Destination returns the node whose input is the context output.
func (c *Context) Destination() *Destination { return c.dest }

// Render fills dst with interleaved stereo float32 frames.
func (c *Context) Render(dst []float32) {
	for len(dst) > 0 {
		if c.carryPos >= len(c.carry) {
			c.renderQuantum()
			c.carry = c.carry[:0]
			out := c.dest.out
			for i := range c.blockSize {
				c.carry = append(c.carry, float32(out[0][i]), float32(out[1][i]))
			}

			c.carryPos = 0
		}

		n := copy(dst, c.carry[c.carryPos:])
		c.carryPos += n
		dst = dst[n:]
	}
}

// Advance renders and discards at least seconds of audio, rounded up to
// whole quanta.
func (c *Context) Advance(seconds float64) {
	frames := int64(math.Ceil(seconds * c.sampleRate))
	target := c.frame + frames
	for c.frame < target {
		c.renderQuantum()
	}
}

func (c *Context) renderQuantum() {
	c.quantum++
	c.dest.pull()
	for _, s := range c.sinks {
		s.pull()
	}

	c.frame += int64(c.blockSize)
	c.reapSources()

	callbacks := c.ended
	c.ended = nil
	for _, fn := range callbacks {
		fn()
	}
}

// reapSources finishes every scheduled source whose stop time has passed,
// whether or not it was pulled this quantum.
func (c *Context) reapSources() {
	now := c.CurrentTime()
	kept := c.sources[:0]
	var done []scheduled
	for _, s := range c.sources {
		if s.endTime() <= now {
			done = append(done, s)
			continue
		}

		kept = append(kept, s)
	}

	clear(c.sources[len(kept):])
	c.sources = kept
	for _, s := range done {
		s.finish()
	}
}

func (c *Context) addSource(s scheduled) {
	if !slices.Contains(c.sources, s) {
		c.sources = append(c.sources, s)
	}
}

func (c *Context) removeSource(n *node) {
	c.sources = slices.DeleteFunc(c.sources, func(s scheduled) bool { return s.base() == n })
}

func (c *Context) addSink(n *node) {
	c.sinks = append(c.sinks, n)
}

func (c *Context) removeSink(n *node) {
	c.sinks = slices.DeleteFunc(c.sinks, func(s *node) bool { return s == n })
}

func (c *Context) queueEnded(fn func()) {
	if fn != nil {
		c.ended = append(c.ended, fn)
	}
}

// sampleTime returns the clock time of frame i of the quantum being rendered.
func (c *Context) sampleTime(i int) float64 {
	return float64(c.frame+int64(i)) / c.sampleRate
}

// Destination is the context output.
type Destination struct {
	*node
}

func newDestination(c *Context) *Destination {
	d := &Destination{}
	d.node = newNode(c, 1, func(n *node) {
		copy(n.out[0], n.in[0][0])
		copy(n.out[1], n.in[0][1])
	})

	return d
}

// Peak returns the absolute peak of the last rendered quantum.
func (d *Destination) Peak() float64 {
	return math.Max(peakAbs(d.out[0]), peakAbs(d.out[1]))
}
