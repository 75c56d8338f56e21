package graph

import (
	"fmt"

	"github.com/cwbudde/algo-daw/dsp/delay"
)

// maxDelayFeedback keeps the recirculation loop stable.
const maxDelayFeedback = 0.99

// Delay delays its input by an automatable time, up to a fixed maximum.
// The feedback param recirculates the delayed signal inside the line, so
// repeats stay sample-accurate. A graph cycle through a Delay instead adds
// one render quantum per pass.
type Delay struct {
	*node
	delayTime *Param
	feedback  *Param
	lines     [Channels]*delay.Line
	maxDelay  float64
}

// NewDelay returns a delay with the given maximum delay in seconds.
func NewDelay(ctx *Context, maxDelay float64) (*Delay, error) {
	if maxDelay <= 0 {
		return nil, fmt.Errorf("graph: delay: max delay must be > 0: %v", maxDelay)
	}

	d := &Delay{maxDelay: maxDelay}
	for ch := range d.lines {
		line, err := delay.ForDuration(maxDelay, ctx.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("graph: delay: %w", err)
		}

		d.lines[ch] = line
	}

	d.node = newNode(ctx, 1, d.process)
	d.delayTime = d.addParam("delayTime", 0, 0, maxDelay)
	d.feedback = d.addParam("feedback", 0, -maxDelayFeedback, maxDelayFeedback)

	return d, nil
}

// DelayTime returns the delay time param in seconds.
func (d *Delay) DelayTime() *Param { return d.delayTime }

// Feedback returns the gain applied to the delayed signal fed back into
// the line.
func (d *Delay) Feedback() *Param { return d.feedback }

// MaxDelay returns the maximum delay in seconds.
func (d *Delay) MaxDelay() float64 { return d.maxDelay }

// Reset clears the buffered history.
func (d *Delay) Reset() {
	for _, l := range d.lines {
		l.Reset()
	}
}

func (d *Delay) process(n *node) {
	sr := n.ctx.sampleRate
	for ch, line := range d.lines {
		in, out := n.in[0][ch], n.out[ch]
		for i, x := range in {
			samples := d.delayTime.at(i) * sr
			if samples < 1 {
				// Sub-sample delays read the current input and skip feedback.
				line.Write(x)
				out[i] = line.Tap(samples + 1)
				continue
			}

			y := line.Tap(samples)
			line.Write(x + d.feedback.at(i)*y)
			out[i] = y
		}
	}
}
