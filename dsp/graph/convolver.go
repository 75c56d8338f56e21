package graph

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// gainCalibration matches the loudness of normalized impulse responses to
// the usual browser convolver level.
const gainCalibration = 0.00125

// Convolver convolves its input with an impulse response using uniformly
// partitioned FFT convolution (partition = render quantum), so latency is
// zero and cost grows linearly with the response length. A mono response is
// applied to both channels. Without a response the output is silent.
type Convolver struct {
	*node
	normalize bool

	buffer  *Buffer
	parts   int
	fftSize int
	plan    *algofft.Plan[complex128]

	spectra [Channels][][]complex128
	fdl     [Channels][][]complex128
	fdlPos  int
	history [Channels][]float64
	scratch []complex128
	acc     []complex128
}

// NewConvolver returns a convolver with response normalization enabled.
func NewConvolver(ctx *Context) (*Convolver, error) {
	c := &Convolver{normalize: true, fftSize: 2 * ctx.blockSize}
	plan, err := algofft.NewPlan64(c.fftSize)
	if err != nil {
		return nil, fmt.Errorf("graph: convolver: fft plan: %w", err)
	}

	c.plan = plan
	c.scratch = make([]complex128, c.fftSize)
	c.acc = make([]complex128, c.fftSize)
	for ch := range Channels {
		c.history[ch] = make([]float64, c.fftSize)
	}

	c.node = newNode(ctx, 1, c.process)

	return c, nil
}

// SetNormalize toggles response normalization for subsequent SetBuffer calls.
func (c *Convolver) SetNormalize(on bool) { c.normalize = on }

// Buffer returns the installed impulse response.
func (c *Convolver) Buffer() *Buffer { return c.buffer }

// SetBuffer installs an impulse response. Nil removes it.
func (c *Convolver) SetBuffer(ir *Buffer) error {
	if ir == nil || ir.Frames() == 0 {
		c.buffer = nil
		c.parts = 0

		return nil
	}

	if ir.SampleRate != c.ctx.sampleRate {
		return fmt.Errorf("graph: convolver: response rate %v does not match context rate %v", ir.SampleRate, c.ctx.sampleRate)
	}

	scale := 1.0
	if c.normalize {
		scale = normalizationScale(ir)
	}

	b := c.ctx.blockSize
	parts := (ir.Frames() + b - 1) / b
	for ch := range Channels {
		src := ir.Channel(ch)
		c.spectra[ch] = make([][]complex128, parts)
		c.fdl[ch] = make([][]complex128, parts)
		for p := range parts {
			padded := make([]complex128, c.fftSize)
			for i := 0; i < b && p*b+i < len(src); i++ {
				padded[i] = complex(src[p*b+i]*scale, 0)
			}

			spec := make([]complex128, c.fftSize)
			if err := c.plan.Forward(spec, padded); err != nil {
				return fmt.Errorf("graph: convolver: response fft: %w", err)
			}

			c.spectra[ch][p] = spec
			c.fdl[ch][p] = make([]complex128, c.fftSize)
		}

		clear(c.history[ch])
	}

	c.parts = parts
	c.fdlPos = 0
	c.buffer = ir

	return nil
}

func normalizationScale(ir *Buffer) float64 {
	power := 0.0
	for _, ch := range ir.Channels {
		for _, v := range ch {
			power += v * v
		}
	}

	power = math.Sqrt(power / float64(len(ir.Channels)*ir.Frames()))
	if power < 1e-12 || math.IsNaN(power) {
		power = 1e-12
	}

	return gainCalibration / power
}

func (c *Convolver) process(n *node) {
	if c.parts == 0 {
		n.silence()
		return
	}

	b := n.ctx.blockSize
	for ch := range Channels {
		hist := c.history[ch]
		copy(hist, hist[b:])
		copy(hist[b:], n.in[0][ch])
		for i, v := range hist {
			c.scratch[i] = complex(v, 0)
		}

		if err := c.plan.Forward(c.fdl[ch][c.fdlPos], c.scratch); err != nil {
			clear(n.out[ch])
			continue
		}

		clear(c.acc)
		for k := range c.parts {
			x := c.fdl[ch][(c.fdlPos-k+c.parts)%c.parts]
			h := c.spectra[ch][k]
			for i := range c.acc {
				c.acc[i] += x[i] * h[i]
			}
		}

		if err := c.plan.Inverse(c.acc, c.acc); err != nil {
			clear(n.out[ch])
			continue
		}

		out := n.out[ch]
		for i := range out {
			out[i] = real(c.acc[b+i])
		}
	}

	c.fdlPos = (c.fdlPos + 1) % c.parts
}
