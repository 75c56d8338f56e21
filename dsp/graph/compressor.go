package graph

import (
	"math"

	"github.com/cwbudde/algo-daw/dsp/core"
)

const log2Of10Div20 = 0.166096404744368117393515971474469508

// DynamicsCompressor is a stereo-linked soft-knee compressor. Input port 1
// is an optional detector (sidechain) input; when connected, the envelope
// follows it instead of the signal on port 0. No automatic makeup gain is
// applied. Params are evaluated once per quantum.
type DynamicsCompressor struct {
	*node
	threshold *Param
	knee      *Param
	ratio     *Param
	attack    *Param
	release   *Param

	peak      float64
	reduction float64
}

// NewDynamicsCompressor returns a compressor at -24 dB threshold, 30 dB
// knee, 12:1 ratio, 3 ms attack and 250 ms release.
func NewDynamicsCompressor(ctx *Context) *DynamicsCompressor {
	c := &DynamicsCompressor{}
	c.node = newNode(ctx, 2, c.process)
	c.threshold = c.addParam("threshold", -24, -100, 0)
	c.knee = c.addParam("knee", 30, 0, 40)
	c.ratio = c.addParam("ratio", 12, 1, 20)
	c.attack = c.addParam("attack", 0.003, 0, 1)
	c.release = c.addParam("release", 0.25, 0, 1)

	return c
}

// Threshold returns the threshold param in dB.
func (c *DynamicsCompressor) Threshold() *Param { return c.threshold }

// Knee returns the soft-knee width param in dB.
func (c *DynamicsCompressor) Knee() *Param { return c.knee }

// Ratio returns the compression ratio param.
func (c *DynamicsCompressor) Ratio() *Param { return c.ratio }

// Attack returns the attack time param in seconds.
func (c *DynamicsCompressor) Attack() *Param { return c.attack }

// Release returns the release time param in seconds.
func (c *DynamicsCompressor) Release() *Param { return c.release }

// Reduction returns the gain reduction applied to the last sample in dB
// (zero or negative).
func (c *DynamicsCompressor) Reduction() float64 { return c.reduction }

func (c *DynamicsCompressor) process(n *node) {
	sr := n.ctx.sampleRate
	thresholdLog2 := c.threshold.first() * log2Of10Div20
	kneeLog2 := c.knee.first() * log2Of10Div20
	ratio := math.Max(1, c.ratio.first())
	attackCoeff := followerCoeff(c.attack.first(), sr, true)
	releaseCoeff := followerCoeff(c.release.first(), sr, false)

	detector := n.in[0]
	if len(n.inputs[1]) > 0 {
		detector = n.in[1]
	}

	gain := 1.0
	for i := range n.out[0] {
		level := math.Max(math.Abs(detector[0][i]), math.Abs(detector[1][i]))
		if level > c.peak {
			c.peak += (level - c.peak) * attackCoeff
		} else {
			c.peak = level + (c.peak-level)*releaseCoeff
		}

		c.peak = core.FlushDenormals(c.peak)

		gain = gainFor(c.peak, thresholdLog2, kneeLog2, ratio)
		n.out[0][i] = n.in[0][0][i] * gain
		n.out[1][i] = n.in[0][1][i] * gain
	}

	c.reduction = core.LinearToDB(gain)
}

// followerCoeff converts a time in seconds to a peak-follower coefficient.
func followerCoeff(seconds, sampleRate float64, attack bool) float64 {
	if seconds <= 0 {
		if attack {
			return 1
		}

		return 0
	}

	if attack {
		return 1 - math.Exp(-math.Ln2/(seconds*sampleRate))
	}

	return math.Exp(-math.Ln2 / (seconds * sampleRate))
}

// gainFor computes the gain multiplier with a log2-domain quadratic soft
// knee centered on the threshold.
func gainFor(peak, thresholdLog2, kneeLog2, ratio float64) float64 {
	if peak <= 0 {
		return 1
	}

	overshoot := math.Log2(peak) - thresholdLog2

	if kneeLog2 <= 0 {
		if overshoot <= 0 {
			return 1
		}

		return math.Exp2(-overshoot * (1 - 1/ratio))
	}

	half := kneeLog2 * 0.5
	var effective float64
	switch {
	case overshoot < -half:
		return 1
	case overshoot > half:
		effective = overshoot
	default:
		s := overshoot + half
		effective = s * s * 0.5 / kneeLog2
	}

	return math.Exp2(-effective * (1 - 1/ratio))
}
