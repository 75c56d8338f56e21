package effects

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

const reverbMixTC = 0.02

// Reverb is a convolution reverb over a synthetic impulse response: stereo
// noise under a (1-t)^4 envelope, decay seconds long, regenerated whenever
// decay changes.
type Reverb struct {
	plugin.Base
	mix      *plugin.DryWet
	preDelay *graph.Delay
	conv     *graph.Convolver

	decay    float64
	rng      *rand.Rand
	generate func(decay float64) (*graph.Buffer, error)
}

// NewReverb returns a reverb with 2 s decay, 30% mix and 10 ms pre-delay.
func NewReverb(ctx *graph.Context) (*Reverb, error) {
	mix, err := plugin.NewDryWet(ctx)
	if err != nil {
		return nil, err
	}

	r := &Reverb{
		Base: plugin.NewBase(ctx, plugin.KindReverb, plugin.Params{"decay": 2.0, "mix": 0.3, "preDelay": 0.01}),
		mix:  mix,
		rng:  rand.New(rand.NewPCG(1, 2)),
	}

	r.generate = r.impulse
	if r.preDelay, err = graph.NewDelay(ctx, 1); err != nil {
		mix.Close()
		return nil, err
	}

	if r.conv, err = graph.NewConvolver(ctx); err != nil {
		r.Close()
		return nil, err
	}

	if err := plugin.Chain(mix.In, r.preDelay, r.conv, mix.Wet); err != nil {
		r.Close()
		return nil, fmt.Errorf("effects: reverb: %w", err)
	}

	r.apply()

	return r, nil
}

func (r *Reverb) Input() graph.Node  { return r.mix.In }
func (r *Reverb) Output() graph.Node { return r.mix.Out }

// Decay returns the length of the current impulse response in seconds.
func (r *Reverb) Decay() float64 { return r.decay }

// Impulse returns the current impulse response.
func (r *Reverb) Impulse() *graph.Buffer { return r.conv.Buffer() }

func (r *Reverb) UpdateParams(update plugin.Params) {
	r.Merge(update)
	r.apply()
}

func (r *Reverb) apply() {
	if decay := r.NumIn("decay", 2, 0.1, 10); decay != r.decay {
		// A rejected response leaves the previous one and its decay in place.
		ir, err := r.generate(decay)
		if err == nil {
			err = r.conv.SetBuffer(ir)
		}

		if err == nil {
			r.decay = decay
		}
	}

	r.Ramp(r.preDelay.DelayTime(), r.NumIn("preDelay", 0.01, 0, 1))
	if !r.Enabled() {
		r.ApplyBypassState()
		return
	}

	r.mix.Mix(&r.Base, r.NumIn("mix", 0.3, 0, 1), reverbMixTC)
}

func (r *Reverb) ApplyBypassState() {
	r.mix.Bypass(&r.Base, reverbMixTC)
}

func (r *Reverb) impulse(decay float64) (*graph.Buffer, error) {
	sr := r.Ctx.SampleRate()
	n := int(sr * decay)
	buf, err := graph.NewBuffer(2, n, sr)
	if err != nil {
		return nil, err
	}

	for i := range n {
		env := math.Pow(1-float64(i)/float64(n), 4)
		buf.Channels[0][i] = (r.rng.Float64()*2 - 1) * env
		buf.Channels[1][i] = (r.rng.Float64()*2 - 1) * env
	}

	return buf, nil
}

func (r *Reverb) Close() {
	r.mix.Close()
	if r.preDelay != nil {
		r.preDelay.Close()
	}

	if r.conv != nil {
		r.conv.Close()
	}
}
