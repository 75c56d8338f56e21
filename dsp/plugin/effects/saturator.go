package effects

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

const saturatorCurveSize = 4096

// SaturationCurve returns a transfer curve for mode at drive in [0, 1].
// "tape" is a normalized tanh, "tube" adds an even-order term and
// anything else is a cubic soft clip.
func SaturationCurve(mode string, drive float64, samples int) []float64 {
	k := 1 + drive*20
	norm := math.Tanh(k)
	curve := make([]float64, samples)
	for i := range curve {
		x := float64(i)*2/float64(samples-1) - 1
		switch mode {
		case "tape":
			curve[i] = math.Tanh(k*x) / norm
		case "tube":
			y := math.Tanh(k*x) / norm
			curve[i] = core.Clamp(y+0.1*drive*y*y, -1, 1)
		default:
			y := core.Clamp(x*(1+drive*4), -1, 1)
			curve[i] = 1.5*y - 0.5*y*y*y
		}
	}

	return curve
}

// VocalSaturator drives the signal into a waveshaper, tames the added top
// end with a low-pass tone control and blends the result with the dry path.
type VocalSaturator struct {
	plugin.Base
	mix    *plugin.DryWet
	drive  *graph.Gain
	shaper *graph.WaveShaper
	tone   *graph.BiquadFilter
	output *graph.Gain

	curveKey string
}

// NewVocalSaturator returns a tube saturator at 30% drive and 50% mix.
func NewVocalSaturator(ctx *graph.Context) (*VocalSaturator, error) {
	mix, err := plugin.NewDryWet(ctx)
	if err != nil {
		return nil, err
	}

	v := &VocalSaturator{
		Base: plugin.NewBase(ctx, plugin.KindVocalSaturator, plugin.Params{
			"drive": 0.3, "tone": 8000.0, "mix": 0.5, "mode": "tube", "outputGain": 0.0,
		}),
		mix:    mix,
		drive:  graph.NewGain(ctx),
		shaper: graph.NewWaveShaper(ctx),
		tone:   graph.NewBiquadFilter(ctx, graph.Lowpass),
		output: graph.NewGain(ctx),
	}

	v.tone.Q().SetValue(0.707)
	if err := plugin.Chain(mix.In, v.drive, v.shaper, v.tone, v.output, mix.Wet); err != nil {
		v.Close()
		return nil, fmt.Errorf("effects: saturator: %w", err)
	}

	v.apply()

	return v, nil
}

func (v *VocalSaturator) Input() graph.Node  { return v.mix.In }
func (v *VocalSaturator) Output() graph.Node { return v.mix.Out }

// Shaper exposes the waveshaper stage.
func (v *VocalSaturator) Shaper() *graph.WaveShaper { return v.shaper }

func (v *VocalSaturator) UpdateParams(update plugin.Params) {
	v.Merge(update)
	v.apply()
}

func (v *VocalSaturator) apply() {
	drive := v.NumIn("drive", 0.3, 0, 1)
	mode := v.Str("mode", "tube")
	if key := fmt.Sprintf("%s/%.4f", mode, drive); key != v.curveKey {
		v.shaper.SetCurve(SaturationCurve(mode, drive, saturatorCurveSize))
		v.curveKey = key
	}

	v.Ramp(v.drive.Gain(), 1+drive*2)
	v.Ramp(v.tone.Frequency(), v.NumIn("tone", 8000, 500, 20000))
	v.Ramp(v.output.Gain(), core.DBToLinear(v.NumIn("outputGain", 0, -24, 24))/(1+drive))
	if !v.Enabled() {
		v.ApplyBypassState()
		return
	}

	v.mix.Mix(&v.Base, v.NumIn("mix", 0.5, 0, 1), v.TimeConstant)
}

func (v *VocalSaturator) ApplyBypassState() {
	v.mix.Bypass(&v.Base, v.TimeConstant)
}

func (v *VocalSaturator) Close() {
	v.mix.Close()
	plugin.CloseAll(v.drive, v.shaper, v.tone, v.output)
}
