package effects

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

const bypassTC = 0.01

// neutralize ramps a compressor to 1:1 at 0 dB threshold.
func neutralize(b *plugin.Base, c *graph.DynamicsCompressor) {
	b.RampWith(c.Threshold(), 0, bypassTC)
	b.RampWith(c.Ratio(), 1, bypassTC)
}

// Compressor is a single compression stage followed by linear makeup gain.
type Compressor struct {
	plugin.Base
	comp   *graph.DynamicsCompressor
	makeup *graph.Gain
}

// NewCompressor returns a 4:1 compressor at -24 dB.
func NewCompressor(ctx *graph.Context) (*Compressor, error) {
	c := &Compressor{
		Base: plugin.NewBase(ctx, plugin.KindCompressor, plugin.Params{
			"threshold": -24.0, "ratio": 4.0, "knee": 12.0,
			"attack": 0.003, "release": 0.25, "makeupGain": 1.0,
		}),
		comp:   graph.NewDynamicsCompressor(ctx),
		makeup: graph.NewGain(ctx),
	}

	if err := c.comp.Connect(c.makeup); err != nil {
		c.Close()
		return nil, fmt.Errorf("effects: compressor: %w", err)
	}

	c.apply()

	return c, nil
}

func (c *Compressor) Input() graph.Node  { return c.comp }
func (c *Compressor) Output() graph.Node { return c.makeup }

// Reduction returns the current gain reduction in dB.
func (c *Compressor) Reduction() float64 { return c.comp.Reduction() }

// Stage exposes the dynamics stage for metering and inspection.
func (c *Compressor) Stage() *graph.DynamicsCompressor { return c.comp }

// MakeupGain exposes the makeup gain param.
func (c *Compressor) MakeupGain() *graph.Param { return c.makeup.Gain() }

func (c *Compressor) UpdateParams(update plugin.Params) {
	c.Merge(update)
	c.apply()
}

func (c *Compressor) apply() {
	if !c.Enabled() {
		c.ApplyBypassState()
		return
	}

	c.Ramp(c.comp.Threshold(), c.NumIn("threshold", -24, -100, 0))
	c.Ramp(c.comp.Ratio(), c.NumIn("ratio", 4, 1, 20))
	c.Ramp(c.comp.Knee(), c.NumIn("knee", 12, 0, 40))
	c.Ramp(c.comp.Attack(), c.NumIn("attack", 0.003, 0, 1))
	c.Ramp(c.comp.Release(), c.NumIn("release", 0.25, 0, 1))
	c.Ramp(c.makeup.Gain(), c.NumIn("makeupGain", 1, 0, 16))
}

func (c *Compressor) ApplyBypassState() {
	neutralize(&c.Base, c.comp)
	c.RampWith(c.makeup.Gain(), 1, bypassTC)
}

func (c *Compressor) Close() {
	plugin.CloseAll(c.comp, c.makeup)
}

// CompressorPro is a parallel compressor with a high-passed detector,
// analog-style saturation after the makeup stage and a fixed compensation
// delay on the wet path.
type CompressorPro struct {
	plugin.Base
	mix       *plugin.DryWet
	sidechain *graph.BiquadFilter
	comp      *graph.DynamicsCompressor
	makeup    *graph.Gain
	shaper    *graph.WaveShaper
	align     *graph.Delay

	analog *bool
}

// compProLatency is the wet-path alignment delay.
const compProLatency = 0.003

// NewCompressorPro returns the compressor with default settings.
func NewCompressorPro(ctx *graph.Context) (*CompressorPro, error) {
	mix, err := plugin.NewDryWet(ctx)
	if err != nil {
		return nil, err
	}

	c := &CompressorPro{
		Base: plugin.NewBase(ctx, plugin.KindCompressorPro, plugin.Params{
			"threshold": -24.0, "ratio": 4.0, "knee": 12.0, "attack": 3.0, "release": 100.0,
			"makeupGain": 0.0, "mix": 100.0, "detectionMode": "RMS", "analogMode": true,
			"autoMakeup": true, "sidechainHPF": 150.0,
		}),
		mix:       mix,
		sidechain: graph.NewBiquadFilter(ctx, graph.Highpass),
		comp:      graph.NewDynamicsCompressor(ctx),
		makeup:    graph.NewGain(ctx),
		shaper:    graph.NewWaveShaper(ctx),
	}

	if c.align, err = graph.NewDelay(ctx, 0.1); err != nil {
		c.Close()
		return nil, err
	}

	c.align.DelayTime().SetValue(compProLatency)
	c.sidechain.Q().SetValue(0.707)

	err = errors.Join(
		plugin.Chain(mix.In, c.comp, c.makeup, c.shaper, c.align, mix.Wet),
		mix.In.Connect(c.sidechain),
		c.sidechain.ConnectInput(c.comp, 1),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("effects: compressor pro: %w", err)
	}

	c.apply()

	return c, nil
}

func (c *CompressorPro) Input() graph.Node  { return c.mix.In }
func (c *CompressorPro) Output() graph.Node { return c.mix.Out }

// Latency reports the wet-path compensation delay.
func (c *CompressorPro) Latency() float64 { return compProLatency }

// Reduction returns the current gain reduction in dB.
func (c *CompressorPro) Reduction() float64 { return c.comp.Reduction() }

// Stage exposes the dynamics stage.
func (c *CompressorPro) Stage() *graph.DynamicsCompressor { return c.comp }

// MakeupDB returns the makeup gain in dB the current params resolve to.
func (c *CompressorPro) MakeupDB() float64 {
	if c.Flag("autoMakeup", true) {
		return AutoMakeupDB(c.Num("threshold", -24), c.NumIn("ratio", 4, 1, 20))
	}

	return c.NumIn("makeupGain", 0, 0, 24)
}

// AutoMakeupDB estimates the makeup needed for a threshold and ratio.
func AutoMakeupDB(thresholdDB, ratio float64) float64 {
	if ratio <= 0 {
		ratio = 1
	}

	return math.Min(math.Abs(thresholdDB)/ratio*0.8, 24)
}

// AnalogCurve returns the saturation transfer curve: a tanh soft clip with
// small odd and even harmonic terms.
func AnalogCurve(samples int) []float64 {
	curve := make([]float64, samples)
	deg := math.Pi / 180
	for i := range curve {
		x := float64(i)*2/float64(samples) - 1
		curve[i] = math.Tanh(x*1.5) + math.Sin(x*3*deg)*0.1 + math.Cos(x*2*deg)*0.05
	}

	return curve
}

func (c *CompressorPro) UpdateParams(update plugin.Params) {
	c.Merge(update)
	c.apply()
}

func (c *CompressorPro) apply() {
	c.Ramp(c.sidechain.Frequency(), c.NumIn("sidechainHPF", 150, 20, 2000))
	analog := c.Flag("analogMode", true)
	if c.analog == nil || *c.analog != analog {
		if analog {
			c.shaper.SetCurve(AnalogCurve(8192))
		} else {
			c.shaper.SetCurve([]float64{-1, 1})
		}

		c.analog = &analog
	}

	if !c.Enabled() {
		c.ApplyBypassState()
		return
	}

	c.Ramp(c.comp.Threshold(), c.NumIn("threshold", -24, -100, 0))
	c.Ramp(c.comp.Ratio(), c.NumIn("ratio", 4, 1, 20))
	c.Ramp(c.comp.Knee(), c.NumIn("knee", 12, 0, 40))
	c.Ramp(c.comp.Attack(), c.NumIn("attack", 3, 0, 1000)/1000)
	c.Ramp(c.comp.Release(), c.NumIn("release", 100, 0, 1000)/1000)
	c.Ramp(c.makeup.Gain(), core.DBToLinear(c.MakeupDB()))
	c.mix.Mix(&c.Base, c.NumIn("mix", 100, 0, 100)/100, c.TimeConstant)
}

func (c *CompressorPro) ApplyBypassState() {
	neutralize(&c.Base, c.comp)
	c.RampWith(c.makeup.Gain(), 1, bypassTC)
	c.mix.Bypass(&c.Base, bypassTC)
}

func (c *CompressorPro) Close() {
	c.mix.Close()
	plugin.CloseAll(c.sidechain, c.comp, c.makeup, c.shaper)
	if c.align != nil {
		c.align.Close()
	}
}

// DeEsser compresses the band above a crossover frequency, keyed by a
// band-pass around it. The high band is formed as input minus its low-pass,
// so the two bands sum back to the input whenever no reduction applies.
type DeEsser struct {
	plugin.Base
	in, out  *graph.Gain
	low      *graph.BiquadFilter
	invert   *graph.Gain
	high     *graph.Gain
	detector *graph.BiquadFilter
	comp     *graph.DynamicsCompressor
}

// NewDeEsser returns a de-esser keyed at 6 kHz.
func NewDeEsser(ctx *graph.Context) (*DeEsser, error) {
	d := &DeEsser{
		Base: plugin.NewBase(ctx, plugin.KindDeEsser, plugin.Params{
			"frequency": 6000.0, "threshold": -30.0, "ratio": 6.0,
		}),
		in:       graph.NewGain(ctx),
		out:      graph.NewGain(ctx),
		low:      graph.NewBiquadFilter(ctx, graph.Lowpass),
		invert:   graph.NewGain(ctx),
		high:     graph.NewGain(ctx),
		detector: graph.NewBiquadFilter(ctx, graph.Bandpass),
		comp:     graph.NewDynamicsCompressor(ctx),
	}

	d.invert.Gain().SetValue(-1)
	d.low.Q().SetValue(0.707)
	d.detector.Q().SetValue(1.5)
	d.comp.Knee().SetValue(6)
	d.comp.Attack().SetValue(0.001)
	d.comp.Release().SetValue(0.06)

	err := errors.Join(
		plugin.Chain(d.in, d.low, d.out),
		plugin.Chain(d.low, d.invert, d.high),
		plugin.Chain(d.in, d.high, d.comp, d.out),
		plugin.Chain(d.in, d.detector),
		d.detector.ConnectInput(d.comp, 1),
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("effects: de-esser: %w", err)
	}

	d.apply()

	return d, nil
}

func (d *DeEsser) Input() graph.Node  { return d.in }
func (d *DeEsser) Output() graph.Node { return d.out }

// Reduction returns the current high-band gain reduction in dB.
func (d *DeEsser) Reduction() float64 { return d.comp.Reduction() }

func (d *DeEsser) UpdateParams(update plugin.Params) {
	d.Merge(update)
	d.apply()
}

func (d *DeEsser) apply() {
	freq := d.NumIn("frequency", 6000, 2000, 16000)
	d.Ramp(d.low.Frequency(), freq)
	d.Ramp(d.detector.Frequency(), freq)
	if !d.Enabled() {
		d.ApplyBypassState()
		return
	}

	d.Ramp(d.comp.Threshold(), d.NumIn("threshold", -30, -60, 0))
	d.Ramp(d.comp.Ratio(), d.NumIn("ratio", 6, 1, 20))
}

func (d *DeEsser) ApplyBypassState() {
	neutralize(&d.Base, d.comp)
}

func (d *DeEsser) Close() {
	plugin.CloseAll(d.in, d.out, d.low, d.invert, d.high, d.detector, d.comp)
}

// Denoiser removes rumble with a high-pass and attenuates the signal
// between phrases with a downward expander.
type Denoiser struct {
	plugin.Base
	mix  *plugin.DryWet
	hpf  *graph.BiquadFilter
	gate *graph.Processor

	threshold float64
	ratio     float64
	floor     float64
	attack    float64
	release   float64
	env       float64
	gain      float64
}

// NewDenoiser returns a denoiser gating below -50 dB.
func NewDenoiser(ctx *graph.Context) (*Denoiser, error) {
	mix, err := plugin.NewDryWet(ctx)
	if err != nil {
		return nil, err
	}

	d := &Denoiser{
		Base: plugin.NewBase(ctx, plugin.KindDenoiser, plugin.Params{
			"threshold": -50.0, "ratio": 2.0, "reduction": 24.0,
			"attack": 0.005, "release": 0.12, "highpass": 80.0,
		}),
		mix:  mix,
		hpf:  graph.NewBiquadFilter(ctx, graph.Highpass),
		gain: 1,
	}

	d.hpf.Q().SetValue(0.707)
	d.gate = graph.NewProcessor(ctx, 1, d.expand)
	if err := plugin.Chain(mix.In, d.hpf, d.gate, mix.Wet); err != nil {
		d.Close()
		return nil, fmt.Errorf("effects: denoiser: %w", err)
	}

	d.apply()

	return d, nil
}

func (d *Denoiser) Input() graph.Node  { return d.mix.In }
func (d *Denoiser) Output() graph.Node { return d.mix.Out }

// Gain returns the expander's current linear gain.
func (d *Denoiser) Gain() float64 { return d.gain }

func (d *Denoiser) UpdateParams(update plugin.Params) {
	d.Merge(update)
	d.apply()
}

func (d *Denoiser) apply() {
	sr := d.Ctx.SampleRate()
	d.threshold = core.DBToLinear(d.NumIn("threshold", -50, -100, 0))
	d.ratio = d.NumIn("ratio", 2, 1, 10)
	d.floor = core.DBToLinear(-d.NumIn("reduction", 24, 0, 100))
	d.attack = core.OnePoleCoeff(d.NumIn("attack", 0.005, 0.0001, 1), sr)
	d.release = core.OnePoleCoeff(d.NumIn("release", 0.12, 0.001, 5), sr)
	d.Ramp(d.hpf.Frequency(), d.NumIn("highpass", 80, 20, 1000))
	if !d.Enabled() {
		d.ApplyBypassState()
		return
	}

	d.mix.Mix(&d.Base, 1, d.TimeConstant)
}

func (d *Denoiser) ApplyBypassState() {
	d.mix.Bypass(&d.Base, d.TimeConstant)
}

func (d *Denoiser) expand(in [][graph.Channels][]float64, out [graph.Channels][]float64, _ float64) {
	l, r := in[0][0], in[0][1]
	for i := range out[0] {
		level := math.Max(math.Abs(l[i]), math.Abs(r[i]))
		if level > d.env {
			d.env += (level - d.env) * d.attack
		} else {
			d.env += (level - d.env) * d.release
		}

		target := 1.0
		if d.env < d.threshold {
			target = math.Max(d.floor, math.Pow(d.env/d.threshold, d.ratio-1))
		}

		coeff := d.release
		if target > d.gain {
			coeff = d.attack
		}

		d.gain += (target - d.gain) * coeff
		out[0][i] = l[i] * d.gain
		out[1][i] = r[i] * d.gain
	}
}

func (d *Denoiser) Close() {
	d.mix.Close()
	plugin.CloseAll(d.hpf, d.gate)
}

// MasterSync is the mastering stage: a gentle glue compressor into a brick
// wall limiter and an output trim.
type MasterSync struct {
	plugin.Base
	glue    *graph.DynamicsCompressor
	limiter *graph.DynamicsCompressor
	trim    *graph.Gain
}

// NewMasterSync returns the mastering stage with a -0.3 dB ceiling.
func NewMasterSync(ctx *graph.Context) (*MasterSync, error) {
	m := &MasterSync{
		Base: plugin.NewBase(ctx, plugin.KindMasterSync, plugin.Params{
			"threshold": -12.0, "ratio": 2.0, "ceiling": -0.3, "outputGain": 0.0,
		}),
		glue:    graph.NewDynamicsCompressor(ctx),
		limiter: graph.NewDynamicsCompressor(ctx),
		trim:    graph.NewGain(ctx),
	}

	m.glue.Knee().SetValue(6)
	m.glue.Attack().SetValue(0.01)
	m.glue.Release().SetValue(0.2)
	m.limiter.Knee().SetValue(0)
	m.limiter.Attack().SetValue(0.001)
	m.limiter.Release().SetValue(0.05)
	if err := plugin.Chain(m.glue, m.limiter, m.trim); err != nil {
		m.Close()
		return nil, fmt.Errorf("effects: master sync: %w", err)
	}

	m.apply()

	return m, nil
}

func (m *MasterSync) Input() graph.Node  { return m.glue }
func (m *MasterSync) Output() graph.Node { return m.trim }

// Reduction returns the combined gain reduction in dB.
func (m *MasterSync) Reduction() float64 { return m.glue.Reduction() + m.limiter.Reduction() }

func (m *MasterSync) UpdateParams(update plugin.Params) {
	m.Merge(update)
	m.apply()
}

func (m *MasterSync) apply() {
	if !m.Enabled() {
		m.ApplyBypassState()
		return
	}

	m.Ramp(m.glue.Threshold(), m.NumIn("threshold", -12, -60, 0))
	m.Ramp(m.glue.Ratio(), m.NumIn("ratio", 2, 1, 10))
	m.Ramp(m.limiter.Threshold(), m.NumIn("ceiling", -0.3, -24, 0))
	m.Ramp(m.limiter.Ratio(), 20)
	m.Ramp(m.trim.Gain(), core.DBToLinear(m.NumIn("outputGain", 0, -24, 24)))
}

func (m *MasterSync) ApplyBypassState() {
	neutralize(&m.Base, m.glue)
	neutralize(&m.Base, m.limiter)
	m.RampWith(m.trim.Gain(), 1, bypassTC)
}

func (m *MasterSync) Close() {
	plugin.CloseAll(m.glue, m.limiter, m.trim)
}
