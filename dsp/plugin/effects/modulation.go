package effects

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

// lfo is a started sine oscillator scaled by a depth gain; its output is
// meant to be connected to params.
type lfo struct {
	osc   *graph.Oscillator
	depth *graph.Gain
}

func newLFO(ctx *graph.Context, rate float64) (*lfo, error) {
	l := &lfo{osc: graph.NewOscillator(ctx, graph.Sine), depth: graph.NewGain(ctx)}
	l.osc.Frequency().SetValue(rate)
	l.depth.Gain().SetValue(0)
	if err := errors.Join(l.osc.Connect(l.depth), l.osc.Start(ctx.CurrentTime())); err != nil {
		l.close()
		return nil, err
	}

	return l, nil
}

func (l *lfo) modulate(params ...*graph.Param) error {
	var errs []error
	for _, p := range params {
		errs = append(errs, l.depth.ConnectParam(p))
	}

	return errors.Join(errs...)
}

func (l *lfo) close() {
	if l == nil {
		return
	}

	l.osc.Stop(0)
	plugin.CloseAll(l.osc, l.depth)
}

// Chorus runs two modulated delay voices whose LFOs move in opposite
// directions, one panned to each side.
type Chorus struct {
	plugin.Base
	mix    *plugin.DryWet
	left   *graph.Delay
	right  *graph.Delay
	invert *graph.Gain
	merge  *graph.ChannelMerger
	lfo    *lfo
}

const (
	chorusBaseDelay = 0.02
	chorusMaxDepth  = 0.005
)

// NewChorus returns a chorus at 1.5 Hz, half depth and half mix.
func NewChorus(ctx *graph.Context) (*Chorus, error) {
	mix, err := plugin.NewDryWet(ctx)
	if err != nil {
		return nil, err
	}

	c := &Chorus{
		Base: plugin.NewBase(ctx, plugin.KindChorus, plugin.Params{
			"rate": 1.5, "depth": 0.5, "mix": 0.5,
		}),
		mix:    mix,
		invert: graph.NewGain(ctx),
		merge:  graph.NewChannelMerger(ctx),
	}

	c.invert.Gain().SetValue(-1)
	if c.left, err = graph.NewDelay(ctx, 0.1); err == nil {
		c.right, err = graph.NewDelay(ctx, 0.1)
	}

	if err == nil {
		c.lfo, err = newLFO(ctx, 1.5)
	}

	if err != nil {
		c.Close()
		return nil, err
	}

	c.left.DelayTime().SetValue(chorusBaseDelay)
	c.right.DelayTime().SetValue(chorusBaseDelay)

	err = errors.Join(
		mix.In.Connect(c.left),
		mix.In.Connect(c.right),
		c.left.ConnectInput(c.merge, 0),
		c.right.ConnectInput(c.merge, 1),
		c.merge.Connect(mix.Wet),
		c.lfo.modulate(c.left.DelayTime()),
		plugin.Chain(c.lfo.depth, c.invert),
		c.invert.ConnectParam(c.right.DelayTime()),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("effects: chorus: %w", err)
	}

	c.apply()

	return c, nil
}

func (c *Chorus) Input() graph.Node  { return c.mix.In }
func (c *Chorus) Output() graph.Node { return c.mix.Out }

func (c *Chorus) UpdateParams(update plugin.Params) {
	c.Merge(update)
	c.apply()
}

func (c *Chorus) apply() {
	c.Ramp(c.lfo.osc.Frequency(), c.NumIn("rate", 1.5, 0.01, 10))
	c.Ramp(c.lfo.depth.Gain(), c.NumIn("depth", 0.5, 0, 1)*chorusMaxDepth)
	if !c.Enabled() {
		c.ApplyBypassState()
		return
	}

	c.mix.Mix(&c.Base, c.NumIn("mix", 0.5, 0, 1), c.TimeConstant)
}

func (c *Chorus) ApplyBypassState() {
	c.mix.Bypass(&c.Base, c.TimeConstant)
}

func (c *Chorus) Close() {
	c.mix.Close()
	c.lfo.close()
	plugin.CloseAll(c.invert, c.merge)
	if c.left != nil {
		c.left.Close()
	}

	if c.right != nil {
		c.right.Close()
	}
}

// Flanger is a short modulated delay with feedback.
type Flanger struct {
	plugin.Base
	mix   *plugin.DryWet
	delay *graph.Delay
	lfo   *lfo
}

const (
	flangerBaseDelay = 0.003
	flangerMaxDepth  = 0.002
)

// NewFlanger returns a flanger sweeping at 0.25 Hz.
func NewFlanger(ctx *graph.Context) (*Flanger, error) {
	mix, err := plugin.NewDryWet(ctx)
	if err != nil {
		return nil, err
	}

	f := &Flanger{
		Base: plugin.NewBase(ctx, plugin.KindFlanger, plugin.Params{
			"rate": 0.25, "depth": 0.7, "feedback": 0.5, "mix": 0.5,
		}),
		mix: mix,
	}

	if f.delay, err = graph.NewDelay(ctx, 0.05); err == nil {
		f.lfo, err = newLFO(ctx, 0.25)
	}

	if err != nil {
		f.Close()
		return nil, err
	}

	f.delay.DelayTime().SetValue(flangerBaseDelay)
	err = errors.Join(
		plugin.Chain(mix.In, f.delay, mix.Wet),
		f.lfo.modulate(f.delay.DelayTime()),
	)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("effects: flanger: %w", err)
	}

	f.apply()

	return f, nil
}

func (f *Flanger) Input() graph.Node  { return f.mix.In }
func (f *Flanger) Output() graph.Node { return f.mix.Out }

func (f *Flanger) UpdateParams(update plugin.Params) {
	f.Merge(update)
	f.apply()
}

func (f *Flanger) apply() {
	f.Ramp(f.lfo.osc.Frequency(), f.NumIn("rate", 0.25, 0.01, 10))
	f.Ramp(f.lfo.depth.Gain(), f.NumIn("depth", 0.7, 0, 1)*flangerMaxDepth)
	f.Ramp(f.delay.Feedback(), f.NumIn("feedback", 0.5, -maxFeedback, maxFeedback))
	if !f.Enabled() {
		f.ApplyBypassState()
		return
	}

	f.mix.Mix(&f.Base, f.NumIn("mix", 0.5, 0, 1), f.TimeConstant)
}

func (f *Flanger) ApplyBypassState() {
	f.mix.Bypass(&f.Base, f.TimeConstant)
}

func (f *Flanger) Close() {
	f.mix.Close()
	f.lfo.close()
	if f.delay != nil {
		f.delay.Close()
	}
}

// Doubler simulates a double-tracked part: two slightly detuned short
// delays panned apart.
type Doubler struct {
	plugin.Base
	mix    *plugin.DryWet
	left   *graph.Delay
	right  *graph.Delay
	merge  *graph.ChannelMerger
	drift  *lfo
	invert *graph.Gain
}

const doublerMaxDrift = 0.001

// NewDoubler returns a doubler with 20 ms and 30 ms voices.
func NewDoubler(ctx *graph.Context) (*Doubler, error) {
	mix, err := plugin.NewDryWet(ctx)
	if err != nil {
		return nil, err
	}

	d := &Doubler{
		Base: plugin.NewBase(ctx, plugin.KindDoubler, plugin.Params{
			"delayLeft": 0.02, "delayRight": 0.03, "detune": 0.5, "mix": 0.5,
		}),
		mix:    mix,
		merge:  graph.NewChannelMerger(ctx),
		invert: graph.NewGain(ctx),
	}

	d.invert.Gain().SetValue(-1)
	if d.left, err = graph.NewDelay(ctx, 0.1); err == nil {
		d.right, err = graph.NewDelay(ctx, 0.1)
	}

	if err == nil {
		d.drift, err = newLFO(ctx, 0.3)
	}

	if err != nil {
		d.Close()
		return nil, err
	}

	err = errors.Join(
		mix.In.Connect(d.left),
		mix.In.Connect(d.right),
		d.left.ConnectInput(d.merge, 0),
		d.right.ConnectInput(d.merge, 1),
		d.merge.Connect(mix.Wet),
		d.drift.modulate(d.left.DelayTime()),
		plugin.Chain(d.drift.depth, d.invert),
		d.invert.ConnectParam(d.right.DelayTime()),
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("effects: doubler: %w", err)
	}

	d.apply()

	return d, nil
}

func (d *Doubler) Input() graph.Node  { return d.mix.In }
func (d *Doubler) Output() graph.Node { return d.mix.Out }

func (d *Doubler) UpdateParams(update plugin.Params) {
	d.Merge(update)
	d.apply()
}

func (d *Doubler) apply() {
	d.Ramp(d.left.DelayTime(), d.NumIn("delayLeft", 0.02, 0.005, 0.08))
	d.Ramp(d.right.DelayTime(), d.NumIn("delayRight", 0.03, 0.005, 0.08))
	d.Ramp(d.drift.depth.Gain(), d.NumIn("detune", 0.5, 0, 1)*doublerMaxDrift)
	if !d.Enabled() {
		d.ApplyBypassState()
		return
	}

	d.mix.Mix(&d.Base, d.NumIn("mix", 0.5, 0, 1), d.TimeConstant)
}

func (d *Doubler) ApplyBypassState() {
	d.mix.Bypass(&d.Base, d.TimeConstant)
}

func (d *Doubler) Close() {
	d.mix.Close()
	d.drift.close()
	plugin.CloseAll(d.merge, d.invert)
	if d.left != nil {
		d.left.Close()
	}

	if d.right != nil {
		d.right.Close()
	}
}

// StereoSpreader scales the side signal of a mid/side decomposition and
// delays the right channel by a few milliseconds. Width 1 with no delay
// reproduces the input; width 0 folds it to mono.
type StereoSpreader struct {
	plugin.Base
	split    *graph.ChannelSplitter
	mid      *graph.Gain
	side     *graph.Gain
	negRight *graph.Gain
	width    *graph.Gain
	negSide  *graph.Gain
	right    *graph.Gain
	haas     *graph.Delay
	merge    *graph.ChannelMerger
}

const maxHaas = 0.03

// NewStereoSpreader returns a spreader at width 1.5 with a 10 ms Haas delay.
func NewStereoSpreader(ctx *graph.Context) (*StereoSpreader, error) {
	s := &StereoSpreader{
		Base:     plugin.NewBase(ctx, plugin.KindStereoSpreader, plugin.Params{"width": 1.5, "haas": 0.01}),
		split:    graph.NewChannelSplitter(ctx),
		mid:      graph.NewGain(ctx),
		side:     graph.NewGain(ctx),
		negRight: graph.NewGain(ctx),
		width:    graph.NewGain(ctx),
		negSide:  graph.NewGain(ctx),
		right:    graph.NewGain(ctx),
		merge:    graph.NewChannelMerger(ctx),
	}

	var err error
	if s.haas, err = graph.NewDelay(ctx, maxHaas); err != nil {
		s.Close()
		return nil, err
	}

	s.mid.Gain().SetValue(0.5)
	s.side.Gain().SetValue(0.5)
	s.negRight.Gain().SetValue(-1)
	s.negSide.Gain().SetValue(-1)

	l, r := s.split.Output(0), s.split.Output(1)
	err = errors.Join(
		l.Connect(s.mid),
		r.Connect(s.mid),
		l.Connect(s.side),
		plugin.Chain(r, s.negRight, s.side),
		plugin.Chain(s.side, s.width, s.negSide),
		s.mid.ConnectInput(s.merge, 0),
		s.width.ConnectInput(s.merge, 0),
		s.mid.Connect(s.right),
		s.negSide.Connect(s.right),
		plugin.Chain(s.right, s.haas),
		s.haas.ConnectInput(s.merge, 1),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("effects: stereo spreader: %w", err)
	}

	s.apply()

	return s, nil
}

func (s *StereoSpreader) Input() graph.Node  { return s.split }
func (s *StereoSpreader) Output() graph.Node { return s.merge }

func (s *StereoSpreader) UpdateParams(update plugin.Params) {
	s.Merge(update)
	s.apply()
}

func (s *StereoSpreader) apply() {
	if !s.Enabled() {
		s.ApplyBypassState()
		return
	}

	s.Ramp(s.width.Gain(), s.NumIn("width", 1.5, 0, 2))
	s.Ramp(s.haas.DelayTime(), s.NumIn("haas", 0.01, 0, maxHaas))
}

func (s *StereoSpreader) ApplyBypassState() {
	s.Ramp(s.width.Gain(), 1)
	s.Ramp(s.haas.DelayTime(), 0)
}

func (s *StereoSpreader) Close() {
	s.split.Close()
	plugin.CloseAll(s.mid, s.side, s.negRight, s.width, s.negSide, s.right, s.merge)
	if s.haas != nil {
		s.haas.Close()
	}
}
