package graph

import (
	"math"
	"slices"

	"github.com/cwbudde/algo-daw/dsp/core"
)

type eventKind int

const (
	eventSetValue eventKind = iota
	eventLinearRamp
	eventSetTarget
)

type paramEvent struct {
	kind         eventKind
	time         float64
	value        float64
	timeConstant float64
}

// Param is an automatable control value evaluated once per sample. Its
// timeline supports immediate values, linear ramps and exponential
// approaches; node outputs connected with ConnectParam are added on top.
type Param struct {
	owner *node
	name  string

	value    float64
	minValue float64
	maxValue float64

	events []paramEvent
	target *paramEvent

	anchorTime  float64
	anchorValue float64

	inputs  []*node
	values  []float64
	uniform bool
}

func newParam(owner *node, name string, value, minValue, maxValue float64) *Param {
	return &Param{
		owner:       owner,
		name:        name,
		value:       value,
		minValue:    minValue,
		maxValue:    maxValue,
		anchorValue: value,
		values:      make([]float64, owner.ctx.blockSize),
	}
}

// Name returns the param name.
func (p *Param) Name() string { return p.name }

// Value returns the most recently evaluated intrinsic value.
func (p *Param) Value() float64 { return p.value }

// FinalValue returns the value the timeline settles at once every scheduled
// event has run.
func (p *Param) FinalValue() float64 {
	if n := len(p.events); n > 0 {
		return p.events[n-1].value
	}

	if p.target != nil {
		return p.target.value
	}

	return p.value
}

// SetValue cancels all automation and jumps to v.
func (p *Param) SetValue(v float64) {
	p.events = nil
	p.target = nil
	p.value = p.clamp(v)
	p.anchorTime = p.owner.ctx.CurrentTime()
	p.anchorValue = p.value
}

// SetValueAtTime schedules a jump to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventSetValue, time: t, value: v})
}

// LinearRampToValueAtTime schedules a linear ramp from the previous event
// (or from now) reaching v at time t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	if len(p.events) == 0 && p.target == nil {
		p.anchorTime = p.owner.ctx.CurrentTime()
		p.anchorValue = p.value
	}

	p.insert(paramEvent{kind: eventLinearRamp, time: t, value: v})
}

// SetTargetAtTime starts an exponential approach to v at time t with the
// given time constant in seconds.
func (p *Param) SetTargetAtTime(v, t, timeConstant float64) {
	if timeConstant <= 0 {
		p.SetValueAtTime(v, t)
		return
	}

	p.insert(paramEvent{kind: eventSetTarget, time: t, value: v, timeConstant: timeConstant})
}

// CancelScheduledValues removes every event at or after t. A running
// exponential approach holds its current value.
func (p *Param) CancelScheduledValues(t float64) {
	p.events = slices.DeleteFunc(p.events, func(e paramEvent) bool { return e.time >= t })
	if p.target != nil {
		p.target = nil
		p.anchorTime = p.owner.ctx.CurrentTime()
		p.anchorValue = p.value
	}
}

func (p *Param) insert(e paramEvent) {
	e.value = finiteOr(e.value, p.value)
	i := len(p.events)
	for i > 0 && p.events[i-1].time > e.time {
		i--
	}

	p.events = slices.Insert(p.events, i, e)
}

func (p *Param) clamp(v float64) float64 {
	return core.Clamp(v, p.minValue, p.maxValue)
}

// valueAt advances the timeline to time t and returns the intrinsic value.
func (p *Param) valueAt(t float64) float64 {
timeline:
	for len(p.events) > 0 {
		e := p.events[0]
		switch e.kind {
		case eventSetValue:
			if t < e.time {
				break timeline
			}

			p.target = nil
			p.value = e.value
		case eventSetTarget:
			if t < e.time {
				break timeline
			}

			ev := e
			p.target = &ev
		case eventLinearRamp:
			if p.target != nil {
				p.target = nil
				p.anchorTime = t
				p.anchorValue = p.value
			}

			if t < e.time {
				span := e.time - p.anchorTime
				if span > 0 {
					frac := (t - p.anchorTime) / span
					p.value = p.anchorValue + (e.value-p.anchorValue)*frac
				}

				return p.clamp(p.value)
			}

			p.value = e.value
		}

		p.anchorTime = e.time
		p.anchorValue = p.value
		p.events = p.events[1:]
	}

	if tg := p.target; tg != nil {
		p.value = tg.value + (p.anchorValue-tg.value)*math.Exp(-(t-p.anchorTime)/tg.timeConstant)
		if math.Abs(p.value-tg.value) < 1e-7 {
			p.value = tg.value
			p.target = nil
			p.anchorTime = t
			p.anchorValue = p.value
		}
	}

	return p.clamp(p.value)
}

// compute fills the per-sample values for the current quantum.
func (p *Param) compute() {
	ctx := p.owner.ctx
	p.uniform = len(p.events) == 0 && p.target == nil && len(p.inputs) == 0
	if len(p.events) == 0 && p.target == nil {
		core.Fill(p.values, p.clamp(p.value))
	} else {
		for i := range p.values {
			p.values[i] = p.valueAt(ctx.sampleTime(i))
		}
	}

	for _, s := range p.inputs {
		mod := s.pull()
		for i, m := range mod[0] {
			p.values[i] += m
		}
	}
}

// at returns the value of sample i of the current quantum.
func (p *Param) at(i int) float64 { return p.values[i] }

// first returns the value at the start of the current quantum, for params
// evaluated once per block.
func (p *Param) first() float64 { return p.values[0] }
