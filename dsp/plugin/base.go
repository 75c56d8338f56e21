package plugin

import (
	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
)

// DefaultTimeConstant is the smoothing time constant for control changes.
const DefaultTimeConstant = 0.015

// Base carries the state shared by plugin nodes: the context, the merged
// params and the smoothing time constant. Embed it and implement Input,
// Output, UpdateParams and ApplyBypassState.
type Base struct {
	Ctx          *graph.Context
	TimeConstant float64

	kind   Kind
	params Params
}

// NewBase returns a Base seeded with defaults.
func NewBase(ctx *graph.Context, kind Kind, defaults Params) Base {
	p := defaults.Clone()
	if _, ok := p[EnabledKey]; !ok {
		p[EnabledKey] = true
	}

	return Base{Ctx: ctx, TimeConstant: DefaultTimeConstant, kind: kind, params: p}
}

// Kind returns the plugin kind.
func (b *Base) Kind() Kind { return b.kind }

// Params returns a copy of the current params.
func (b *Base) Params() Params { return b.params.Clone() }

// Latency reports zero processing latency.
func (b *Base) Latency() float64 { return 0 }

// Merge folds update into the current params.
func (b *Base) Merge(update Params) { b.params = b.params.Merge(update) }

// Enabled reports the "isEnabled" param.
func (b *Base) Enabled() bool { return b.params.Bool(EnabledKey, true) }

// Num reads a numeric param.
func (b *Base) Num(key string, def float64) float64 { return b.params.Float(key, def) }

// NumIn reads a numeric param clamped to [lo, hi].
func (b *Base) NumIn(key string, def, lo, hi float64) float64 {
	return core.Clamp(b.params.Float(key, def), lo, hi)
}

// Flag reads a boolean param.
func (b *Base) Flag(key string, def bool) bool { return b.params.Bool(key, def) }

// Str reads a string param.
func (b *Base) Str(key, def string) string { return b.params.String(key, def) }

// Ramp moves p toward v with the node's time constant, replacing any
// pending automation.
func (b *Base) Ramp(p *graph.Param, v float64) {
	b.RampWith(p, v, b.TimeConstant)
}

// RampWith moves p toward v with time constant tc.
func (b *Base) RampWith(p *graph.Param, v, tc float64) {
	now := b.Ctx.CurrentTime()
	p.CancelScheduledValues(now)
	p.SetTargetAtTime(v, now, tc)
}

// Now returns the audio clock.
func (b *Base) Now() float64 { return b.Ctx.CurrentTime() }
