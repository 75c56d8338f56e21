package effects

import (
	"fmt"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

const (
	maxSyncDelay   = 5.0
	maxFeedback    = 0.95
	delayTimeTC    = 0.05
	delayControlTC = 0.02
)

// divisionBeats maps note divisions to lengths in quarter notes.
var divisionBeats = map[string]float64{
	"1/1":  4,
	"1/2":  2,
	"1/2d": 3,
	"1/4":  1,
	"1/4d": 1.5,
	"1/4t": 2.0 / 3,
	"1/8":  0.5,
	"1/8d": 0.75,
	"1/8t": 1.0 / 3,
	"1/16": 0.25,
	"1/32": 0.125,
}

// DivisionSeconds returns the length of a note division at bpm. Unknown
// divisions count as a quarter note.
func DivisionSeconds(division string, bpm float64) float64 {
	beats, ok := divisionBeats[division]
	if !ok {
		beats = 1
	}

	return 60 / bpm * beats
}

// SyncDelay is a feedback delay whose time follows the project tempo.
type SyncDelay struct {
	plugin.Base
	mix   *plugin.DryWet
	delay *graph.Delay

	delayTime float64
}

// NewSyncDelay returns a quarter-note delay at bpm with 30% feedback and
// 30% mix.
func NewSyncDelay(ctx *graph.Context, bpm float64) (*SyncDelay, error) {
	mix, err := plugin.NewDryWet(ctx)
	if err != nil {
		return nil, err
	}

	d := &SyncDelay{
		Base: plugin.NewBase(ctx, plugin.KindDelay, plugin.Params{
			"division": "1/4", "feedback": 0.3, "mix": 0.3, "bpm": bpm,
		}),
		mix: mix,
	}

	if d.delay, err = graph.NewDelay(ctx, maxSyncDelay); err != nil {
		d.Close()
		return nil, err
	}

	if err := plugin.Chain(mix.In, d.delay, mix.Wet); err != nil {
		d.Close()
		return nil, fmt.Errorf("effects: delay: %w", err)
	}

	d.apply()

	return d, nil
}

func (d *SyncDelay) Input() graph.Node  { return d.mix.In }
func (d *SyncDelay) Output() graph.Node { return d.mix.Out }

// DelayTime returns the tempo-derived delay time in seconds.
func (d *SyncDelay) DelayTime() float64 { return d.delayTime }

// SetTempo re-derives the delay time from bpm.
func (d *SyncDelay) SetTempo(bpm float64) {
	d.UpdateParams(plugin.Params{"bpm": bpm})
}

func (d *SyncDelay) UpdateParams(update plugin.Params) {
	d.Merge(update)
	d.apply()
}

func (d *SyncDelay) apply() {
	bpm := d.NumIn("bpm", 120, 20, 999)
	d.delayTime = core.Clamp(DivisionSeconds(d.Str("division", "1/4"), bpm), 0, maxSyncDelay)
	d.RampWith(d.delay.DelayTime(), d.delayTime, delayTimeTC)
	d.RampWith(d.delay.Feedback(), d.NumIn("feedback", 0.3, 0, maxFeedback), delayControlTC)
	if !d.Enabled() {
		d.ApplyBypassState()
		return
	}

	d.mix.Mix(&d.Base, d.NumIn("mix", 0.3, 0, 1), delayControlTC)
}

func (d *SyncDelay) ApplyBypassState() {
	d.mix.Bypass(&d.Base, delayControlTC)
}

func (d *SyncDelay) Close() {
	d.mix.Close()
	if d.delay != nil {
		d.delay.Close()
	}
}
