package instrument

import "github.com/cwbudde/algo-daw/dsp/graph"

const (
	minRamp = 0.001
	// releaseShape is the number of time constants the release covers.
	releaseShape = 5
	stopFade     = 0.005
)

// Envelope is an attack/hold/decay/sustain/release amplitude contour driven
// through param automation. Times are seconds, Sustain is a fraction of the
// peak.
type Envelope struct {
	Attack  float64
	Hold    float64
	Decay   float64
	Sustain float64
	Release float64
}

// gate remembers how an envelope was opened so a release landing inside
// the attack continues from the right level.
type gate struct {
	start     float64
	attackEnd float64
	peak      float64
}

// open schedules the attack, hold and decay phases from when.
func (e Envelope) open(p *graph.Param, peak, when float64) gate {
	attack := max(e.Attack, minRamp)
	g := gate{start: when, attackEnd: when + attack, peak: peak}
	p.CancelScheduledValues(when)
	p.SetValueAtTime(0, when)
	p.LinearRampToValueAtTime(peak, g.attackEnd)
	decayAt := g.attackEnd
	if e.Hold > 0 {
		decayAt += e.Hold
		p.SetValueAtTime(peak, decayAt)
	}

	p.SetTargetAtTime(peak*e.Sustain, decayAt, max(e.Decay, minRamp)/3)

	return g
}

// close schedules the release at when and returns the time the voice is
// inaudible.
func (e Envelope) close(p *graph.Param, g gate, when float64) float64 {
	p.CancelScheduledValues(when)
	if when < g.attackEnd {
		frac := (when - g.start) / (g.attackEnd - g.start)
		p.LinearRampToValueAtTime(g.peak*max(frac, 0), when)
	}

	release := max(e.Release, minRamp)
	p.SetTargetAtTime(0, when, release/releaseShape)

	return when + release
}
