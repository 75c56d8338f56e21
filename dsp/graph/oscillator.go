package graph

import (
	"math"

	"github.com/cwbudde/algo-daw/dsp/core"
)

// Waveform selects the oscillator shape.
type Waveform int

// Oscillator waveforms.
const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

// ParseWaveform maps a waveform name to its value. Unknown names map to Sine.
func ParseWaveform(name string) Waveform {
	switch name {
	case "square":
		return Square
	case "sawtooth", "saw":
		return Sawtooth
	case "triangle":
		return Triangle
	default:
		return Sine
	}
}

// Oscillator is a scheduled periodic source.
type Oscillator struct {
	*node
	source
	waveform  Waveform
	frequency *Param
	detune    *Param
	phase     float64
}

// NewOscillator returns a 440 Hz oscillator of the given waveform.
func NewOscillator(ctx *Context, waveform Waveform) *Oscillator {
	o := &Oscillator{waveform: waveform}
	o.node = newNode(ctx, 0, o.process)
	o.source = newSource(o.node)
	o.frequency = o.addParam("frequency", 440, -ctx.sampleRate/2, ctx.sampleRate/2)
	o.detune = o.addParam("detune", 0, -153600, 153600)

	return o
}

// Frequency returns the frequency param in Hz.
func (o *Oscillator) Frequency() *Param { return o.frequency }

// Detune returns the detune param in cents.
func (o *Oscillator) Detune() *Param { return o.detune }

// SetWaveform switches the waveform.
func (o *Oscillator) SetWaveform(w Waveform) { o.waveform = w }

// Start schedules the oscillator to begin at clock time when.
func (o *Oscillator) Start(when float64) error { return o.start(o, when) }

// Stop schedules the oscillator to end at clock time when.
func (o *Oscillator) Stop(when float64) { o.stop(when) }

func (o *Oscillator) endTime() float64 { return o.stopTime }

func (o *Oscillator) process(n *node) {
	sr := n.ctx.sampleRate
	for i := range n.out[0] {
		if !o.active(n.ctx.sampleTime(i)) {
			n.out[0][i], n.out[1][i] = 0, 0
			continue
		}

		freq := o.frequency.at(i) * core.SemitoneRatio(o.detune.at(i)/100)
		v := waveSample(o.waveform, o.phase)
		n.out[0][i], n.out[1][i] = v, v
		o.phase += freq / sr
		o.phase -= math.Floor(o.phase)
	}
}

func waveSample(w Waveform, phase float64) float64 {
	switch w {
	case Square:
		if phase < 0.5 {
			return 1
		}

		return -1
	case Sawtooth:
		return 2*phase - 1
	case Triangle:
		if phase < 0.5 {
			return 4*phase - 1
		}

		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
