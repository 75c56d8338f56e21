package plugin

import (
	"fmt"

	"github.com/cwbudde/algo-daw/dsp/graph"
)

// Descriptor is the persisted description of one plugin slot. The live
// Node built from it is kept in sync by the track graph.
type Descriptor struct {
	ID      string  `json:"id" yaml:"id"`
	Kind    Kind    `json:"type" yaml:"type"`
	Enabled bool    `json:"isEnabled" yaml:"isEnabled"`
	Params  Params  `json:"params,omitempty" yaml:"params,omitempty"`
	Latency float64 `json:"latency,omitempty" yaml:"latency,omitempty"`
}

// EffectiveParams returns the descriptor params with the enabled flag
// folded in.
func (d Descriptor) EffectiveParams() Params {
	p := d.Params.Clone()
	p[EnabledKey] = d.Enabled

	return p
}

// Node is a live effect or instrument stage. Input and Output are fixed for
// the node's lifetime; bypassing neutralizes the internal transform instead
// of rewiring, so toggling never changes the surrounding graph.
type Node interface {
	Kind() Kind
	// Input is where upstream audio connects. Instruments return their
	// output stage here, as they take no audio input.
	Input() graph.Node
	Output() graph.Node
	// UpdateParams merges update into the current params and re-applies
	// them with smoothed ramps. An "isEnabled" of false applies the bypass
	// state.
	UpdateParams(update Params)
	// ApplyBypassState ramps the node to its neutral, pass-through setting.
	ApplyBypassState()
	// Params returns a copy of the current params.
	Params() Params
	// Latency reports processing latency in seconds.
	Latency() float64
	// Close releases every graph node owned by the plugin.
	Close()
}

// Melodic instruments play pitched voices.
type Melodic interface {
	TriggerAttack(pitch int, velocity, when float64)
	TriggerRelease(pitch int, when float64)
	ReleaseAll(when float64)
}

// Percussive instruments play one-shot hits of a single sample.
type Percussive interface {
	Trigger(velocity, when float64)
	Stop(when float64)
}

// Rack instruments map pitches onto pads.
type Rack interface {
	TriggerPad(pitch int, velocity, when float64) bool
	UpdatePads(pads []Pad)
	LoadPadSample(padID int, buf *graph.Buffer) error
}

// SampleLoader instruments play a loaded buffer.
type SampleLoader interface {
	LoadBuffer(buf *graph.Buffer)
}

// Stopper force-silences every sounding voice.
type Stopper interface {
	StopAll(when float64)
}

// TempoSynced nodes derive timing from the project tempo.
type TempoSynced interface {
	SetTempo(bpm float64)
}

// ReductionMeter reports current gain reduction in dB.
type ReductionMeter interface {
	Reduction() float64
}

// Pad is one drum-rack pad.
type Pad struct {
	ID         int     `json:"id" yaml:"id"`
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"`
	SampleName string  `json:"sampleName,omitempty" yaml:"sampleName,omitempty"`
	Volume     float64 `json:"volume" yaml:"volume"`
	Pan        float64 `json:"pan" yaml:"pan"`
	Muted      bool    `json:"isMuted" yaml:"isMuted"`
	Solo       bool    `json:"isSolo" yaml:"isSolo"`
	MIDINote   int     `json:"midiNote" yaml:"midiNote"`
}

// DefaultPads returns n pads mapped chromatically from MIDI note 60.
func DefaultPads(n int) []Pad {
	pads := make([]Pad, n)
	for i := range pads {
		pads[i] = Pad{ID: i + 1, Name: fmt.Sprintf("Pad %d", i+1), SampleName: "Empty", Volume: 0.8, MIDINote: 60 + i}
	}

	return pads
}
