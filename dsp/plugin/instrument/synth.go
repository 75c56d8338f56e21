package instrument

import (
	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

// Synth is a polyphonic subtractive synthesizer: one oscillator per voice
// through a resonant low-pass and an ADSR amplitude envelope.
type Synth struct {
	plugin.Base
	out    *graph.Gain
	voices *voicePool
}

// NewSynth returns a sawtooth synthesizer.
func NewSynth(ctx *graph.Context) (*Synth, error) {
	s := &Synth{
		Base: plugin.NewBase(ctx, plugin.KindSynth, plugin.Params{
			"waveform": "sawtooth", "attack": 0.01, "decay": 0.1, "sustain": 0.7, "release": 0.3,
			"cutoff": 2000.0, "resonance": 1.0, "detune": 0.0, "volume": 0.5,
		}),
		out:    graph.NewGain(ctx),
		voices: newVoicePool(),
	}

	s.apply()

	return s, nil
}

func (s *Synth) Input() graph.Node  { return s.out }
func (s *Synth) Output() graph.Node { return s.out }

// Voices returns the number of sounding voices.
func (s *Synth) Voices() int { return s.voices.len() }

func (s *Synth) envelope() Envelope {
	return Envelope{
		Attack:  s.NumIn("attack", 0.01, 0, 10),
		Decay:   s.NumIn("decay", 0.1, 0, 10),
		Sustain: s.NumIn("sustain", 0.7, 0, 1),
		Release: s.NumIn("release", 0.3, 0, 10),
	}
}

// TriggerAttack starts a voice for pitch at when. A voice already held on
// the same pitch is released.
func (s *Synth) TriggerAttack(pitch int, velocity, when float64) {
	ctx := s.Ctx
	osc := graph.NewOscillator(ctx, graph.ParseWaveform(s.Str("waveform", "sawtooth")))
	osc.Frequency().SetValue(core.MIDIToHz(float64(pitch)))
	osc.Detune().SetValue(s.NumIn("detune", 0, -1200, 1200))
	filter := graph.NewBiquadFilter(ctx, graph.Lowpass)
	filter.Frequency().SetValue(s.NumIn("cutoff", 2000, 20, 20000))
	filter.Q().SetValue(s.NumIn("resonance", 1, 0.1, 30))
	env := graph.NewGain(ctx)
	env.Gain().SetValue(0)

	v := &voice{key: pitch, src: osc, env: env, nodes: []graph.Node{osc, filter, env}, envelope: s.envelope()}
	if err := plugin.Chain(osc, filter, env, s.out); err != nil {
		v.close()
		return
	}

	if err := osc.Start(when); err != nil {
		v.close()
		return
	}

	v.gate = v.envelope.open(env.Gain(), core.Clamp(velocity, 0, 1), when)
	s.voices.add(v, true, when)
}

// TriggerRelease releases the voice held on pitch.
func (s *Synth) TriggerRelease(pitch int, when float64) {
	s.voices.release(pitch, when)
}

// ReleaseAll releases every held voice.
func (s *Synth) ReleaseAll(when float64) {
	s.voices.releaseAll(when)
}

// StopAll silences every voice, including releasing ones.
func (s *Synth) StopAll(when float64) {
	s.voices.stopAll(when)
}

func (s *Synth) UpdateParams(update plugin.Params) {
	s.Merge(update)
	s.apply()
}

func (s *Synth) apply() {
	if !s.Enabled() {
		s.ApplyBypassState()
		return
	}

	s.Ramp(s.out.Gain(), s.NumIn("volume", 0.5, 0, 2))
}

// ApplyBypassState mutes the instrument.
func (s *Synth) ApplyBypassState() {
	s.Ramp(s.out.Gain(), 0)
}

func (s *Synth) Close() {
	s.voices.closeAll()
	s.out.Close()
}
