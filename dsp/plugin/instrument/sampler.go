package instrument

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

// AudioSampler maps pitches onto one buffer: each note plays it once at
// 2^((pitch-rootKey)/12) speed until released or finished.
type AudioSampler struct {
	plugin.Base
	buffer *graph.Buffer
	out    *graph.Gain
	voices *voicePool
}

// NewAudioSampler returns an empty sampler.
func NewAudioSampler(ctx *graph.Context) (*AudioSampler, error) {
	s := &AudioSampler{
		Base: plugin.NewBase(ctx, plugin.KindSampler, plugin.Params{
			"rootKey": 60, "volume": 1.0, "attack": 0.002, "release": 0.1,
		}),
		out:    graph.NewGain(ctx),
		voices: newVoicePool(),
	}

	s.apply()

	return s, nil
}

func (s *AudioSampler) Input() graph.Node  { return s.out }
func (s *AudioSampler) Output() graph.Node { return s.out }

// LoadBuffer replaces the sample.
func (s *AudioSampler) LoadBuffer(buf *graph.Buffer) { s.buffer = buf }

// Voices returns the number of sounding voices.
func (s *AudioSampler) Voices() int { return s.voices.len() }

// TriggerAttack plays the buffer transposed to pitch at when.
func (s *AudioSampler) TriggerAttack(pitch int, velocity, when float64) {
	if s.buffer == nil || s.buffer.Frames() == 0 {
		return
	}

	src := graph.NewBufferSource(s.Ctx, s.buffer)
	src.PlaybackRate().SetValue(math.Pow(2, (float64(pitch)-s.NumIn("rootKey", 60, 0, 127))/12))
	env := graph.NewGain(s.Ctx)
	env.Gain().SetValue(0)
	envelope := Envelope{Attack: s.NumIn("attack", 0.002, 0, 5), Sustain: 1, Release: s.NumIn("release", 0.1, 0, 10)}

	v := &voice{key: pitch, src: src, env: env, nodes: []graph.Node{src, env}, envelope: envelope}
	if err := errors.Join(plugin.Chain(src, env, s.out), src.Start(when, 0, 0)); err != nil {
		v.close()
		return
	}

	v.gate = envelope.open(env.Gain(), core.Clamp(velocity, 0, 1), when)
	s.voices.add(v, true, when)
}

// TriggerRelease releases the voice held on pitch.
func (s *AudioSampler) TriggerRelease(pitch int, when float64) {
	s.voices.release(pitch, when)
}

// ReleaseAll releases every held voice.
func (s *AudioSampler) ReleaseAll(when float64) {
	s.voices.releaseAll(when)
}

// StopAll silences every voice.
func (s *AudioSampler) StopAll(when float64) {
	s.voices.stopAll(when)
}

func (s *AudioSampler) UpdateParams(update plugin.Params) {
	s.Merge(update)
	s.apply()
}

func (s *AudioSampler) apply() {
	if !s.Enabled() {
		s.ApplyBypassState()
		return
	}

	s.Ramp(s.out.Gain(), s.NumIn("volume", 1, 0, 2))
}

// ApplyBypassState mutes the instrument.
func (s *AudioSampler) ApplyBypassState() {
	s.Ramp(s.out.Gain(), 0)
}

func (s *AudioSampler) Close() {
	s.voices.closeAll()
	s.out.Close()
}
