package instrument

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
	"github.com/cwbudde/algo-daw/dsp/plugin/effects"
)

// LFO destinations of the melodic sampler.
const (
	LFOPitch  = "PITCH"
	LFOFilter = "FILTER"
	LFOAmp    = "AMP"
)

// MelodicSampler plays a loaded buffer chromatically. Voices are pitched
// relative to rootKey, optionally looped, shaped by an ADSR and a
// velocity-tracking low-pass, and modulated by a shared LFO. The voice bus
// runs through saturation, bit reduction, chorus and stereo width stages.
type MelodicSampler struct {
	plugin.Base
	buffer *graph.Buffer
	voices *voicePool

	bus      *graph.Gain
	shaper   *graph.WaveShaper
	crusher  *graph.Processor
	chorus   *effects.Chorus
	spreader *effects.StereoSpreader
	tremolo  *graph.Gain
	out      *graph.Gain

	lfo         *graph.Oscillator
	pitchDepth  *graph.Gain
	filterDepth *graph.Gain
	ampDepth    *graph.Gain

	lastRate   float64
	crushSteps float64
	saturation float64
}

// NewMelodicSampler returns an empty sampler rooted at middle C.
func NewMelodicSampler(ctx *graph.Context) (*MelodicSampler, error) {
	m := &MelodicSampler{
		Base: plugin.NewBase(ctx, plugin.KindMelodicSampler, plugin.Params{
			"rootKey": 60, "fineTune": 0.0, "glide": 0.05, "loop": true, "loopStart": 0.0, "loopEnd": 1.0,
			"attack": 0.01, "decay": 0.3, "sustain": 0.5, "release": 0.5,
			"filterCutoff": 20000.0, "filterRes": 0.0, "velocityToFilter": 0.5,
			"lfoRate": 4.0, "lfoAmount": 0.0, "lfoDest": LFOPitch,
			"saturation": 0.0, "bitCrush": 0.0, "chorus": 0.0, "width": 0.5, "volume": 1.0,
		}),
		voices:      newVoicePool(),
		bus:         graph.NewGain(ctx),
		shaper:      graph.NewWaveShaper(ctx),
		tremolo:     graph.NewGain(ctx),
		out:         graph.NewGain(ctx),
		lfo:         graph.NewOscillator(ctx, graph.Sine),
		pitchDepth:  graph.NewGain(ctx),
		filterDepth: graph.NewGain(ctx),
		ampDepth:    graph.NewGain(ctx),
		saturation:  -1,
	}

	m.crusher = graph.NewProcessor(ctx, 1, m.crush)
	var err error
	if m.chorus, err = effects.NewChorus(ctx); err == nil {
		m.spreader, err = effects.NewStereoSpreader(ctx)
	}

	if err != nil {
		m.Close()
		return nil, fmt.Errorf("instrument: melodic sampler: %w", err)
	}

	m.spreader.UpdateParams(plugin.Params{"haas": 0.0})

	err = errors.Join(
		plugin.Chain(m.bus, m.shaper, m.crusher, m.chorus.Input()),
		plugin.Chain(m.chorus.Output(), m.spreader.Input()),
		plugin.Chain(m.spreader.Output(), m.tremolo, m.out),
		m.lfo.Connect(m.pitchDepth),
		m.lfo.Connect(m.filterDepth),
		m.lfo.Connect(m.ampDepth),
		m.ampDepth.ConnectParam(m.tremolo.Gain()),
		m.lfo.Start(ctx.CurrentTime()),
	)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("instrument: melodic sampler: %w", err)
	}

	m.apply()

	return m, nil
}

func (m *MelodicSampler) Input() graph.Node  { return m.out }
func (m *MelodicSampler) Output() graph.Node { return m.out }

// LoadBuffer replaces the sample. Sounding voices keep the old buffer.
func (m *MelodicSampler) LoadBuffer(buf *graph.Buffer) { m.buffer = buf }

// Buffer returns the loaded sample.
func (m *MelodicSampler) Buffer() *graph.Buffer { return m.buffer }

// Voices returns the number of sounding voices.
func (m *MelodicSampler) Voices() int { return m.voices.len() }

// PlaybackRate returns the rate a voice on pitch plays the buffer at.
func (m *MelodicSampler) PlaybackRate(pitch int) float64 {
	root := m.NumIn("rootKey", 60, 0, 127)
	cents := m.NumIn("fineTune", 0, -100, 100)

	return math.Pow(2, (float64(pitch)-root+cents/100)/12)
}

func (m *MelodicSampler) envelope() Envelope {
	return Envelope{
		Attack:  m.NumIn("attack", 0.01, 0, 10),
		Decay:   m.NumIn("decay", 0.3, 0, 10),
		Sustain: m.NumIn("sustain", 0.5, 0, 1),
		Release: m.NumIn("release", 0.5, 0, 10),
	}
}

// TriggerAttack starts a voice for pitch at when. Without a loaded buffer
// it does nothing.
func (m *MelodicSampler) TriggerAttack(pitch int, velocity, when float64) {
	if m.buffer == nil || m.buffer.Frames() == 0 {
		return
	}

	ctx := m.Ctx
	velocity = core.Clamp(velocity, 0, 1)
	rate := m.PlaybackRate(pitch)

	src := graph.NewBufferSource(ctx, m.buffer)
	if glide := m.NumIn("glide", 0.05, 0, 5); glide > 0 && len(m.voices.held) > 0 && m.lastRate > 0 {
		src.PlaybackRate().SetValueAtTime(m.lastRate, when)
		src.PlaybackRate().LinearRampToValueAtTime(rate, when+glide)
	} else {
		src.PlaybackRate().SetValue(rate)
	}

	m.lastRate = rate
	if m.Flag("loop", true) {
		dur := m.buffer.Duration()
		start := m.NumIn("loopStart", 0, 0, 1) * dur
		end := m.NumIn("loopEnd", 1, 0, 1) * dur
		if end <= start {
			end = 0
		}

		src.SetLoop(true, start, end)
	}

	cutoff := m.NumIn("filterCutoff", 20000, 20, 20000)
	cutoff *= 1 - m.NumIn("velocityToFilter", 0.5, 0, 1)*(1-velocity)
	filter := graph.NewBiquadFilter(ctx, graph.Lowpass)
	filter.Frequency().SetValue(math.Max(cutoff, 20))
	filter.Q().SetValue(0.707 + m.NumIn("filterRes", 0, 0, 1)*14)
	env := graph.NewGain(ctx)
	env.Gain().SetValue(0)

	v := &voice{key: pitch, src: src, env: env, nodes: []graph.Node{src, filter, env}, envelope: m.envelope()}
	err := errors.Join(
		plugin.Chain(src, filter, env, m.bus),
		m.pitchDepth.ConnectParam(src.Detune()),
		m.filterDepth.ConnectParam(filter.Frequency()),
		src.Start(when, 0, 0),
	)
	if err != nil {
		v.close()
		return
	}

	v.gate = v.envelope.open(env.Gain(), velocity, when)
	m.voices.add(v, true, when)
}

// TriggerRelease releases the voice held on pitch.
func (m *MelodicSampler) TriggerRelease(pitch int, when float64) {
	m.voices.release(pitch, when)
}

// ReleaseAll releases every held voice.
func (m *MelodicSampler) ReleaseAll(when float64) {
	m.voices.releaseAll(when)
}

// StopAll silences every voice.
func (m *MelodicSampler) StopAll(when float64) {
	m.voices.stopAll(when)
}

func (m *MelodicSampler) UpdateParams(update plugin.Params) {
	m.Merge(update)
	m.apply()
}

func (m *MelodicSampler) apply() {
	if sat := m.NumIn("saturation", 0, 0, 1); sat != m.saturation {
		m.saturation = sat
		if sat == 0 {
			m.shaper.SetCurve(nil)
		} else {
			m.shaper.SetCurve(effects.SaturationCurve("tape", sat, 2048))
		}
	}

	if crush := m.NumIn("bitCrush", 0, 0, 1); crush > 0 {
		m.crushSteps = math.Exp2(math.Round(16 - crush*12))
	} else {
		m.crushSteps = 0
	}

	chorus := m.NumIn("chorus", 0, 0, 1)
	m.chorus.UpdateParams(plugin.Params{plugin.EnabledKey: chorus > 0, "mix": chorus * 0.5})
	m.spreader.UpdateParams(plugin.Params{"width": m.NumIn("width", 0.5, 0, 1) * 2})

	m.Ramp(m.lfo.Frequency(), m.NumIn("lfoRate", 4, 0.01, 30))
	amount := m.NumIn("lfoAmount", 0, 0, 1)
	var pitch, filter, amp float64
	switch strings.ToUpper(m.Str("lfoDest", LFOPitch)) {
	case LFOFilter:
		filter = amount * m.NumIn("filterCutoff", 20000, 20, 20000) * 0.5
	case LFOAmp:
		amp = amount * 0.5
	default:
		pitch = amount * 100
	}

	m.Ramp(m.pitchDepth.Gain(), pitch)
	m.Ramp(m.filterDepth.Gain(), filter)
	m.Ramp(m.ampDepth.Gain(), amp)
	m.Ramp(m.tremolo.Gain(), 1-amp)

	if !m.Enabled() {
		m.ApplyBypassState()
		return
	}

	m.Ramp(m.out.Gain(), m.NumIn("volume", 1, 0, 2))
}

// ApplyBypassState mutes the instrument.
func (m *MelodicSampler) ApplyBypassState() {
	m.Ramp(m.out.Gain(), 0)
}

func (m *MelodicSampler) crush(in [][graph.Channels][]float64, out [graph.Channels][]float64, _ float64) {
	steps := m.crushSteps
	for ch := range out {
		if steps == 0 {
			copy(out[ch], in[0][ch])
			continue
		}

		for i, x := range in[0][ch] {
			out[ch][i] = math.Round(x*steps) / steps
		}
	}
}

func (m *MelodicSampler) Close() {
	m.voices.closeAll()
	if m.chorus != nil {
		m.chorus.Close()
	}

	if m.spreader != nil {
		m.spreader.Close()
	}

	plugin.CloseAll(m.bus, m.shaper, m.crusher, m.tremolo, m.out, m.lfo, m.pitchDepth, m.filterDepth, m.ampDepth)
}
