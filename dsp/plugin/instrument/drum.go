package instrument

import (
	"errors"
	"math"
	"slices"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

// DrumSampler plays one sample as a one-shot per hit. Hits can be trimmed,
// transposed, reversed and normalized, and with a non-zero choke group a
// new hit cuts off the previous one.
type DrumSampler struct {
	plugin.Base
	buffer   *graph.Buffer
	reversed *graph.Buffer
	peak     float64

	out    *graph.Gain
	voices *voicePool
	hits   int
}

// NewDrumSampler returns an empty drum sampler.
func NewDrumSampler(ctx *graph.Context) (*DrumSampler, error) {
	d := &DrumSampler{
		Base: plugin.NewBase(ctx, plugin.KindDrumSampler, plugin.Params{
			"gain": 0.0, "transpose": 0.0, "fineTune": 0.0, "sampleStart": 0.0, "sampleEnd": 1.0,
			"attack": 0.005, "hold": 0.05, "decay": 0.2, "sustain": 0.0, "release": 0.1,
			"cutoff": 20000.0, "resonance": 0.0, "pan": 0.0, "velocitySens": 0.8,
			"reverse": false, "normalize": false, "chokeGroup": 1,
		}),
		out:    graph.NewGain(ctx),
		voices: newVoicePool(),
	}

	d.apply()

	return d, nil
}

func (d *DrumSampler) Input() graph.Node  { return d.out }
func (d *DrumSampler) Output() graph.Node { return d.out }

// LoadBuffer replaces the sample.
func (d *DrumSampler) LoadBuffer(buf *graph.Buffer) {
	d.buffer = buf
	d.reversed = nil
	d.peak = 0
	if buf == nil {
		return
	}

	for _, ch := range buf.Channels {
		for _, x := range ch {
			d.peak = math.Max(d.peak, math.Abs(x))
		}
	}
}

// Buffer returns the loaded sample.
func (d *DrumSampler) Buffer() *graph.Buffer { return d.buffer }

// Voices returns the number of sounding hits.
func (d *DrumSampler) Voices() int { return d.voices.len() }

func (d *DrumSampler) playBuffer() *graph.Buffer {
	if !d.Flag("reverse", false) {
		return d.buffer
	}

	if d.reversed == nil {
		rev := &graph.Buffer{SampleRate: d.buffer.SampleRate, Channels: make([][]float64, len(d.buffer.Channels))}
		for i, ch := range d.buffer.Channels {
			r := slices.Clone(ch)
			slices.Reverse(r)
			rev.Channels[i] = r
		}

		d.reversed = rev
	}

	return d.reversed
}

// HitGain returns the linear level of a hit at velocity.
func (d *DrumSampler) HitGain(velocity float64) float64 {
	sens := d.NumIn("velocitySens", 0.8, 0, 1)
	g := core.DBToLinear(d.NumIn("gain", 0, -60, 24)) * (1 - sens*(1-core.Clamp(velocity, 0, 1)))
	if d.Flag("normalize", false) && d.peak > 0 {
		g /= d.peak
	}

	return g
}

// Trigger plays one hit at when.
func (d *DrumSampler) Trigger(velocity, when float64) {
	if d.buffer == nil || d.buffer.Frames() == 0 {
		return
	}

	ctx := d.Ctx
	if d.Num("chokeGroup", 1) > 0 {
		d.voices.each(func(v *voice) {
			if !v.released {
				v.stop(when)
			}
		})
	}

	buf := d.playBuffer()
	dur := buf.Duration()
	start := d.NumIn("sampleStart", 0, 0, 1)
	end := math.Max(d.NumIn("sampleEnd", 1, 0, 1), start)
	if d.Flag("reverse", false) {
		start, end = 1-end, 1-start
	}

	rate := core.SemitoneRatio(d.NumIn("transpose", 0, -48, 48) + d.NumIn("fineTune", 0, -100, 100)/100)

	src := graph.NewBufferSource(ctx, buf)
	src.PlaybackRate().SetValue(rate)
	filter := graph.NewBiquadFilter(ctx, graph.Lowpass)
	filter.Frequency().SetValue(d.NumIn("cutoff", 20000, 20, 20000))
	filter.Q().SetValue(0.707 + d.NumIn("resonance", 0, 0, 1)*14)
	pan := graph.NewStereoPanner(ctx)
	pan.Pan().SetValue(d.NumIn("pan", 0, -1, 1))
	env := graph.NewGain(ctx)
	env.Gain().SetValue(0)

	envelope := Envelope{
		Attack:  d.NumIn("attack", 0.005, 0, 5),
		Hold:    d.NumIn("hold", 0.05, 0, 5),
		Decay:   d.NumIn("decay", 0.2, 0, 10),
		Sustain: d.NumIn("sustain", 0, 0, 1),
		Release: d.NumIn("release", 0.1, 0, 10),
	}

	d.hits++
	v := &voice{key: d.hits, src: src, env: env, nodes: []graph.Node{src, filter, pan, env}, envelope: envelope}
	err := errors.Join(
		plugin.Chain(src, env, filter, pan, d.out),
		src.Start(when, start*dur, (end-start)*dur),
	)
	if err != nil {
		v.close()
		return
	}

	v.gate = envelope.open(env.Gain(), d.HitGain(velocity), when)
	d.voices.add(v, false, when)
}

// Stop releases every sounding hit.
func (d *DrumSampler) Stop(when float64) {
	d.voices.each(func(v *voice) { v.release(when) })
}

// StopAll silences every hit.
func (d *DrumSampler) StopAll(when float64) {
	d.voices.stopAll(when)
}

func (d *DrumSampler) UpdateParams(update plugin.Params) {
	d.Merge(update)
	d.apply()
}

func (d *DrumSampler) apply() {
	if !d.Enabled() {
		d.ApplyBypassState()
		return
	}

	d.Ramp(d.out.Gain(), 1)
}

// ApplyBypassState mutes the instrument.
func (d *DrumSampler) ApplyBypassState() {
	d.Ramp(d.out.Gain(), 0)
}

func (d *DrumSampler) Close() {
	d.voices.closeAll()
	d.out.Close()
}
