package instrument

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

// DefaultPadCount is the number of pads a new drum rack carries.
const DefaultPadCount = 30

// ErrUnknownPad is returned for a pad ID the rack does not have.
var ErrUnknownPad = errors.New("instrument: unknown pad")

// padChannel is the fixed per-pad mixer strip: level then pan.
type padChannel struct {
	level  *graph.Gain
	pan    *graph.StereoPanner
	buffer *graph.Buffer
}

// DrumRack triggers one sample per pad, selected by the pad's MIDI note.
// Each pad has its own level and pan; a soloed pad silences every pad that
// is not soloed.
type DrumRack struct {
	plugin.Base
	pads     []plugin.Pad
	channels map[int]*padChannel
	out      *graph.Gain
	voices   *voicePool
	hits     int
}

// NewDrumRack returns a rack with the default pads.
func NewDrumRack(ctx *graph.Context) (*DrumRack, error) {
	r := &DrumRack{
		Base:     plugin.NewBase(ctx, plugin.KindDrumRack, plugin.Params{"volume": 1.0}),
		channels: make(map[int]*padChannel),
		out:      graph.NewGain(ctx),
		voices:   newVoicePool(),
	}

	r.UpdatePads(plugin.DefaultPads(DefaultPadCount))
	r.apply()

	return r, nil
}

func (r *DrumRack) Input() graph.Node  { return r.out }
func (r *DrumRack) Output() graph.Node { return r.out }

// Pads returns a copy of the pad configuration.
func (r *DrumRack) Pads() []plugin.Pad { return slices.Clone(r.pads) }

// Voices returns the number of sounding hits.
func (r *DrumRack) Voices() int { return r.voices.len() }

// UpdatePads replaces the pad configuration. Loaded samples stay with their
// pad IDs.
func (r *DrumRack) UpdatePads(pads []plugin.Pad) {
	r.pads = slices.Clone(pads)
	soloed := slices.ContainsFunc(pads, func(p plugin.Pad) bool { return p.Solo })
	for _, p := range r.pads {
		ch, err := r.channel(p.ID)
		if err != nil {
			continue
		}

		r.Ramp(ch.level.Gain(), padLevel(p, soloed))
		r.Ramp(ch.pan.Pan(), core.Clamp(p.Pan, -1, 1))
	}
}

func padLevel(p plugin.Pad, soloed bool) float64 {
	if p.Muted || (soloed && !p.Solo) {
		return 0
	}

	return core.Clamp(p.Volume, 0, 2)
}

func (r *DrumRack) channel(id int) (*padChannel, error) {
	if ch, ok := r.channels[id]; ok {
		return ch, nil
	}

	ch := &padChannel{level: graph.NewGain(r.Ctx), pan: graph.NewStereoPanner(r.Ctx)}
	if err := plugin.Chain(ch.level, ch.pan, r.out); err != nil {
		plugin.CloseAll(ch.level, ch.pan)
		return nil, err
	}

	r.channels[id] = ch

	return ch, nil
}

func (r *DrumRack) pad(id int) (plugin.Pad, bool) {
	i := slices.IndexFunc(r.pads, func(p plugin.Pad) bool { return p.ID == id })
	if i < 0 {
		return plugin.Pad{}, false
	}

	return r.pads[i], true
}

// LoadPadSample assigns buf to the pad with the given ID.
func (r *DrumRack) LoadPadSample(padID int, buf *graph.Buffer) error {
	if _, ok := r.pad(padID); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPad, padID)
	}

	ch, err := r.channel(padID)
	if err != nil {
		return err
	}

	ch.buffer = buf

	return nil
}

// TriggerPad plays the pad mapped to pitch. It reports whether a pad with
// a loaded sample was found and is audible.
func (r *DrumRack) TriggerPad(pitch int, velocity, when float64) bool {
	soloed := slices.ContainsFunc(r.pads, func(p plugin.Pad) bool { return p.Solo })
	for _, p := range r.pads {
		if p.MIDINote != pitch {
			continue
		}

		ch := r.channels[p.ID]
		if ch == nil || ch.buffer == nil || ch.buffer.Frames() == 0 || padLevel(p, soloed) == 0 {
			return false
		}

		return r.play(ch, velocity, when)
	}

	return false
}

func (r *DrumRack) play(ch *padChannel, velocity, when float64) bool {
	src := graph.NewBufferSource(r.Ctx, ch.buffer)
	env := graph.NewGain(r.Ctx)
	env.Gain().SetValue(core.Clamp(velocity, 0, 1))
	r.hits++
	v := &voice{key: r.hits, src: src, env: env, nodes: []graph.Node{src, env}, envelope: Envelope{Sustain: 1, Release: 0.05}}
	if err := errors.Join(plugin.Chain(src, env, ch.level), src.Start(when, 0, 0)); err != nil {
		v.close()
		return false
	}

	v.gate = gate{start: when, attackEnd: when, peak: velocity}
	r.voices.add(v, false, when)

	return true
}

// StopAll silences every hit.
func (r *DrumRack) StopAll(when float64) {
	r.voices.stopAll(when)
}

func (r *DrumRack) UpdateParams(update plugin.Params) {
	r.Merge(update)
	r.apply()
}

func (r *DrumRack) apply() {
	if !r.Enabled() {
		r.ApplyBypassState()
		return
	}

	r.Ramp(r.out.Gain(), r.NumIn("volume", 1, 0, 2))
}

// ApplyBypassState mutes the instrument.
func (r *DrumRack) ApplyBypassState() {
	r.Ramp(r.out.Gain(), 0)
}

func (r *DrumRack) Close() {
	r.voices.closeAll()
	for id, ch := range r.channels {
		plugin.CloseAll(ch.level, ch.pan)
		delete(r.channels, id)
	}

	r.out.Close()
}
