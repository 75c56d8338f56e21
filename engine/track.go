package engine

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

// maxRouteDepth bounds the lazy construction of routing targets.
const maxRouteDepth = 16

// trackEntry is the live graph of one track. The fixed stages are allocated
// once and wired volume -> panner -> analyser -> output; a rebuild only
// rewires the input stage's outgoing edges, the plugin chain, the chain
// tail and the output edge.
type trackEntry struct {
	id  string
	typ TrackType

	input         *graph.Gain
	recTap        *graph.Gain
	inputAnalyser *graph.Analyser
	volume        *graph.Gain
	panner        *graph.StereoPanner
	analyser      *graph.Analyser
	output        *graph.Gain

	plugins map[string]plugin.Node

	// Instruments are built lazily per kind and kept when the active kind
	// changes, so switching back restores their state.
	instruments   map[plugin.Kind]plugin.Node
	instrumentIDs map[string]plugin.Kind
	active        plugin.Kind
	sample        *graph.Buffer

 	target string

	// Mix state from the last rebuild. Solo is applied engine-wide.
	level float64
	muted bool
	solo  bool

	live      *liveInput
	acquiring *acquisition
}

func newTrackEntry(ctx *graph.Context, track Track) (*trackEntry, error) {
	t := &trackEntry{
		id:            track.ID,
		typ:           track.Type,
		input:         graph.NewGain(ctx),
		recTap:        graph.NewGain(ctx),
		volume:        graph.NewGain(ctx),
		panner:        graph.NewStereoPanner(ctx),
		output:        graph.NewGain(ctx),
		plugins:       make(map[string]plugin.Node),
		instruments:   make(map[plugin.Kind]plugin.Node),
		instrumentIDs: make(map[string]plugin.Kind),
	}

	var err error
	if t.inputAnalyser, err = graph.NewAnalyser(ctx, inputFFTSize, inputSmoothing); err != nil {
		t.close()
		return nil, err
	}

	if t.analyser, err = graph.NewAnalyser(ctx, trackFFTSize, meterSmoothing); err != nil {
		t.close()
		return nil, err
	}

	if err := plugin.Chain(t.volume, t.panner, t.analyser, t.output); err != nil {
		t.close()
		return nil, err
	}

	return t, nil
}

// pluginNode resolves a plugin id to an effect or instrument node.
func (t *trackEntry) pluginNode(id string) plugin.Node {
	if n, ok := t.plugins[id]; ok {
		return n
	}

	if kind, ok := t.instrumentIDs[id]; ok {
		return t.instruments[kind]
	}

	return nil
}

// activeInstrument returns the instrument note events are routed to.
func (t *trackEntry) activeInstrument() plugin.Node {
	return t.instruments[t.active]
}

func (t *trackEntry) close() {
	if t.acquiring != nil {
		t.acquiring.cancel()
		t.acquiring = nil
	}

	t.detachInput()
	for id, n := range t.plugins {
		n.Close()
		delete(t.plugins, id)
	}

	for kind, n := range t.instruments {
		n.Close()
		delete(t.instruments, kind)
	}

	plugin.CloseAll(t.input, t.recTap, t.volume, t.panner, t.output)
	for _, a := range []*graph.Analyser{t.inputAnalyser, t.analyser} {
		if a != nil {
			a.Close()
		}
	}
}

// UpdateTrack rebuilds the track's graph from its current description.
// allTracks is the full track list, used for routing and solo. The call is
// idempotent; connection failures are logged and do not abort the rebuild.
func (e *Engine) UpdateTrack(track Track, allTracks []Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.updateTrackLocked(track, allTracks, 0)
	e.applyMixLocked()
	if e.sched.playing && allTracks != nil {
		e.sched.tracks = allTracks
	}
}

func (e *Engine) updateTrackLocked(track Track, allTracks []Track, depth int) *trackEntry {
	log := e.log.WithFields(logrus.Fields{
		"function": "UpdateTrack",
		"track_id": track.ID,
	})

	t, ok := e.tracks[track.ID]
	if !ok {
		var err error
		if t, err = newTrackEntry(e.ctx, track); err != nil {
			log.WithError(err).Error("Track graph allocation failed")
			return nil
		}

		e.tracks[track.ID] = t
		log.Debug("Track graph created")
	}

	t.typ = track.Type

	e.configureInstruments(t, track, log)
	e.reconcileInput(t, track)

	t.input.Disconnect()
	e.connect(log, t.input, t.recTap, "recording tap")
	e.connect(log, t.input, t.inputAnalyser, "input analyser")
	head := e.rebuildChain(t, track, log)
	e.connect(log, head, t.volume, "chain tail")

	t.level, t.muted, t.solo = track.Volume, track.Muted, track.Solo
	for _, o := range allTracks {
		if other, ok := e.tracks[o.ID]; ok && o.ID != track.ID {
			other.solo = o.Solo
		}
	}

	e.ramp(t.panner.Pan(), track.Pan)

	target := e.resolveTarget(track, allTracks, log)
	if target != MasterID {
		if _, ok := e.tracks[target]; !ok && depth < maxRouteDepth {
			if dest, found := findTrack(allTracks, target); found {
				e.updateTrackLocked(dest, allTracks, depth+1)
			}
		}

		if _, ok := e.tracks[target]; !ok {
			target = MasterID
		}
	}

	e.routeLocked(t, target)

	if track.Type == TrackDrumRack && len(track.DrumPads) > 0 {
		if rack, ok := t.instruments[plugin.KindDrumRack].(plugin.Rack); ok {
			rack.UpdatePads(track.DrumPads)
		}
	}

	return t
}

// configureInstruments resolves the active instrument kind, builds it on
// first use and pushes every instrument descriptor's params.
func (e *Engine) configureInstruments(t *trackEntry, track Track, log logrus.FieldLogger) {
	clear(t.instrumentIDs)
	t.active = track.Type.defaultInstrument()
	first := make(map[plugin.Kind]plugin.Descriptor)
	resolved := false
	for _, d := range track.Plugins {
		kind := d.Kind.Normalize()
		if !kind.IsInstrument() {
			continue
		}

		t.instrumentIDs[d.ID] = kind
		if _, dup := first[kind]; !dup {
			first[kind] = d
		}

		if !resolved {
			t.active = kind
			resolved = true
		}
	}

	if t.active != "" && t.instruments[t.active] == nil {
		desc, ok := first[t.active]
		if !ok {
			desc = plugin.Descriptor{Kind: t.active, Enabled: true}
		}

		n, err := e.registry.Create(e.ctx, desc)
		if err != nil {
			log.WithError(err).WithField("kind", t.active).Warn("Instrument construction failed")
		} else {
			e.connect(log, n.Output(), t.input, "instrument")
			if sl, ok := n.(plugin.SampleLoader); ok && t.sample != nil {
				sl.LoadBuffer(t.sample)
			}

			t.instruments[t.active] = n
		}
	}

	for kind, d := range first {
		if n := t.instruments[kind]; n != nil {
			n.UpdateParams(d.EffectiveParams())
		}
	}
}

// rebuildChain walks the plugin list and wires enabled effects in order,
// returning the chain tail.
func (e *Engine) rebuildChain(t *trackEntry, track Track, log logrus.FieldLogger) graph.Node {
	for _, n := range t.plugins {
		n.Output().Disconnect()
	}

	present := make(map[string]bool, len(track.Plugins))
	var head graph.Node = t.input
	for _, d := range track.Plugins {
		if d.Kind.Normalize().IsInstrument() {
			continue
		}

		present[d.ID] = true
		n, ok := t.plugins[d.ID]
		switch {
		case ok:
			n.UpdateParams(d.EffectiveParams())
		case !d.Enabled:
			continue
		default:
			created, err := e.registry.Create(e.ctx, d)
			if err != nil {
				entry := log.WithError(err).WithFields(logrus.Fields{"plugin_id": d.ID, "kind": d.Kind})
				if errors.Is(err, plugin.ErrUnknownKind) {
					entry.Warn("Unknown plugin kind, stage omitted")
				} else {
					entry.Error("Plugin construction failed, stage omitted")
				}

				continue
			}

			t.plugins[d.ID] = created
			n = created
		}

		if !d.Enabled {
			continue
		}

		if !e.connect(log, head, n.Input(), "plugin "+d.ID) {
			continue
		}

		head = n.Output()
	}

	for id, n := range t.plugins {
		if !present[id] {
			n.Close()
			delete(t.plugins, id)
		}
	}

	return head
}

// routeLocked points the track's output stage at target.
func (e *Engine) routeLocked(t *trackEntry, target string) {
	t.output.Disconnect()
	var dest graph.Node = e.master.sum
	if target != MasterID {
		if dt, ok := e.tracks[target]; ok {
			dest = dt.input
		} else {
			target = MasterID
		}
	}

	e.connect(e.log.WithFields(logrus.Fields{"function": "route", "track_id": t.id}), t.output, dest, "output")
	t.target = target
}

// resolveTarget checks track's output target against both the listed and
// the live routing. A missing target, or one whose chain leads back to
// track, resolves to the master bus.
func (e *Engine) resolveTarget(track Track, allTracks []Track, log logrus.FieldLogger) string {
	target := track.OutputTrackID
	if target == "" || target == MasterID {
		return MasterID
	}

	_, listed := findTrack(allTracks, target)
	_, live := e.tracks[target]
	if !listed && !live {
		return MasterID
	}

	listedNext := func(id string) (string, bool) {
		if t, ok := findTrack(allTracks, id); ok {
			return t.OutputTrackID, true
		}

		return e.liveTarget(id)
	}

	if leadsTo(target, track.ID, listedNext) || leadsTo(target, track.ID, e.liveTarget) {
		log.WithField("target", target).Warn("Output routing would form a cycle, using master")
		return MasterID
	}

	return target
}

func (e *Engine) liveTarget(id string) (string, bool) {
	t, ok := e.tracks[id]
	if !ok {
		return "", false
	}

	return t.target, true
}

// leadsTo reports whether the routing chain from start reaches id. A chain
// that loops without reaching id also reports true.
func leadsTo(start, id string, next func(string) (string, bool)) bool {
	seen := make(map[string]bool)
	for cur := start; cur != "" && cur != MasterID; {
		if cur == id || seen[cur] {
			return true
		}

		seen[cur] = true
		n, ok := next(cur)
		if !ok {
			return false
		}

		cur = n
	}

	return false
}

func findTrack(tracks []Track, id string) (Track, bool) {
	for _, t := range tracks {
		if t.ID == id {
			return t, true
		}
	}

	return Track{}, false
}

// applyMixLocked ramps every track's volume from its mix state. Any
// soloed track silences the unsoloed ones; buses and sends are exempt.
func (e *Engine) applyMixLocked() {
	soloed := false
	for _, t := range e.tracks {
		if t.solo && !t.typ.soloExempt() {
			soloed = true
			break
		}
	}

	for _, t := range e.tracks {
		level := t.level
		if t.muted || (soloed && !t.solo && !t.typ.soloExempt()) {
			level = 0
		}

		if !core.NearlyEqual(t.volume.Gain().FinalValue(), level, 1e-9) {
			e.ramp(t.volume.Gain(), level)
		}
	}
}

// connect wires src into dst, logging instead of failing.
func (e *Engine) connect(log logrus.FieldLogger, src, dst graph.Node, what string) bool {
	if err := src.Connect(dst); err != nil {
		log.WithError(err).WithField("edge", what).Error("Connection failed")
		return false
	}

	return true
}

// ramp smooths a mix param to v.
func (e *Engine) ramp(p *graph.Param, v float64) {
	now := e.ctx.CurrentTime()
	tc := e.cfg.RampTimeConstant.Seconds()
	if tc <= 0 {
		p.SetValue(v)
		return
	}

	p.CancelScheduledValues(now)
	p.SetTargetAtTime(v, now, tc)
}
