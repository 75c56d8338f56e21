package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

func dcBuffer(seconds, v float64) *graph.Buffer {
	ch := make([]float64, int(seconds*testRate))
	for i := range ch {
		ch[i] = v
	}

	return &graph.Buffer{SampleRate: testRate, Channels: [][]float64{ch}}
}

// rampBuffer holds its own position in seconds at every frame.
func rampBuffer(seconds float64) *graph.Buffer {
	ch := make([]float64, int(seconds*testRate))
	for i := range ch {
		ch[i] = float64(i) / testRate
	}

	return &graph.Buffer{SampleRate: testRate, Channels: [][]float64{ch}}
}

func audioClip(id string, start, dur float64, buf *graph.Buffer) Clip {
	return Clip{ID: id, Name: id, Type: ClipAudio, Start: start, Duration: dur, Buffer: buf}
}

func nonZero(frames []float64) (first, count int, peak float64) {
	first = -1
	for i, v := range frames {
		if v == 0 {
			continue
		}

		if first < 0 {
			first = i
		}

		count++
		peak = max(peak, v)
	}

	return first, count, peak
}

func TestClipOnWindowEdgePlaysOnce(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	track := audioTrack("a")
	track.Clips = []Clip{audioClip("c1", 0.1, 0.2, dcBuffer(1, 1))}
	all := []Track{track}
	e.UpdateTrack(track, all)
	tr := entry(t, e, "a")
	got := tap(t, e, func() graph.Node { return tr.recTap })

	e.StartPlayback(0, all)
	e.Advance(0.6)

	first, count, peak := nonZero(*got)
	// Project 0.1 s sounds at the 50 ms start latency plus 0.1 s.
	assert.InDelta(t, 2400, first, 2)
	assert.InDelta(t, 3200, count, 2)
	assert.InDelta(t, 1.0, peak, 1e-6)
	assert.Zero(t, e.ActiveSources())
}

func TestPlaybackEntersClipMidway(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	track := audioTrack("a")
	track.Clips = []Clip{audioClip("c1", 0, 1, rampBuffer(1))}
	all := []Track{track}
	e.UpdateTrack(track, all)
	tr := entry(t, e, "a")
	got := tap(t, e, func() graph.Node { return tr.recTap })

	e.SeekTo(0.5, all, true)
	assert.True(t, e.IsPlaying())
	assert.Equal(t, 0.5, e.CurrentTime())
	e.Advance(0.8)

	first, count, _ := nonZero(*got)
	require.GreaterOrEqual(t, first, 0)
	assert.InDelta(t, 800, first, 2)
	assert.InDelta(t, 0.5, (*got)[first], 1e-3)
	assert.InDelta(t, 8000, count, 2)
}

func TestClipFades(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	track := audioTrack("a")
	clip := audioClip("c1", 0, 0.5, dcBuffer(1, 1))
	clip.FadeIn = 0.1
	clip.FadeOut = 0.1
	clip.Gain = 0.8
	track.Clips = []Clip{clip}
	all := []Track{track}
	e.UpdateTrack(track, all)
	tr := entry(t, e, "a")
	got := tap(t, e, func() graph.Node { return tr.recTap })

	e.StartPlayback(0, all)
	e.Advance(0.7)

	// The clip sounds from audio 0.05 s to 0.55 s.
	frame := func(sec float64) float64 { return (*got)[int(sec*testRate)] }
	assert.InDelta(t, 0.4, frame(0.1), 0.01)
	assert.InDelta(t, 0.8, frame(0.3), 1e-6)
	assert.InDelta(t, 0.4, frame(0.5), 0.01)
	assert.Zero(t, frame(0.6))
}

func TestSourcesEndNaturally(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	e.SetTempo(120)
	track := audioTrack("a")
	track.Clips = []Clip{audioClip("c1", 0, 2, dcBuffer(2, 0.5))}
	all := []Track{track}
	e.UpdateTrack(track, all)

	e.StartPlayback(0, all)
	e.Advance(1)
	assert.Equal(t, 1, e.ActiveSources())
	e.Advance(1.5)
	assert.Zero(t, e.ActiveSources())
	assert.True(t, e.IsPlaying())
}

func TestStopAllIsIdempotent(t *testing.T) {
	t.Parallel()

	e, hook := newTestEngine(t)
	track := audioTrack("a")
	track.Clips = []Clip{audioClip("c1", 0, 2, dcBuffer(2, 0.5))}
	all := []Track{track}
	e.UpdateTrack(track, all)
	tr := entry(t, e, "a")
	got := tap(t, e, func() graph.Node { return tr.recTap })

	e.StopAll()
	assert.False(t, hasMessage(hook, "Playback stopped"))

	e.StartPlayback(0, all)
	e.Advance(0.5)
	require.Equal(t, 1, e.ActiveSources())

	e.StopAll()
	e.StopAll()
	assert.False(t, e.IsPlaying())
	assert.Zero(t, e.ActiveSources())
	stops := 0
	for _, le := range hook.AllEntries() {
		if le.Message == "Playback stopped" {
			stops++
		}
	}

	assert.Equal(t, 1, stops)

	n := len(*got)
	e.Advance(0.2)
	_, count, _ := nonZero((*got)[n:])
	assert.Zero(t, count)
}

func TestCurrentTime(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	assert.Zero(t, e.CurrentTime())

	e.StartPlayback(2, nil)
	assert.Equal(t, 2.0, e.CurrentTime(), "position holds during the start latency")
	e.Advance(1.05)
	assert.InDelta(t, 3.0, e.CurrentTime(), 0.02)

	e.SeekTo(4, nil, false)
	assert.False(t, e.IsPlaying())
	assert.Equal(t, 4.0, e.CurrentTime())

	e.SeekTo(-1, nil, false)
	assert.Zero(t, e.CurrentTime())
}

func TestMutedTrackSchedulesNothing(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	track := audioTrack("a")
	track.Muted = true
	track.Clips = []Clip{audioClip("c1", 0, 1, dcBuffer(1, 1))}
	all := []Track{track}
	e.UpdateTrack(track, all)
	e.StartPlayback(0, all)
	e.Advance(0.3)
	assert.Zero(t, e.ActiveSources())
}

func TestDeleteTrackStopsItsSources(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	a := audioTrack("a")
	a.Clips = []Clip{audioClip("ca", 0, 1, dcBuffer(1, 1))}
	b := audioTrack("b")
	b.Clips = []Clip{audioClip("cb", 0, 1, dcBuffer(1, 1))}
	all := []Track{a, b}
	e.UpdateTrack(a, all)
	e.UpdateTrack(b, all)
	e.StartPlayback(0, all)
	e.Advance(0.2)
	require.Equal(t, 2, e.ActiveSources())

	e.DeleteTrack("a")
	assert.Equal(t, 1, e.ActiveSources())
	e.Advance(0.2)
	assert.Equal(t, 1, e.ActiveSources())
}

type noteEvent struct {
	on    bool
	pitch int
	when  float64
}

// recordingSynth logs note events instead of sounding them.
type recordingSynth struct {
	plugin.Base
	out        *graph.Gain
	events     []noteEvent
	releaseAll int
}

func newRecordingSynth(ctx *graph.Context) (*recordingSynth, error) {
	return &recordingSynth{Base: plugin.NewBase(ctx, plugin.KindSynth, nil), out: graph.NewGain(ctx)}, nil
}

func (s *recordingSynth) Input() graph.Node                 { return s.out }
func (s *recordingSynth) Output() graph.Node                { return s.out }
func (s *recordingSynth) UpdateParams(update plugin.Params) { s.Merge(update) }
func (s *recordingSynth) ApplyBypassState()                 {}
func (s *recordingSynth) Close()                            { s.out.Close() }

func (s *recordingSynth) TriggerAttack(pitch int, _, when float64) {
	s.events = append(s.events, noteEvent{on: true, pitch: pitch, when: when})
}

func (s *recordingSynth) TriggerRelease(pitch int, when float64) {
	s.events = append(s.events, noteEvent{pitch: pitch, when: when})
}

func (s *recordingSynth) ReleaseAll(float64) { s.releaseAll++ }

func TestNotesOnWindowEdgesTriggerOnce(t *testing.T) {
	t.Parallel()

	var synth *recordingSynth
	r := plugin.NewRegistry()
	r.MustRegister(plugin.KindSynth, func(ctx *graph.Context) (plugin.Node, error) {
		var err error
		synth, err = newRecordingSynth(ctx)

		return synth, err
	})
	e, _ := newTestEngine(t, WithRegistry(r))

	track := Track{ID: "m", Type: TrackMIDI, Volume: 1, Clips: []Clip{{
		ID: "n1", Type: ClipMIDI, Start: 0.1, Duration: 1,
		Notes: []Note{
			{Pitch: 60, Velocity: 0.9, Start: 0, Duration: 0.1},
			{Pitch: 62, Velocity: 0.9, Start: 0.2, Duration: 0.1},
		},
	}}}
	all := []Track{track}
	e.UpdateTrack(track, all)
	require.NotNil(t, synth)

	e.StartPlayback(0, all)
	e.Advance(1.5)

	want := []noteEvent{
		{on: true, pitch: 60, when: 0.15},
		{pitch: 60, when: 0.25},
		{on: true, pitch: 62, when: 0.35},
		{pitch: 62, when: 0.45},
	}

	require.Len(t, synth.events, len(want))
	for i, w := range want {
		assert.Equal(t, w.on, synth.events[i].on, "event %d", i)
		assert.Equal(t, w.pitch, synth.events[i].pitch, "event %d", i)
		assert.InDelta(t, w.when, synth.events[i].when, 1e-9, "event %d", i)
	}

	e.StopAll()
	assert.Equal(t, 1, synth.releaseAll)
}

func TestRenderDrivesSchedulerWithoutTicker(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	track := audioTrack("a")
	track.Clips = []Clip{audioClip("c1", 0, 0.2, dcBuffer(0.2, 0.5))}
	all := []Track{track}
	e.UpdateTrack(track, all)
	e.StartPlayback(0, all)

	out := make([]float32, 2*int(0.5*testRate))
	e.Render(out)

	loud := 0
	for i := 0; i < len(out); i += 2 {
		if out[i] > 0.4 {
			loud++
		}
	}

	assert.InDelta(t, 3200, loud, 200)
	assert.Zero(t, e.ActiveSources())
}
