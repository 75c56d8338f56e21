package instrument

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
	"github.com/cwbudde/algo-daw/internal/testutil"
)

const testRate = 16000

func testCtx() *graph.Context {
	return graph.NewContext(core.WithSampleRate(testRate), core.WithBlockSize(128))
}

// listen captures the left channel of n while the returned slice pointer is
// read by the test.
func listen(t *testing.T, ctx *graph.Context, n graph.Node) *[]float64 {
	t.Helper()
	var got []float64
	c := graph.NewCapture(ctx, func(frames []float32) {
		l, _ := testutil.Deinterleave(frames)
		got = append(got, l...)
	})
	if err := n.Connect(c); err != nil {
		t.Fatal(err)
	}

	return &got
}

func sineBuffer(t *testing.T, seconds float64) *graph.Buffer {
	t.Helper()
	frames := int(seconds * testRate)
	buf, err := graph.NewBuffer(2, frames, testRate)
	if err != nil {
		t.Fatal(err)
	}

	wave := testutil.Sine(440, testRate, 0.5, frames)
	copy(buf.Channels[0], wave)
	copy(buf.Channels[1], wave)

	return buf
}

func tail(x []float64, n int) []float64 {
	return x[max(len(x)-n, 0):]
}

func TestSynthVoiceLifecycle(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	s, err := NewSynth(ctx)
	if err != nil {
		t.Fatal(err)
	}

	defer s.Close()
	got := listen(t, ctx, s.Output())

	s.TriggerAttack(69, 1, 0.01)
	ctx.Advance(0.2)
	if n := s.Voices(); n != 1 {
		t.Fatalf("Voices = %d, want 1", n)
	}

	testutil.RequireAudible(t, tail(*got, 800), 0.05)

	s.TriggerRelease(69, ctx.CurrentTime())
	ctx.Advance(0.5)
	if n := s.Voices(); n != 0 {
		t.Fatalf("Voices after release = %d, want 0", n)
	}

	testutil.RequireSilent(t, tail(*got, 800), 1e-6)
}

func TestSynthRetriggerReplacesHeldVoice(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	s, _ := NewSynth(ctx)
	defer s.Close()

	s.TriggerAttack(60, 0.8, 0)
	s.TriggerAttack(60, 0.8, 0.05)
	if n := s.Voices(); n != 2 {
		t.Fatalf("Voices = %d, want 2 (old one releasing)", n)
	}

	ctx.Advance(0.5)
	if n := s.Voices(); n != 1 {
		t.Fatalf("Voices = %d, want 1 after the replaced voice released", n)
	}

	s.TriggerRelease(60, ctx.CurrentTime())
	ctx.Advance(0.5)
	if n := s.Voices(); n != 0 {
		t.Fatalf("Voices = %d, want 0", n)
	}
}

func TestSynthReleaseAllAndStopAll(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		end  func(s *Synth, now float64)
		wait float64
	}{
		{"release", func(s *Synth, now float64) { s.ReleaseAll(now) }, 0.5},
		{"stop", func(s *Synth, now float64) { s.StopAll(now) }, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := testCtx()
			s, _ := NewSynth(ctx)
			defer s.Close()
			for _, p := range []int{60, 64, 67} {
				s.TriggerAttack(p, 1, 0)
			}

			ctx.Advance(0.1)
			tt.end(s, ctx.CurrentTime())
			ctx.Advance(tt.wait)
			if n := s.Voices(); n != 0 {
				t.Fatalf("Voices = %d, want 0", n)
			}
		})
	}
}

func TestInstrumentBypassMutes(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	s, _ := NewSynth(ctx)
	defer s.Close()
	got := listen(t, ctx, s.Output())
	s.TriggerAttack(57, 1, 0)
	s.UpdateParams(plugin.Params{plugin.EnabledKey: false})
	ctx.Advance(0.4)
	testutil.RequireSilent(t, tail(*got, 400), 1e-4)

	s.UpdateParams(plugin.Params{plugin.EnabledKey: true})
	ctx.Advance(0.2)
	testutil.RequireAudible(t, tail(*got, 400), 0.05)
}

func TestMelodicSamplerPlaybackRate(t *testing.T) {
	t.Parallel()

	m, err := NewMelodicSampler(testCtx())
	if err != nil {
		t.Fatal(err)
	}

	defer m.Close()

	tests := []struct {
		params plugin.Params
		pitch  int
		want   float64
	}{
		{nil, 60, 1},
		{nil, 72, 2},
		{nil, 48, 0.5},
		{plugin.Params{"rootKey": 57}, 69, 2},
		{plugin.Params{"rootKey": 60, "fineTune": 100.0}, 60, math.Pow(2, 1.0/12)},
	}

	for _, tt := range tests {
		m.UpdateParams(tt.params)
		if got := m.PlaybackRate(tt.pitch); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("PlaybackRate(%d) with %v = %v, want %v", tt.pitch, tt.params, got, tt.want)
		}
	}
}

func TestMelodicSamplerLoopsUntilReleased(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	m, err := NewMelodicSampler(ctx)
	if err != nil {
		t.Fatal(err)
	}

	defer m.Close()
	got := listen(t, ctx, m.Output())

	m.TriggerAttack(60, 1, 0)
	if m.Voices() != 0 {
		t.Fatal("a sampler without a buffer should not start voices")
	}

	m.LoadBuffer(sineBuffer(t, 0.1))
	m.TriggerAttack(60, 1, ctx.CurrentTime())
	ctx.Advance(0.5)
	if n := m.Voices(); n != 1 {
		t.Fatalf("Voices = %d, want 1 while looping", n)
	}

	testutil.RequireAudible(t, tail(*got, 800), 0.05)
	testutil.RequireFinite(t, *got)

	m.TriggerRelease(60, ctx.CurrentTime())
	ctx.Advance(0.7)
	if n := m.Voices(); n != 0 {
		t.Fatalf("Voices = %d, want 0 after release", n)
	}
}

func TestMelodicSamplerColourStages(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	m, err := NewMelodicSampler(ctx)
	if err != nil {
		t.Fatal(err)
	}

	defer m.Close()
	got := listen(t, ctx, m.Output())
	m.UpdateParams(plugin.Params{
		"saturation": 0.5, "bitCrush": 0.5, "chorus": 0.5, "width": 1.0,
		"lfoAmount": 0.5, "lfoDest": LFOFilter, "loop": false,
	})
	m.LoadBuffer(sineBuffer(t, 0.3))
	m.TriggerAttack(64, 0.9, ctx.CurrentTime())
	ctx.Advance(0.2)
	testutil.RequireFinite(t, *got)
	testutil.RequireAudible(t, tail(*got, 800), 0.01)

	ctx.Advance(0.5)
	if n := m.Voices(); n != 0 {
		t.Fatalf("Voices = %d, want 0 once the one-shot ended", n)
	}
}

func TestDrumSamplerChoke(t *testing.T) {
	t.Parallel()

	tests := []struct {
		choke int
		want  int
	}{
		{1, 1},
		{0, 2},
	}

	for _, tt := range tests {
		ctx := testCtx()
		d, _ := NewDrumSampler(ctx)
		d.LoadBuffer(sineBuffer(t, 1))
		d.UpdateParams(plugin.Params{"chokeGroup": tt.choke})
		d.Trigger(1, 0)
		d.Trigger(1, 0.1)
		ctx.Advance(0.3)
		if n := d.Voices(); n != tt.want {
			t.Errorf("chokeGroup %d: Voices = %d, want %d", tt.choke, n, tt.want)
		}

		d.StopAll(ctx.CurrentTime())
		ctx.Advance(0.1)
		if n := d.Voices(); n != 0 {
			t.Errorf("chokeGroup %d: Voices after StopAll = %d, want 0", tt.choke, n)
		}

		d.Close()
	}
}

func TestDrumSamplerOneShotEnds(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	d, _ := NewDrumSampler(ctx)
	defer d.Close()
	got := listen(t, ctx, d.Output())
	d.LoadBuffer(sineBuffer(t, 0.1))
	d.Trigger(1, 0)
	ctx.Advance(0.05)
	testutil.RequireAudible(t, tail(*got, 400), 0.05)
	ctx.Advance(0.2)
	if n := d.Voices(); n != 0 {
		t.Fatalf("Voices = %d, want 0", n)
	}
}

func TestDrumSamplerHitGain(t *testing.T) {
	t.Parallel()

	d, _ := NewDrumSampler(testCtx())
	defer d.Close()
	buf, _ := graph.NewBuffer(1, 4, testRate)
	copy(buf.Channels[0], []float64{0, 0.5, -0.25, 0})
	d.LoadBuffer(buf)

	if got := d.HitGain(1); math.Abs(got-1) > 1e-12 {
		t.Fatalf("HitGain(1) = %v, want 1", got)
	}

	if got := d.HitGain(0.5); math.Abs(got-0.6) > 1e-12 {
		t.Fatalf("HitGain(0.5) = %v, want 0.6", got)
	}

	d.UpdateParams(plugin.Params{"normalize": true, "gain": 6.0})
	if got, want := d.HitGain(1), core.DBToLinear(6)*2; math.Abs(got-want) > 1e-12 {
		t.Fatalf("normalized HitGain = %v, want %v", got, want)
	}
}

func TestDrumSamplerReverse(t *testing.T) {
	t.Parallel()

	d, _ := NewDrumSampler(testCtx())
	defer d.Close()
	buf, _ := graph.NewBuffer(1, 4, testRate)
	copy(buf.Channels[0], []float64{1, 2, 3, 4})
	d.LoadBuffer(buf)

	if d.playBuffer() != buf {
		t.Fatal("forward playback should use the loaded buffer")
	}

	d.UpdateParams(plugin.Params{"reverse": true})
	testutil.RequireSliceNearlyEqual(t, d.playBuffer().Channels[0], []float64{4, 3, 2, 1}, 0)
	testutil.RequireSliceNearlyEqual(t, buf.Channels[0], []float64{1, 2, 3, 4}, 0)
}

func TestDrumRackPads(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	r, err := NewDrumRack(ctx)
	if err != nil {
		t.Fatal(err)
	}

	defer r.Close()

	pads := r.Pads()
	if len(pads) != DefaultPadCount {
		t.Fatalf("pads = %d, want %d", len(pads), DefaultPadCount)
	}

	if pads[0].MIDINote != 60 || pads[0].Name != "Pad 1" || pads[0].Volume != 0.8 {
		t.Fatalf("pad 1 = %+v", pads[0])
	}

	if r.TriggerPad(60, 1, 0) {
		t.Fatal("pad without a sample should not trigger")
	}

	if err := r.LoadPadSample(99, sineBuffer(t, 0.1)); !errors.Is(err, ErrUnknownPad) {
		t.Fatalf("LoadPadSample(99) = %v, want ErrUnknownPad", err)
	}

	for _, id := range []int{1, 2} {
		if err := r.LoadPadSample(id, sineBuffer(t, 0.1)); err != nil {
			t.Fatal(err)
		}
	}

	if !r.TriggerPad(60, 1, 0) {
		t.Fatal("loaded pad should trigger")
	}

	if r.TriggerPad(30, 1, 0) {
		t.Fatal("unmapped note should not trigger")
	}

	pads[0].Muted = true
	r.UpdatePads(pads)
	if r.TriggerPad(60, 1, 0) {
		t.Fatal("muted pad should not trigger")
	}

	pads[0].Muted = false
	pads[1].Solo = true
	r.UpdatePads(pads)
	if r.TriggerPad(60, 1, 0) {
		t.Fatal("unsoloed pad should be silent while another is soloed")
	}

	if !r.TriggerPad(61, 1, 0) {
		t.Fatal("soloed pad should trigger")
	}

	ctx.Advance(0.3)
	if n := r.Voices(); n != 0 {
		t.Fatalf("Voices = %d, want 0 after the one-shots ended", n)
	}
}

func TestAudioSamplerMapsPitch(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	s, _ := NewAudioSampler(ctx)
	defer s.Close()
	got := listen(t, ctx, s.Output())
	s.LoadBuffer(sineBuffer(t, 1))

	s.TriggerAttack(72, 1, 0)
	ctx.Advance(0.1)
	testutil.RequireAudible(t, tail(*got, 400), 0.05)
	if n := s.Voices(); n != 1 {
		t.Fatalf("Voices = %d, want 1", n)
	}

	s.TriggerRelease(72, ctx.CurrentTime())
	ctx.Advance(0.2)
	if n := s.Voices(); n != 0 {
		t.Fatalf("Voices = %d, want 0", n)
	}
}

func TestEnvelopeReleaseDuringAttack(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	g := graph.NewGain(ctx)
	env := Envelope{Attack: 0.1, Sustain: 1, Release: 0.01}
	gt := env.open(g.Gain(), 1, 0)
	end := env.close(g.Gain(), gt, 0.05)
	if math.Abs(end-0.06) > 1e-12 {
		t.Fatalf("end = %v, want 0.06", end)
	}

	got := listen(t, ctx, g)
	src := graph.NewProcessor(ctx, 0, func(_ [][graph.Channels][]float64, out [graph.Channels][]float64, _ float64) {
		core.Fill(out[0], 1)
		core.Fill(out[1], 1)
	})
	if err := src.Connect(g); err != nil {
		t.Fatal(err)
	}

	ctx.Advance(0.1)

	// Halfway through the attack the level is 0.5, then it decays.
	at := int(0.05 * testRate)
	if v := (*got)[at-1]; math.Abs(v-0.5) > 0.01 {
		t.Fatalf("level at release = %v, want ~0.5", v)
	}

	if v := (*got)[at+int(0.05*testRate)-1]; v > 0.01 {
		t.Fatalf("level after release = %v, want ~0", v)
	}
}
