package effects

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
	"github.com/cwbudde/algo-daw/internal/testutil"
)

const testRate = 16000

func testCtx(rate float64) *graph.Context {
	return graph.NewContext(core.WithSampleRate(rate), core.WithBlockSize(128))
}

// sineSource emits amp*sin at freqL on the left and freqR on the right,
// phase-locked to the context clock.
func sineSource(ctx *graph.Context, freqL, freqR, amp float64) *graph.Processor {
	sr := ctx.SampleRate()
	return graph.NewProcessor(ctx, 0, func(_ [][graph.Channels][]float64, out [graph.Channels][]float64, t0 float64) {
		for i := range out[0] {
			t := t0 + float64(i)/sr
			out[0][i] = amp * math.Sin(2*math.Pi*freqL*t)
			out[1][i] = amp * math.Sin(2*math.Pi*freqR*t)
		}
	})
}

// tap records both channels of src while armed is true.
type tap struct {
	left, right []float64
	armed       bool
}

func newTap(t *testing.T, ctx *graph.Context, src graph.Node) *tap {
	t.Helper()
	tp := &tap{}
	c := graph.NewCapture(ctx, func(frames []float32) {
		if !tp.armed {
			return
		}

		l, r := testutil.Deinterleave(frames)
		tp.left = append(tp.left, l...)
		tp.right = append(tp.right, r...)
	})
	if err := src.Connect(c); err != nil {
		t.Fatal(err)
	}

	return tp
}

type rig struct {
	ctx     *graph.Context
	in, out *tap
}

// newRig drives n with a stereo sine and taps its input and output.
func newRig(t *testing.T, ctx *graph.Context, n plugin.Node, freqL, freqR, amp float64) *rig {
	t.Helper()
	src := sineSource(ctx, freqL, freqR, amp)
	if err := src.Connect(n.Input()); err != nil {
		t.Fatal(err)
	}

	return &rig{ctx: ctx, in: newTap(t, ctx, src), out: newTap(t, ctx, n.Output())}
}

func (r *rig) record(seconds float64) {
	r.in.armed, r.out.armed = true, true
	r.ctx.Advance(seconds)
	r.in.armed, r.out.armed = false, false
}

type constructor func(ctx *graph.Context) (plugin.Node, error)

func catalogue() map[plugin.Kind]constructor {
	return map[plugin.Kind]constructor{
		plugin.KindReverb:         func(c *graph.Context) (plugin.Node, error) { return NewReverb(c) },
		plugin.KindDelay:          func(c *graph.Context) (plugin.Node, error) { return NewSyncDelay(c, 120) },
		plugin.KindCompressor:     func(c *graph.Context) (plugin.Node, error) { return NewCompressor(c) },
		plugin.KindCompressorPro:  func(c *graph.Context) (plugin.Node, error) { return NewCompressorPro(c) },
		plugin.KindChorus:         func(c *graph.Context) (plugin.Node, error) { return NewChorus(c) },
		plugin.KindFlanger:        func(c *graph.Context) (plugin.Node, error) { return NewFlanger(c) },
		plugin.KindDoubler:        func(c *graph.Context) (plugin.Node, error) { return NewDoubler(c) },
		plugin.KindStereoSpreader: func(c *graph.Context) (plugin.Node, error) { return NewStereoSpreader(c) },
		plugin.KindAutoTune:       func(c *graph.Context) (plugin.Node, error) { return NewAutoTune(c) },
		plugin.KindDeEsser:        func(c *graph.Context) (plugin.Node, error) { return NewDeEsser(c) },
		plugin.KindDenoiser:       func(c *graph.Context) (plugin.Node, error) { return NewDenoiser(c) },
		plugin.KindProEQ12:        func(c *graph.Context) (plugin.Node, error) { return NewProEQ12(c) },
		plugin.KindVocalSaturator: func(c *graph.Context) (plugin.Node, error) { return NewVocalSaturator(c) },
		plugin.KindMasterSync:     func(c *graph.Context) (plugin.Node, error) { return NewMasterSync(c) },
	}
}

func TestEffectsProcessSignal(t *testing.T) {
	t.Parallel()

	for kind, build := range catalogue() {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			ctx := testCtx(testRate)
			n, err := build(ctx)
			if err != nil {
				t.Fatal(err)
			}

			defer n.Close()
			if n.Kind() != kind {
				t.Fatalf("Kind = %q, want %q", n.Kind(), kind)
			}

			if !n.Params().Bool(plugin.EnabledKey, false) {
				t.Fatal("new node should be enabled")
			}

			r := newRig(t, ctx, n, 440, 330, 0.5)
			r.record(0.25)
			testutil.RequireFinite(t, r.out.left)
			testutil.RequireFinite(t, r.out.right)
			testutil.RequireAudible(t, r.out.left, 0.01)
		})
	}
}

func TestBypassIsTransparent(t *testing.T) {
	t.Parallel()

	for kind, build := range catalogue() {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			ctx := testCtx(testRate)
			n, err := build(ctx)
			if err != nil {
				t.Fatal(err)
			}

			defer n.Close()
			r := newRig(t, ctx, n, 440, 330, 0.5)

			ctx.Advance(0.1)
			n.UpdateParams(plugin.Params{plugin.EnabledKey: false})
			ctx.Advance(0.6)
			r.record(0.1)

			testutil.RequireSliceNearlyEqual(t, r.out.left, r.in.left, 1e-4)
			testutil.RequireSliceNearlyEqual(t, r.out.right, r.in.right, 1e-4)

			// Re-enabling restores processing on the same node.
			n.UpdateParams(plugin.Params{plugin.EnabledKey: true})
			if !n.Params().Bool(plugin.EnabledKey, false) {
				t.Fatal("node should be enabled again")
			}
		})
	}
}

func TestSyncDelayFollowsTempo(t *testing.T) {
	t.Parallel()

	d, err := NewSyncDelay(testCtx(testRate), 120)
	if err != nil {
		t.Fatal(err)
	}

	defer d.Close()
	if got := d.DelayTime(); got != 0.5 {
		t.Fatalf("DelayTime at 120 BPM = %v, want 0.5", got)
	}

	d.SetTempo(90)
	if got := d.DelayTime(); math.Abs(got-2.0/3) > 1e-3 {
		t.Fatalf("DelayTime at 90 BPM = %v, want 0.667", got)
	}

	if got := d.Params().Float("bpm", 0); got != 90 {
		t.Fatalf("bpm param = %v, want 90", got)
	}
}

func TestSyncDelayEchoes(t *testing.T) {
	t.Parallel()

	ctx := testCtx(1000)
	d, err := NewSyncDelay(ctx, 600)
	if err != nil {
		t.Fatal(err)
	}

	defer d.Close()
	d.UpdateParams(plugin.Params{"mix": 1.0, "feedback": 0.5})
	ctx.Advance(1)

	fired := false
	src := graph.NewProcessor(ctx, 0, func(_ [][graph.Channels][]float64, out [graph.Channels][]float64, _ float64) {
		clear(out[0])
		clear(out[1])
		if !fired {
			out[0][0], out[1][0] = 1, 1
			fired = true
		}
	})
	if err := src.Connect(d.Input()); err != nil {
		t.Fatal(err)
	}

	out := newTap(t, ctx, d.Output())
	out.armed = true
	ctx.Advance(0.7)

	// 600 BPM quarter note: echoes every 100 ms.
	for i, want := range []float64{1, 0.5, 0.25} {
		pos := 100 * (i + 1)
		if got := out.left[pos]; math.Abs(got-want) > 1e-3 {
			t.Fatalf("echo %d at %d = %v, want %v", i+1, pos, got, want)
		}
	}
}

func TestDivisionSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		division string
		bpm      float64
		want     float64
	}{
		{"1/4", 120, 0.5},
		{"1/8", 120, 0.25},
		{"1/8d", 120, 0.375},
		{"1/16", 120, 0.125},
		{"1/2", 60, 2},
		{"1/4t", 120, 1.0 / 3},
		{"bogus", 120, 0.5},
	}

	for _, tt := range tests {
		if got := DivisionSeconds(tt.division, tt.bpm); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("DivisionSeconds(%q, %v) = %v, want %v", tt.division, tt.bpm, got, tt.want)
		}
	}
}

func TestReverbRegeneratesImpulseOnDecayChange(t *testing.T) {
	t.Parallel()

	r, err := NewReverb(testCtx(testRate))
	if err != nil {
		t.Fatal(err)
	}

	defer r.Close()

	first := r.Impulse()
	if got := first.Frames(); got != 2*testRate {
		t.Fatalf("impulse frames = %d, want %d", got, 2*testRate)
	}

	r.UpdateParams(plugin.Params{"mix": 0.5})
	if r.Impulse() != first {
		t.Fatal("impulse regenerated without a decay change")
	}

	r.UpdateParams(plugin.Params{"decay": 1.0})
	if got := r.Impulse().Frames(); got != testRate {
		t.Fatalf("impulse frames = %d, want %d", got, testRate)
	}

	if first.NumChannels() != 2 {
		t.Fatalf("impulse channels = %d, want 2", first.NumChannels())
	}
}

func TestReverbKeepsDecayOfRejectedImpulse(t *testing.T) {
	t.Parallel()

	r, err := NewReverb(testCtx(testRate))
	if err != nil {
		t.Fatal(err)
	}

	defer r.Close()

	first := r.Impulse()
	r.generate = func(decay float64) (*graph.Buffer, error) {
		return graph.NewBuffer(2, int(decay*testRate), 2*testRate)
	}

	r.UpdateParams(plugin.Params{"decay": 3.0})
	if r.Decay() != 2 {
		t.Fatalf("Decay = %v after a rejected response, want 2", r.Decay())
	}

	if r.Impulse() != first {
		t.Fatal("rejected response replaced the impulse")
	}

	r.generate = r.impulse
	r.UpdateParams(plugin.Params{"decay": 3.0})
	if r.Decay() != 3 {
		t.Fatalf("Decay = %v, want 3", r.Decay())
	}
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	t.Parallel()

	ctx := testCtx(testRate)
	c, err := NewCompressor(ctx)
	if err != nil {
		t.Fatal(err)
	}

	defer c.Close()
	newRig(t, ctx, c, 440, 440, 0.9)
	ctx.Advance(0.3)
	if got := c.Reduction(); got > -3 {
		t.Fatalf("Reduction = %v dB, want < -3", got)
	}
}

func TestCompressorProMakeup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		threshold, ratio, want float64
	}{
		{-24, 4, 4.8},
		{-60, 1, 24},
		{0, 4, 0},
	}

	for _, tt := range tests {
		if got := AutoMakeupDB(tt.threshold, tt.ratio); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("AutoMakeupDB(%v, %v) = %v, want %v", tt.threshold, tt.ratio, got, tt.want)
		}
	}

	c, err := NewCompressorPro(testCtx(testRate))
	if err != nil {
		t.Fatal(err)
	}

	defer c.Close()
	if got := c.Latency(); got != 0.003 {
		t.Fatalf("Latency = %v, want 0.003", got)
	}

	c.UpdateParams(plugin.Params{"autoMakeup": false, "makeupGain": 6.0})
	if got := c.MakeupDB(); got != 6 {
		t.Fatalf("MakeupDB = %v, want 6", got)
	}
}

func TestAnalogCurve(t *testing.T) {
	t.Parallel()

	curve := AnalogCurve(8192)
	if len(curve) != 8192 {
		t.Fatalf("len = %d, want 8192", len(curve))
	}

	testutil.RequireFinite(t, curve)
	if mid := curve[4096]; math.Abs(mid-0.05) > 1e-3 {
		t.Fatalf("curve at 0 = %v, want ~0.05", mid)
	}

	if curve[0] >= curve[8191] {
		t.Fatal("curve should rise across its range")
	}
}

func TestProEQ12Bands(t *testing.T) {
	t.Parallel()

	e, err := NewProEQ12(testCtx(44100))
	if err != nil {
		t.Fatal(err)
	}

	defer e.Close()
	if got := e.MagnitudeAt(1000); math.Abs(got-1) > 1e-9 {
		t.Fatalf("flat response at 1 kHz = %v, want 1", got)
	}

	e.UpdateParams(plugin.Params{
		BandKey(6, "Freq"): 1000.0,
		BandKey(6, "Gain"): 12.0,
		BandKey(6, "Q"):    2.0,
	})
	if got := core.LinearToDB(e.MagnitudeAt(1000)); math.Abs(got-12) > 0.5 {
		t.Fatalf("boost at 1 kHz = %v dB, want ~12", got)
	}

	e.UpdateParams(plugin.Params{BandKey(6, "On"): false})
	if got := e.MagnitudeAt(1000); math.Abs(got-1) > 1e-9 {
		t.Fatalf("response with band off = %v, want 1", got)
	}

	if e.Band(0) != nil || e.Band(13) != nil {
		t.Fatal("out-of-range bands should be nil")
	}
}

func TestStereoSpreaderFoldsToMono(t *testing.T) {
	t.Parallel()

	ctx := testCtx(testRate)
	s, err := NewStereoSpreader(ctx)
	if err != nil {
		t.Fatal(err)
	}

	defer s.Close()
	s.UpdateParams(plugin.Params{"width": 0.0, "haas": 0.0})
	r := newRig(t, ctx, s, 440, 330, 0.5)
	ctx.Advance(0.5)
	r.record(0.05)
	testutil.RequireSliceNearlyEqual(t, r.out.left, r.out.right, 1e-5)
}

func TestSnapToScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		note       float64
		key, scale string
		want       float64
	}{
		{61.3, "C", "chromatic", 61},
		{61.3, "C", "major", 62},
		{60.9, "C", "major", 60},
		{66.2, "D", "major", 66},
		{63.4, "A", "minor", 64},
		{70.4, "C", "pentatonic", 69},
		{59.6, "c", "MAJOR", 60},
	}

	for _, tt := range tests {
		if got := SnapToScale(tt.note, tt.key, tt.scale); got != tt.want {
			t.Errorf("SnapToScale(%v, %q, %q) = %v, want %v", tt.note, tt.key, tt.scale, got, tt.want)
		}
	}
}

func TestDetectPitch(t *testing.T) {
	t.Parallel()

	frame := testutil.Sine(220, testRate, 0.5, 1024)
	hz, ok := DetectPitch(frame, testRate, 70, 1000)
	if !ok {
		t.Fatal("sine should be voiced")
	}

	if math.Abs(hz-220) > 1 {
		t.Fatalf("pitch = %v, want ~220", hz)
	}

	if _, ok := DetectPitch(make([]float64, 1024), testRate, 70, 1000); ok {
		t.Fatal("silence should be unvoiced")
	}
}

func TestAutoTuneTargetsNearestNote(t *testing.T) {
	t.Parallel()

	ctx := testCtx(testRate)
	a, err := NewAutoTune(ctx)
	if err != nil {
		t.Fatal(err)
	}

	defer a.Close()
	newRig(t, ctx, a, 226, 226, 0.5)
	ctx.Advance(1)

	if got := a.DetectedPitch(); math.Abs(got-226) > 2 {
		t.Fatalf("DetectedPitch = %v, want ~226", got)
	}

	if got, want := a.Ratio(), 220.0/226; math.Abs(got-want) > 0.01 {
		t.Fatalf("Ratio = %v, want ~%v", got, want)
	}
}

func TestDeEsserKeysOnSibilance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		freq   float64
		reduce bool
	}{
		{"sibilant", 7000, true},
		{"voice", 200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := testCtx(44100)
			d, err := NewDeEsser(ctx)
			if err != nil {
				t.Fatal(err)
			}

			defer d.Close()
			newRig(t, ctx, d, tt.freq, tt.freq, 0.5)
			ctx.Advance(0.2)
			got := d.Reduction()
			if tt.reduce && got > -1 {
				t.Fatalf("Reduction = %v dB, want < -1", got)
			}

			if !tt.reduce && got < -0.5 {
				t.Fatalf("Reduction = %v dB, want ~0", got)
			}
		})
	}
}

func TestDenoiserGatesQuietSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		amp   float64
		gated bool
	}{
		{"noise floor", 0.0005, true},
		{"speech", 0.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := testCtx(testRate)
			d, err := NewDenoiser(ctx)
			if err != nil {
				t.Fatal(err)
			}

			defer d.Close()
			newRig(t, ctx, d, 1000, 1000, tt.amp)
			ctx.Advance(0.5)
			if tt.gated && d.Gain() > 0.5 {
				t.Fatalf("Gain = %v, want < 0.5", d.Gain())
			}

			if !tt.gated && d.Gain() < 0.95 {
				t.Fatalf("Gain = %v, want ~1", d.Gain())
			}
		})
	}
}

func TestSaturationCurves(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{"tape", "tube", "soft"} {
		curve := SaturationCurve(mode, 0.5, 1025)
		testutil.RequireFinite(t, curve)
		if math.Abs(curve[512]) > 1e-9 {
			t.Errorf("%s: curve at 0 = %v, want 0", mode, curve[512])
		}

		if p := testutil.Peak(curve); p > 1+1e-9 {
			t.Errorf("%s: peak = %v, want <= 1", mode, p)
		}
	}
}
