package builtin

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
	"github.com/cwbudde/algo-daw/dsp/plugin/effects"
)

func testCtx() *graph.Context {
	return graph.NewContext(core.WithSampleRate(16000), core.WithBlockSize(128))
}

func TestRegistryCoversEveryKind(t *testing.T) {
	t.Parallel()

	r := Registry()
	want := []plugin.Kind{
		plugin.KindAutoTune, plugin.KindChorus, plugin.KindCompressor, plugin.KindCompressorPro,
		plugin.KindDeEsser, plugin.KindDelay, plugin.KindDenoiser, plugin.KindDoubler,
		plugin.KindDrumRack, plugin.KindDrumSampler, plugin.KindFlanger, plugin.KindMasterSync,
		plugin.KindMelodicSampler, plugin.KindProEQ12, plugin.KindReverb, plugin.KindSampler,
		plugin.KindStereoSpreader, plugin.KindSynth, plugin.KindVocalSaturator,
	}

	got := r.Kinds()
	if len(got) != len(want) {
		t.Fatalf("Kinds = %v, want %d kinds", got, len(want))
	}

	ctx := testCtx()
	for _, kind := range got {
		n, err := r.Create(ctx, plugin.Descriptor{ID: "p-" + string(kind), Kind: kind, Enabled: true})
		if err != nil {
			t.Fatalf("Create(%s): %v", kind, err)
		}

		if n.Kind() != kind {
			t.Errorf("Create(%s).Kind() = %s", kind, n.Kind())
		}

		if n.Input() == nil || n.Output() == nil {
			t.Errorf("%s: nil endpoint", kind)
		}

		n.Close()
	}
}

func TestCreatePushesDescriptorParams(t *testing.T) {
	t.Parallel()

	r := Registry()
	n, err := r.Create(testCtx(), plugin.Descriptor{
		ID: "rev", Kind: plugin.KindReverb, Enabled: false,
		Params: plugin.Params{"decay": 3.5},
	})
	if err != nil {
		t.Fatal(err)
	}

	defer n.Close()
	p := n.Params()
	if p.Float("decay", 0) != 3.5 {
		t.Fatalf("decay = %v, want 3.5", p["decay"])
	}

	if p.Bool(plugin.EnabledKey, true) {
		t.Fatal("descriptor disabled state not applied")
	}
}

func TestCreateUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := Registry().Create(testCtx(), plugin.Descriptor{Kind: "WOBBLE"})
	if !errors.Is(err, plugin.ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestLegacyAliases(t *testing.T) {
	t.Parallel()

	r := Registry()
	for _, alias := range []plugin.Kind{"DRUM_RACK", "COMPRESSORPRO", "SYNC_DELAY"} {
		if _, ok := r.Lookup(alias); !ok {
			t.Errorf("Lookup(%s) failed", alias)
		}
	}
}

func TestDelayStartsAtRegistryTempo(t *testing.T) {
	t.Parallel()

	bpm := 90.0
	r := Registry(WithTempo(func() float64 { return bpm }))
	n, err := r.Create(testCtx(), plugin.Descriptor{Kind: plugin.KindDelay, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	defer n.Close()
	d, ok := n.(*effects.SyncDelay)
	if !ok {
		t.Fatalf("node is %T, want *effects.SyncDelay", n)
	}

	if got := d.DelayTime(); got < 0.666 || got > 0.667 {
		t.Fatalf("DelayTime = %v, want 0.667", got)
	}
}
