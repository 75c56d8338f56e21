package plugin

import (
	"errors"

	"github.com/cwbudde/algo-daw/dsp/graph"
)

// Chain connects nodes in series and reports every failed connection.
func Chain(nodes ...graph.Node) error {
	var errs []error
	for i := 1; i < len(nodes); i++ {
		if err := nodes[i-1].Connect(nodes[i]); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// CloseAll closes every non-nil node.
func CloseAll(nodes ...graph.Node) {
	for _, n := range nodes {
		if n != nil {
			n.Close()
		}
	}
}

// DryWet is the parallel mix skeleton most effects share: In feeds Dry
// straight to Out, and the effect path ends in Wet, which also feeds Out.
type DryWet struct {
	In  *graph.Gain
	Out *graph.Gain
	Dry *graph.Gain
	Wet *graph.Gain
}

// NewDryWet allocates the skeleton with dry at unity and wet silent.
func NewDryWet(ctx *graph.Context) (*DryWet, error) {
	d := &DryWet{
		In:  graph.NewGain(ctx),
		Out: graph.NewGain(ctx),
		Dry: graph.NewGain(ctx),
		Wet: graph.NewGain(ctx),
	}

	d.Wet.Gain().SetValue(0)
	err := errors.Join(
		Chain(d.In, d.Dry, d.Out),
		d.Wet.Connect(d.Out),
	)
	if err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

// Mix ramps the crossfade: dry = 1-mix, wet = mix.
func (d *DryWet) Mix(b *Base, mix, tc float64) {
	b.RampWith(d.Dry.Gain(), 1-mix, tc)
	b.RampWith(d.Wet.Gain(), mix, tc)
}

// Bypass ramps to dry only.
func (d *DryWet) Bypass(b *Base, tc float64) {
	b.RampWith(d.Dry.Gain(), 1, tc)
	b.RampWith(d.Wet.Gain(), 0, tc)
}

// Close releases the skeleton's nodes.
func (d *DryWet) Close() {
	CloseAll(d.In, d.Out, d.Dry, d.Wet)
}
