package effects

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

// EQBands is the number of ProEQ12 bands.
const EQBands = 12

var eqDefaultFreqs = [EQBands]float64{30, 60, 120, 250, 500, 1000, 2000, 3500, 5000, 8000, 12000, 16000}

// BandKey returns the param key of a band field, e.g. BandKey(3, "Freq")
// is "band3Freq". Bands are numbered from 1.
func BandKey(band int, field string) string {
	return fmt.Sprintf("band%d%s", band, field)
}

func eqDefaults() plugin.Params {
	p := plugin.Params{"outputGain": 0.0}
	for i := range EQBands {
		band := i + 1
		typ := "peaking"
		switch band {
		case 1:
			typ = "lowshelf"
		case EQBands:
			typ = "highshelf"
		}

		p[BandKey(band, "Type")] = typ
		p[BandKey(band, "Freq")] = eqDefaultFreqs[i]
		p[BandKey(band, "Gain")] = 0.0
		p[BandKey(band, "Q")] = 1.0
		p[BandKey(band, "On")] = true
	}

	return p
}

// ProEQ12 is a twelve band parametric equalizer: biquad sections in series
// followed by an output trim. A band that is off becomes a flat peaking
// section.
type ProEQ12 struct {
	plugin.Base
	bands [EQBands]*graph.BiquadFilter
	trim  *graph.Gain
}

// NewProEQ12 returns a flat equalizer.
func NewProEQ12(ctx *graph.Context) (*ProEQ12, error) {
	e := &ProEQ12{
		Base: plugin.NewBase(ctx, plugin.KindProEQ12, eqDefaults()),
		trim: graph.NewGain(ctx),
	}

	chain := make([]graph.Node, 0, EQBands+1)
	for i := range e.bands {
		e.bands[i] = graph.NewBiquadFilter(ctx, graph.Peaking)
		chain = append(chain, e.bands[i])
	}

	chain = append(chain, e.trim)
	if err := plugin.Chain(chain...); err != nil {
		e.Close()
		return nil, fmt.Errorf("effects: eq: %w", err)
	}

	e.apply()

	return e, nil
}

func (e *ProEQ12) Input() graph.Node  { return e.bands[0] }
func (e *ProEQ12) Output() graph.Node { return e.trim }

// Band returns the filter of band n, numbered from 1.
func (e *ProEQ12) Band(n int) *graph.BiquadFilter {
	if n < 1 || n > EQBands {
		return nil
	}

	return e.bands[n-1]
}

// MagnitudeAt returns the combined linear response of the enabled bands at
// freq, trim excluded.
func (e *ProEQ12) MagnitudeAt(freq float64) float64 {
	mag := 1.0
	for _, b := range e.bands {
		mag *= b.MagnitudeAt(freq)
	}

	return mag
}

func (e *ProEQ12) UpdateParams(update plugin.Params) {
	e.Merge(update)
	e.apply()
}

func (e *ProEQ12) apply() {
	if !e.Enabled() {
		e.ApplyBypassState()
		return
	}

	nyquist := e.Ctx.SampleRate() / 2
	for i, f := range e.bands {
		band := i + 1
		e.Ramp(f.Frequency(), e.NumIn(BandKey(band, "Freq"), eqDefaultFreqs[i], 20, nyquist))
		e.Ramp(f.Q(), e.NumIn(BandKey(band, "Q"), 1, 0.1, 18))
		if !e.Flag(BandKey(band, "On"), true) {
			f.SetType(graph.Peaking)
			e.Ramp(f.Gain(), 0)
			continue
		}

		f.SetType(graph.ParseFilterType(strings.ToLower(e.Str(BandKey(band, "Type"), "peaking"))))
		e.Ramp(f.Gain(), e.NumIn(BandKey(band, "Gain"), 0, -24, 24))
	}

	e.Ramp(e.trim.Gain(), core.DBToLinear(e.NumIn("outputGain", 0, -24, 24)))
}

func (e *ProEQ12) ApplyBypassState() {
	for _, f := range e.bands {
		f.SetType(graph.Peaking)
		e.Ramp(f.Gain(), 0)
	}

	e.Ramp(e.trim.Gain(), 1)
}

func (e *ProEQ12) Close() {
	for _, f := range e.bands {
		if f != nil {
			f.Close()
		}
	}

	e.trim.Close()
}
