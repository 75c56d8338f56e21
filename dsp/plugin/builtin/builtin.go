// Package builtin assembles the registry of every plugin kind the engine
// can instantiate.
package builtin

import (
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
	"github.com/cwbudde/algo-daw/dsp/plugin/effects"
	"github.com/cwbudde/algo-daw/dsp/plugin/instrument"
)

// DefaultTempo is the tempo delays are created at before the engine pushes
// the project tempo.
const DefaultTempo = 120.0

type registryConfig struct {
	tempo func() float64
}

// Option configures the registry.
type Option func(*registryConfig)

// WithTempo makes tempo-synced plugins start at the tempo fn reports when
// they are created.
func WithTempo(fn func() float64) Option {
	return func(c *registryConfig) {
		if fn != nil {
			c.tempo = fn
		}
	}
}

// adapt lifts a concrete constructor to a Factory without leaking a typed
// nil on failure.
func adapt[T plugin.Node](fn func(*graph.Context) (T, error)) plugin.Factory {
	return func(ctx *graph.Context) (plugin.Node, error) {
		n, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		return n, nil
	}
}

// Registry returns a registry with every effect and instrument kind.
func Registry(opts ...Option) *plugin.Registry {
	cfg := &registryConfig{tempo: func() float64 { return DefaultTempo }}
	for _, opt := range opts {
		opt(cfg)
	}

	r := plugin.NewRegistry()
	r.MustRegister(plugin.KindReverb, adapt(effects.NewReverb))
	r.MustRegister(plugin.KindDelay, adapt(func(ctx *graph.Context) (*effects.SyncDelay, error) {
		return effects.NewSyncDelay(ctx, cfg.tempo())
	}))
	r.MustRegister(plugin.KindCompressor, adapt(effects.NewCompressor))
	r.MustRegister(plugin.KindCompressorPro, adapt(effects.NewCompressorPro))
	r.MustRegister(plugin.KindChorus, adapt(effects.NewChorus))
	r.MustRegister(plugin.KindFlanger, adapt(effects.NewFlanger))
	r.MustRegister(plugin.KindDoubler, adapt(effects.NewDoubler))
	r.MustRegister(plugin.KindStereoSpreader, adapt(effects.NewStereoSpreader))
	r.MustRegister(plugin.KindAutoTune, adapt(effects.NewAutoTune))
	r.MustRegister(plugin.KindDeEsser, adapt(effects.NewDeEsser))
	r.MustRegister(plugin.KindDenoiser, adapt(effects.NewDenoiser))
	r.MustRegister(plugin.KindProEQ12, adapt(effects.NewProEQ12))
	r.MustRegister(plugin.KindVocalSaturator, adapt(effects.NewVocalSaturator))
	r.MustRegister(plugin.KindMasterSync, adapt(effects.NewMasterSync))

	r.MustRegister(plugin.KindSynth, adapt(instrument.NewSynth))
	r.MustRegister(plugin.KindMelodicSampler, adapt(instrument.NewMelodicSampler))
	r.MustRegister(plugin.KindDrumSampler, adapt(instrument.NewDrumSampler))
	r.MustRegister(plugin.KindSampler, adapt(instrument.NewAudioSampler))
	r.MustRegister(plugin.KindDrumRack, adapt(instrument.NewDrumRack))

	return r
}
