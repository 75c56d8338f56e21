package instrument

import (
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

// sourceNode is a scheduled graph source a voice is built around.
type sourceNode interface {
	graph.Node
	Stop(when float64)
	OnEnded(fn func())
}

// voice is one sounding note: a source feeding a chain that ends in an
// envelope gain.
type voice struct {
	key      int
	src      sourceNode
	env      *graph.Gain
	nodes    []graph.Node
	envelope Envelope
	gate     gate
	released bool
}

func (v *voice) release(when float64) {
	if v.released {
		return
	}

	v.released = true
	v.src.Stop(v.envelope.close(v.env.Gain(), v.gate, when))
}

// stop fades the voice out within a few milliseconds.
func (v *voice) stop(when float64) {
	v.released = true
	p := v.env.Gain()
	p.CancelScheduledValues(when)
	p.SetTargetAtTime(0, when, stopFade)
	v.src.Stop(when + releaseShape*stopFade)
}

func (v *voice) close() {
	plugin.CloseAll(v.nodes...)
}

// voicePool tracks sounding voices. Held voices are indexed by key (a pitch
// or pad) until released; every voice stays in the pool until its source
// ends.
type voicePool struct {
	held map[int]*voice
	all  map[*voice]struct{}
}

func newVoicePool() *voicePool {
	return &voicePool{held: make(map[int]*voice), all: make(map[*voice]struct{})}
}

// add registers v. A held voice already sounding on the same key is
// released at when.
func (p *voicePool) add(v *voice, held bool, when float64) {
	if held {
		if prev, ok := p.held[v.key]; ok {
			prev.release(when)
		}

		p.held[v.key] = v
	}

	p.all[v] = struct{}{}
	v.src.OnEnded(func() { p.remove(v) })
}

func (p *voicePool) remove(v *voice) {
	if p.held[v.key] == v {
		delete(p.held, v.key)
	}

	delete(p.all, v)
	v.close()
}

// heldVoice returns the held voice on key, if any.
func (p *voicePool) heldVoice(key int) (*voice, bool) {
	v, ok := p.held[key]
	return v, ok
}

func (p *voicePool) release(key int, when float64) {
	if v, ok := p.held[key]; ok {
		v.release(when)
		delete(p.held, key)
	}
}

func (p *voicePool) releaseAll(when float64) {
	for key, v := range p.held {
		v.release(when)
		delete(p.held, key)
	}
}

func (p *voicePool) stopAll(when float64) {
	for v := range p.all {
		v.stop(when)
	}

	clear(p.held)
}

// closeAll tears every voice down immediately.
func (p *voicePool) closeAll() {
	for v := range p.all {
		v.close()
	}

	clear(p.all)
	clear(p.held)
}

func (p *voicePool) len() int { return len(p.all) }

func (p *voicePool) each(fn func(v *voice)) {
	for v := range p.all {
		fn(v)
	}
}
