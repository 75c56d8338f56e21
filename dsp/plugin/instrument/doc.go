// Package instrument implements the note-driven plugin nodes: a
// subtractive synthesizer, a melodic sampler, a one-shot drum sampler, a
// generic pitch-mapped sampler and a pad-based drum rack.
//
// Every instrument renders voices into a shared output gain. Voices are
// scheduled on the graph clock and release their nodes when their source
// ends, so an instrument never holds more graph nodes than it has sounding
// voices plus its fixed output stages.
package instrument
