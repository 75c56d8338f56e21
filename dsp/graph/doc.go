// Package graph is a block-rendered audio node graph with an audio clock.
//
// A Context pulls one render quantum at a time from its Destination and from
// every sink (analysers, captures). Nodes have numbered input ports and one
// stereo output; connected outputs are summed per port. Params carry sample
// accurate automation timelines and may be modulated by node outputs.
// Feedback cycles are legal: a node re-entered while rendering contributes
// its previous quantum.
//
// Scheduled sources (oscillators, buffer sources) start and stop against
// the audio clock; their ended callbacks run after the quantum in which they
// finished, regardless of whether anything pulled them.
package graph
