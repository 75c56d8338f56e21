// Package engine is the audio engine core of the workstation: it owns the
// master bus, one DSP graph entry per track, the look-ahead scheduler, the
// recorder and the preview lane, and exposes the operations the UI layer
// drives.
//
// An Engine is explicitly constructed with New and torn down with Close.
// Every exported method is safe for concurrent use: one mutex serializes the
// control operations, the scheduler ticker and the host's Render pull.
package engine
