// Package host holds the device adapters that connect the engine to real
// hardware: otoout drives an output device from engine.Render, painput
// opens capture devices for armed tracks and midiin forwards MIDI notes to
// instrument tracks.
package host
