// Package effects implements the audio-through plugin nodes: reverb,
// tempo-synced delay, dynamics, modulation, pitch correction, equalization
// and saturation. Every node is bypass-safe: disabling it ramps the
// internal transform to neutral while its graph stays connected.
package effects
