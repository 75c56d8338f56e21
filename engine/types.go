package engine

import (
	"errors"

	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

var (
	// ErrTrackNotFound is returned for operations on a track without a DSP
	// entry.
	ErrTrackNotFound = errors.New("engine: track not found")
	// ErrPluginNotFound is returned when a track has no live node for a
	// plugin id.
	ErrPluginNotFound = errors.New("engine: plugin not found")
	// ErrRecordingActive is returned when a second recording is started.
	ErrRecordingActive = errors.New("engine: recording already active")
	// ErrEmptyRecording is returned when a recording captured no audio.
	ErrEmptyRecording = errors.New("engine: empty recording")
	// ErrNoInputDevice is reported when no input opener is configured.
	ErrNoInputDevice = errors.New("engine: no input device available")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine: closed")
)

// MasterID is the output target naming the master bus.
const MasterID = "master"

// TrackType selects the behaviour of a track.
type TrackType string

// Track types.
const (
	TrackAudio    TrackType = "AUDIO"
	TrackMIDI     TrackType = "MIDI"
	TrackSampler  TrackType = "SAMPLER"
	TrackDrumRack TrackType = "DRUM_RACK"
	TrackBus      TrackType = "BUS"
	TrackSend     TrackType = "SEND"
)

// PlaysNotes reports whether the scheduler sends note clips to the track.
func (t TrackType) PlaysNotes() bool {
	return t == TrackMIDI || t == TrackSampler || t == TrackDrumRack
}

// soloExempt reports whether the track keeps playing while another track
// is soloed.
func (t TrackType) soloExempt() bool {
	return t == TrackBus || t == TrackSend
}

// defaultInstrument returns the instrument kind a track type falls back to
// when its plugin list names none.
func (t TrackType) defaultInstrument() plugin.Kind {
	switch t {
	case TrackMIDI:
		return plugin.KindSynth
	case TrackSampler:
		return plugin.KindDrumSampler
	case TrackDrumRack:
		return plugin.KindDrumRack
	}

	return ""
}

// Track is the UI's description of one mixer channel.
type Track struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Type          TrackType           `json:"type"`
	Muted         bool                `json:"isMuted"`
	Solo          bool                `json:"isSolo"`
	Armed         bool                `json:"isTrackArmed"`
	Frozen        bool                `json:"isFrozen"`
	Volume        float64             `json:"volume"`
	Pan           float64             `json:"pan"`
	OutputTrackID string              `json:"outputTrackId,omitempty"`
	Plugins       []plugin.Descriptor `json:"plugins,omitempty"`
	Clips         []Clip              `json:"clips,omitempty"`
	InputDeviceID string              `json:"inputDeviceId,omitempty"`
	DrumPads      []plugin.Pad        `json:"drumPads,omitempty"`
}

// ClipType discriminates audio from note content.
type ClipType string

// Clip types.
const (
	ClipAudio ClipType = "AUDIO"
	ClipMIDI  ClipType = "MIDI"
)

// Clip is a region on a track. Start, Duration and Offset are in project
// seconds; audio clips share an immutable Buffer, note clips carry Notes
// relative to Start.
type Clip struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     ClipType      `json:"type"`
	Start    float64       `json:"start"`
	Duration float64       `json:"duration"`
	Offset   float64       `json:"offset"`
	FadeIn   float64       `json:"fadeIn"`
	FadeOut  float64       `json:"fadeOut"`
	Gain     float64       `json:"gain"`
	Buffer   *graph.Buffer `json:"-"`
	Notes    []Note        `json:"notes,omitempty"`
}

// End returns the project time the clip stops at.
func (c Clip) End() float64 { return c.Start + c.Duration }

// level returns the clip gain, treating zero as unity.
func (c Clip) level() float64 {
	if c.Gain <= 0 {
		return 1
	}

	return c.Gain
}

// Note is one note of a note clip.
type Note struct {
	Pitch    int     `json:"pitch"`
	Velocity float64 `json:"velocity"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// RecordedClip is the result of a finished recording.
type RecordedClip struct {
	Clip    Clip   `json:"clip"`
	TrackID string `json:"trackId"`
}

// Notification is an asynchronous, user-facing event such as a failed
// microphone acquisition.
type Notification struct {
	TrackID string `json:"trackId"`
	Message string
	Err     error
}
