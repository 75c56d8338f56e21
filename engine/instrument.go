package engine

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

const (
	previewVelocity = 0.8
	previewDuration = 0.5
)

// TriggerAttack starts a note on the track's active instrument at audio
// time when, or now if when has passed.
func (e *Engine) TriggerAttack(trackID string, pitch int, velocity, when float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tracks[trackID]; ok {
		e.attackLocked(t, pitch, velocity, when)
	}
}

// TriggerRelease releases a held note on every melodic instrument of the
// track.
func (e *Engine) TriggerRelease(trackID string, pitch int, when float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tracks[trackID]; ok {
		e.releaseLocked(t, pitch, when)
	}
}

// PreviewNote plays a note now for duration seconds; a non-positive
// duration plays half a second.
func (e *Engine) PreviewNote(trackID string, pitch int, duration float64) {
	if duration <= 0 {
		duration = previewDuration
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tracks[trackID]
	if !ok {
		return
	}

	now := e.ctx.CurrentTime()
	e.attackLocked(t, pitch, previewVelocity, now)
	e.releaseLocked(t, pitch, now+duration)
}

func (e *Engine) attackLocked(t *trackEntry, pitch int, velocity, when float64) {
	when = math.Max(when, e.ctx.CurrentTime())
	switch inst := t.activeInstrument().(type) {
	case plugin.Rack:
		inst.TriggerPad(pitch, velocity, when)
	case plugin.Percussive:
		inst.Trigger(velocity, when)
	case plugin.Melodic:
		inst.TriggerAttack(pitch, velocity, when)
	default:
		e.log.WithFields(logrus.Fields{
			"function": "TriggerAttack",
			"track_id": t.id,
			"kind":     t.active,
		}).Debug("No instrument to trigger")
	}
}

func (e *Engine) releaseLocked(t *trackEntry, pitch int, when float64) {
	when = math.Max(when, e.ctx.CurrentTime())
	for _, n := range t.instruments {
		if m, ok := n.(plugin.Melodic); ok {
			m.TriggerRelease(pitch, when)
		}
	}
}

// LoadInstrumentBuffer hands a sample to every sample-playing instrument of
// the track, including ones built later.
func (e *Engine) LoadInstrumentBuffer(trackID string, buf *graph.Buffer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tracks[trackID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}

	t.sample = buf
	for _, n := range t.instruments {
		if sl, ok := n.(plugin.SampleLoader); ok {
			sl.LoadBuffer(buf)
		}
	}

	return nil
}

// LoadDrumPadBuffer loads a sample into one pad of the track's drum rack.
func (e *Engine) LoadDrumPadBuffer(trackID string, padID int, buf *graph.Buffer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tracks[trackID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}

	rack, ok := t.instruments[plugin.KindDrumRack].(plugin.Rack)
	if !ok {
		return fmt.Errorf("%w: no drum rack on track %s", ErrPluginNotFound, trackID)
	}

	return rack.LoadPadSample(padID, buf)
}
