package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-daw/codec"
	"github.com/cwbudde/algo-daw/dsp/graph"
)

const (
	recordingFade = 0.01
	recordingName = "Recording"
)

// recording is the single active capture session. The capture appends
// rendered frames to pending; each full slice is encoded as one chunk so an
// abrupt stop loses at most one slice.
type recording struct {
	trackID string
	start   float64
	format  string
	tap     *graph.Gain
	capture *graph.Capture
	enc     *codec.Encoder
	pending []float32
	slice   int
	err     error
}

func (r *recording) onBlock(frames []float32) {
	if r.err != nil {
		return
	}

	r.pending = append(r.pending, frames...)
	if len(r.pending) >= r.slice {
		r.flush()
	}
}

func (r *recording) flush() {
	if len(r.pending) == 0 || r.err != nil {
		return
	}

	r.err = r.enc.Write(r.pending)
	r.pending = r.pending[:0]
}

func (r *recording) detach() {
	r.tap.DisconnectFrom(r.capture)
	r.capture.Close()
}

// IsRecording reports whether a capture session is active.
func (e *Engine) IsRecording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.rec != nil
}

// StartRecording captures the dry recording tap of trackID. currentTime is
// the project time the recorded clip will start at. It reports false when
// the track has no graph entry or a session is already active.
func (e *Engine) StartRecording(currentTime float64, trackID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	log := e.log.WithFields(logrus.Fields{
		"function": "StartRecording",
		"track_id": trackID,
	})
	if e.closed {
		return false
	}

	if e.rec != nil {
		log.WithError(ErrRecordingActive).Warn("Recording not started")
		return false
	}

	t, ok := e.tracks[trackID]
	if !ok {
		log.WithError(ErrTrackNotFound).Error("Recording not started")
		return false
	}

	format, depth := e.cfg.recordingDepth()
	enc, err := codec.NewEncoder(int(e.cfg.SampleRate), graph.Channels, depth)
	if err != nil {
		log.WithError(err).Error("Recording encoder unavailable")
		return false
	}

	r := &recording{
		trackID: trackID,
		start:   currentTime,
		format:  format,
		tap:     t.recTap,
		enc:     enc,
		slice:   graph.Channels * int(e.cfg.RecordingSlice.Seconds()*e.cfg.SampleRate),
	}

	r.capture = graph.NewCapture(e.ctx, r.onBlock)
	if err := t.recTap.Connect(r.capture); err != nil {
		log.WithError(err).Error("Recording tap connection failed")
		r.capture.Close()

		return false
	}

	e.rec = r
	log.WithFields(logrus.Fields{"start": currentTime, "format": format}).Info("Recording started")

	return true
}

// StopRecording ends the session and returns the recorded clip. Without an
// active session it returns nil, nil. A session that captured nothing
// returns ErrEmptyRecording; a finalize failure wraps codec.ErrDecode.
func (e *Engine) StopRecording() (*RecordedClip, error) {
	e.mu.Lock()
	r := e.rec
	e.rec = nil
	if r == nil {
		e.mu.Unlock()
		e.log.WithField("function", "StopRecording").Debug("No active recording")

		return nil, nil
	}

	r.detach()
	r.flush()
	rate := e.cfg.SampleRate
	e.mu.Unlock()

	log := e.log.WithFields(logrus.Fields{
		"function": "StopRecording",
		"track_id": r.trackID,
	})
	if r.err != nil {
		return nil, fmt.Errorf("engine: recording: %w", r.err)
	}

	if r.enc.Frames() == 0 {
		log.Warn("Recording captured no audio")
		return nil, ErrEmptyRecording
	}

	data, err := r.enc.Close()
	if err != nil {
		return nil, fmt.Errorf("engine: recording: %w", err)
	}

	buf, err := codec.DecodeBytes(data, rate)
	if err != nil {
		log.WithError(err).Error("Recorded audio could not be decoded")
		return nil, fmt.Errorf("engine: recording: %w", err)
	}

	clip := Clip{
		ID:       "clip-rec-" + uuid.NewString(),
		Name:     recordingName,
		Type:     ClipAudio,
		Start:    r.start,
		Duration: buf.Duration(),
		FadeIn:   recordingFade,
		FadeOut:  recordingFade,
		Gain:     1,
		Buffer:   buf,
	}

	log.WithFields(logrus.Fields{"clip_id": clip.ID, "duration": clip.Duration}).Info("Recording finished")

	return &RecordedClip{Clip: clip, TrackID: r.trackID}, nil
}

// dropRecordingLocked discards the active session.
func (e *Engine) dropRecordingLocked() {
	if e.rec == nil {
		return
	}

	e.rec.detach()
	e.rec = nil
}
