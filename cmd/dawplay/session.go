package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-daw/codec"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
	"github.com/cwbudde/algo-daw/engine"
)

const (
	audioTrackID = "audio-1"
	inputTrackID = "input-1"
	midiTrackID  = "midi-1"

	// tailSeconds lets reverb and delay tails ring out after the last clip.
	tailSeconds = 1.5

	renderChunk = 1024
)

// session is one dawplay run.
type session struct {
	cfg        engine.Config
	log        logrus.FieldLogger
	files      []string
	fx         string
	midiPort   string
	instrument string
	mic        bool
	record     string
	seconds    float64
}

// parseEffects turns a comma-separated kind list into enabled plugin
// descriptors.
func parseEffects(list string) ([]plugin.Descriptor, error) {
	var out []plugin.Descriptor
	for i, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		kind := plugin.Kind(strings.ToUpper(name)).Normalize()
		if kind.IsInstrument() {
			return nil, fmt.Errorf("%s is an instrument, not an effect", kind)
		}

		out = append(out, plugin.Descriptor{
			ID:      fmt.Sprintf("fx-%d-%s", i+1, strings.ToLower(string(kind))),
			Kind:    kind,
			Enabled: true,
		})
	}

	return out, nil
}

// build creates the engine and its tracks. It returns the track list and
// the length of the imported material in seconds.
func (s *session) build(ctx context.Context, opts ...engine.Option) (*engine.Engine, []engine.Track, float64, error) {
	effects, err := parseEffects(s.fx)
	if err != nil {
		return nil, nil, 0, err
	}

	e, err := engine.New(s.cfg, append(opts, engine.WithLogger(s.log))...)
	if err != nil {
		return nil, nil, 0, err
	}

	var tracks []engine.Track
	audio := engine.Track{ID: audioTrackID, Name: "Audio", Type: engine.TrackAudio, Volume: 1, Plugins: effects}
	var cursor float64
	for _, path := range s.files {
		clip, err := e.ImportFile(ctx, path)
		if err != nil {
			_ = e.Close()
			return nil, nil, 0, err
		}

		clip.Start = cursor
		cursor += clip.Duration
		audio.Clips = append(audio.Clips, *clip)
		s.log.WithFields(logrus.Fields{
			"file":     path,
			"start":    clip.Start,
			"duration": clip.Duration,
		}).Info("Clip imported")
	}

	tracks = append(tracks, audio)

	if s.mic {
		tracks = append(tracks, engine.Track{
			ID: inputTrackID, Name: "Input", Type: engine.TrackAudio, Volume: 1,
			Armed: true, InputDeviceID: "mic-default", Plugins: effects,
		})
	}

	if s.midiPort != "" {
		kind := plugin.Kind(strings.ToUpper(s.instrument)).Normalize()
		if !kind.IsInstrument() {
			_ = e.Close()
			return nil, nil, 0, fmt.Errorf("%s is not an instrument", kind)
		}

		tracks = append(tracks, engine.Track{
			ID: midiTrackID, Name: "MIDI", Type: engine.TrackMIDI, Volume: 0.8,
			Plugins: []plugin.Descriptor{{ID: "instrument", Kind: kind, Enabled: true}},
		})
	}

	for _, t := range tracks {
		e.UpdateTrack(t, tracks)
	}

	return e, tracks, cursor, nil
}

// renderTo renders the session offline into a 16-bit WAV file.
func (s *session) renderTo(path string) error {
	if s.mic || s.midiPort != "" {
		return errors.New("live input cannot be rendered offline")
	}

	e, tracks, length, err := s.build(context.Background(), engine.WithoutTicker())
	if err != nil {
		return err
	}

	defer e.Close()

	total := s.runTime(length)
	if total <= 0 {
		return errors.New("nothing to render")
	}

	frames := int(total.Seconds() * s.cfg.SampleRate)
	enc, err := codec.NewEncoder(int(s.cfg.SampleRate), graph.Channels, 16)
	if err != nil {
		return err
	}

	e.StartPlayback(0, tracks)
	chunk := make([]float32, graph.Channels*renderChunk)
	for done := 0; done < frames; done += renderChunk {
		n := min(renderChunk, frames-done)
		e.Render(chunk[:graph.Channels*n])
		if err := enc.Write(chunk[:graph.Channels*n]); err != nil {
			return err
		}
	}

	e.StopAll()

	data, err := enc.Close()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"file": path, "frames": frames}).Info("Render finished")

	return nil
}

// writeWAV encodes buf as 16-bit WAV.
func writeWAV(path string, buf *graph.Buffer) error {
	channels := buf.NumChannels()
	enc, err := codec.NewEncoder(int(buf.SampleRate), channels, 16)
	if err != nil {
		return err
	}

	frames := make([]float32, 0, channels*buf.Frames())
	for i := range buf.Frames() {
		for ch := range channels {
			frames = append(frames, float32(buf.Channels[ch][i]))
		}
	}

	if err := enc.Write(frames); err != nil {
		return err
	}

	data, err := enc.Close()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
