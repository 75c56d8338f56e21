package engine

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
)

// scheduler is the transport state. Windows are tracked in project time so
// consecutive windows share their edge exactly: an event on a boundary
// falls in precisely one window.
type scheduler struct {
	playing bool
	// offset is the project time playback started or was seeked to.
	offset float64
	// startTime is the audio-clock time of project time zero.
	startTime float64
	// cursor is the project time the next window starts at.
	cursor float64
	tracks []Track
	active map[string]*activeSource

	gen  uint64
	stop chan struct{}
}

// activeSource is a scheduled clip playback.
type activeSource struct {
	trackID string
	src     *graph.BufferSource
	gain    *graph.Gain
}

func (a *activeSource) close() {
	a.src.Close()
	a.gain.Close()
}

// position returns the project time at audio-clock time now.
func (s *scheduler) position(now float64) float64 {
	if !s.playing {
		return s.offset
	}

	return math.Max(now-s.startTime, s.offset)
}

// ActiveSources returns the number of scheduled clip playbacks still
// registered.
func (e *Engine) ActiveSources() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.sched.active)
}

// StartPlayback starts the transport at offset project seconds, restarting
// it if already playing.
func (e *Engine) StartPlayback(offset float64, tracks []Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.startLocked(offset, tracks)
}

func (e *Engine) startLocked(offset float64, tracks []Track) {
	e.stopLocked()
	s := &e.sched
	offset = math.Max(offset, 0)
	now := e.ctx.CurrentTime()
	s.playing = true
	s.offset = offset
	s.startTime = now + e.cfg.StartLatency.Seconds() - offset
	s.cursor = offset
	s.tracks = tracks
	if s.active == nil {
		s.active = make(map[string]*activeSource)
	}

	s.gen++

	e.scheduleAhead()
	if e.ticking {
		s.stop = make(chan struct{})
		go e.runTicker(s.gen, s.stop)
	}

	e.log.WithFields(logrus.Fields{
		"function": "StartPlayback",
		"offset":   offset,
		"tracks":   len(tracks),
	}).Debug("Playback started")
}

// StopAll stops the transport: the ticker is cancelled, every scheduled
// source and instrument voice is stopped and the source registry cleared.
// Stopping a stopped transport does nothing.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	s := &e.sched
	if !s.playing {
		return
	}

	s.playing = false
	s.gen++
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}

	now := e.ctx.CurrentTime()
	for id, a := range s.active {
		a.src.Stop(now)
		a.close()
		delete(s.active, id)
	}

	for _, t := range e.tracks {
		silenceInstruments(t, now)
	}

	e.log.WithField("function", "StopAll").Debug("Playback stopped")
}

func silenceInstruments(t *trackEntry, now float64) {
	for _, n := range t.instruments {
		switch inst := n.(type) {
		case plugin.Stopper:
			inst.StopAll(now)
		case plugin.Melodic:
			inst.ReleaseAll(now)
		}
	}
}

// stopTrack stops the scheduled sources of one track.
func (s *scheduler) stopTrack(trackID string, now float64) {
	for id, a := range s.active {
		if a.trackID == trackID {
			a.src.Stop(now)
			a.close()
			delete(s.active, id)
		}
	}
}

// SeekTo moves the transport to t, restarting playback if wasPlaying.
func (e *Engine) SeekTo(t float64, tracks []Track, wasPlaying bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.stopLocked()
	e.sched.offset = math.Max(t, 0)
	if wasPlaying {
		e.startLocked(t, tracks)
	}
}

func (e *Engine) runTicker(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.closed || e.sched.gen != gen {
				e.mu.Unlock()
				return
			}

			e.scheduleAhead()
			e.mu.Unlock()
		}
	}
}

// scheduleAhead fills every window starting within the look-ahead of the
// audio clock.
func (e *Engine) scheduleAhead() {
	s := &e.sched
	lookAhead := e.cfg.LookAhead.Seconds()
	horizon := e.ctx.CurrentTime() + lookAhead
	for s.startTime+s.cursor < horizon {
		start := s.cursor
		end := start + lookAhead
		e.scheduleClips(start, end)
		e.scheduleNotes(start, end)
		s.cursor = end
	}
}

// scheduleClips starts every audio clip intersecting [start, end) that is
// not already playing.
func (e *Engine) scheduleClips(start, end float64) {
	for _, track := range e.sched.tracks {
		if track.Muted || track.Type != TrackAudio {
			continue
		}

		t, ok := e.tracks[track.ID]
		if !ok {
			continue
		}

		for _, clip := range track.Clips {
			if clip.Buffer == nil || clip.Start >= end || clip.End() <= start {
				continue
			}

			if _, playing := e.sched.active[clip.ID]; playing {
				continue
			}

			e.playClip(t, clip, start)
		}
	}
}

// playClip schedules clip on t, entering it at windowStart when the clip
// began earlier.
func (e *Engine) playClip(t *trackEntry, clip Clip, windowStart float64) {
	from, offset, dur := clip.Start, clip.Offset, clip.Duration
	if windowStart > clip.Start {
		elapsed := windowStart - clip.Start
		from = windowStart
		offset += elapsed
		dur -= elapsed
	}

	if dur <= 0 {
		return
	}

	log := e.log.WithFields(logrus.Fields{
		"function": "playClip",
		"track_id": t.id,
		"clip_id":  clip.ID,
	})

	at := e.sched.startTime + from
	src := graph.NewBufferSource(e.ctx, clip.Buffer)
	gain := graph.NewGain(e.ctx)
	a := &activeSource{trackID: t.id, src: src, gain: gain}
	if err := plugin.Chain(src, gain, t.input); err != nil {
		log.WithError(err).Error("Clip source connection failed")
		a.close()

		return
	}

	applyFades(gain.Gain(), clip, from-clip.Start, at, dur)
	if err := src.Start(at, offset, dur); err != nil {
		log.WithError(err).Error("Clip source start failed")
		a.close()

		return
	}

	id := clip.ID
	e.sched.active[id] = a
	src.OnEnded(func() {
		if e.sched.active[id] == a {
			delete(e.sched.active, id)
		}

		a.close()
	})
}

// applyFades automates a clip gain: a linear fade-in entered elapsed
// seconds into the clip and a linear fade-out ending at at+dur.
func applyFades(p *graph.Param, clip Clip, elapsed, at, dur float64) {
	level := clip.level()
	end := at + dur
	fadeIn := math.Min(math.Max(clip.FadeIn, 0), clip.Duration)
	fadeOut := math.Min(math.Max(clip.FadeOut, 0), clip.Duration)

	inEnd := at
	if fadeIn > 0 && elapsed < fadeIn {
		p.SetValueAtTime(level*elapsed/fadeIn, at)
		inEnd = at + fadeIn - elapsed
		p.LinearRampToValueAtTime(level, inEnd)
	} else {
		p.SetValueAtTime(level, at)
	}

	if fadeOut > 0 {
		if outStart := end - fadeOut; outStart > inEnd {
			p.SetValueAtTime(level, outStart)
		}

		p.LinearRampToValueAtTime(0, end)
	}
}

// scheduleNotes sends the attacks and releases whose absolute times fall in
// [start, end) to instrument tracks.
func (e *Engine) scheduleNotes(start, end float64) {
	for _, track := range e.sched.tracks {
		if track.Muted || !track.Type.PlaysNotes() {
			continue
		}

		t, ok := e.tracks[track.ID]
		if !ok {
			continue
		}

		for _, clip := range track.Clips {
			if clip.Type != ClipMIDI || len(clip.Notes) == 0 || clip.Start >= end || clip.End() <= start {
				continue
			}

			for _, n := range clip.Notes {
				on := clip.Start + n.Start
				off := on + n.Duration
				if on >= start && on < end {
					e.attackLocked(t, n.Pitch, n.Velocity, e.sched.startTime+on)
				}

				if off >= start && off < end {
					e.releaseLocked(t, n.Pitch, e.sched.startTime+off)
				}
			}
		}
	}
}
