package graph

import (
	"math"

	"github.com/cwbudde/algo-daw/dsp/core"
)

// BufferSource plays a Buffer once or looped, starting at a scheduled clock
// time. It ends at its stop time or when playback runs past the requested
// region, whichever comes first, whether or not it is being pulled.
type BufferSource struct {
	*node
	source
	buffer       *Buffer
	playbackRate *Param
	detune       *Param

	loop      bool
	loopStart float64
	loopEnd   float64

	offset    float64
	regionEnd float64
	position  float64
	natural   float64
}

// NewBufferSource returns an unscheduled source for buf.
func NewBufferSource(ctx *Context, buf *Buffer) *BufferSource {
	s := &BufferSource{buffer: buf, natural: math.Inf(1)}
	s.node = newNode(ctx, 0, s.process)
	s.source = newSource(s.node)
	s.playbackRate = s.addParam("playbackRate", 1, -1024, 1024)
	s.detune = s.addParam("detune", 0, -153600, 153600)

	return s
}

// Buffer returns the played buffer.
func (s *BufferSource) Buffer() *Buffer { return s.buffer }

// PlaybackRate returns the rate param (1 = original speed).
func (s *BufferSource) PlaybackRate() *Param { return s.playbackRate }

// Detune returns the detune param in cents.
func (s *BufferSource) Detune() *Param { return s.detune }

// SetLoop enables looping between start and end seconds. An end of zero
// loops the whole buffer.
func (s *BufferSource) SetLoop(loop bool, start, end float64) {
	s.loop = loop
	s.loopStart = math.Max(0, start)
	s.loopEnd = end
}

// Start schedules playback at clock time when, reading from offset seconds
// into the buffer for at most duration seconds of buffer time. A
// non-positive duration plays to the end of the buffer.
func (s *BufferSource) Start(when, offset, duration float64) error {
	if err := s.start(s, when); err != nil {
		return err
	}

	total := s.buffer.Duration()
	s.offset = core.Clamp(offset, 0, total)
	s.regionEnd = total
	if duration > 0 && s.offset+duration < total {
		s.regionEnd = s.offset + duration
	}

	s.position = s.offset * s.buffer.SampleRate

	rate := math.Abs(s.playbackRate.FinalValue() * core.SemitoneRatio(s.detune.FinalValue()/100))
	switch {
	case s.loop && duration > 0:
		s.natural = s.startTime + duration
	case s.loop:
		s.natural = math.Inf(1)
	case rate > 0:
		s.natural = s.startTime + (s.regionEnd-s.offset)/rate
	}

	return nil
}

// Stop schedules the end of playback at clock time when.
func (s *BufferSource) Stop(when float64) { s.stop(when) }

func (s *BufferSource) endTime() float64 { return math.Min(s.stopTime, s.natural) }

func (s *BufferSource) active(t float64) bool {
	return s.source.active(t) && t < s.natural
}

func (s *BufferSource) process(n *node) {
	buf := s.buffer
	if buf == nil || buf.Frames() == 0 {
		n.silence()
		return
	}

	step := buf.SampleRate / n.ctx.sampleRate
	endFrame := s.regionEnd * buf.SampleRate
	loopStart, loopEnd := s.loopStart*buf.SampleRate, s.loopEnd*buf.SampleRate
	if loopEnd <= loopStart || loopEnd > float64(buf.Frames()) {
		loopEnd = float64(buf.Frames())
	}

	for i := range n.out[0] {
		t := n.ctx.sampleTime(i)
		if !s.active(t) {
			n.out[0][i], n.out[1][i] = 0, 0
			continue
		}

		if s.loop && s.position >= loopEnd {
			s.position = loopStart + math.Mod(s.position-loopStart, loopEnd-loopStart)
		}

		if !s.loop && s.position >= endFrame {
			s.natural = math.Min(s.natural, t)
			n.out[0][i], n.out[1][i] = 0, 0
			continue
		}

		n.out[0][i] = buf.sampleAt(0, s.position)
		n.out[1][i] = buf.sampleAt(1, s.position)
		rate := s.playbackRate.at(i) * core.SemitoneRatio(s.detune.at(i)/100)
		s.position += rate * step
		if s.position < 0 && !s.loop {
			s.natural = math.Min(s.natural, t)
		}
	}
}
