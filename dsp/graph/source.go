package graph

import (
	"errors"
	"math"
)

// ErrAlreadyStarted is returned when a scheduled source is started twice.
var ErrAlreadyStarted = errors.New("graph: source already started")

// source holds the start/stop schedule shared by scheduled sources.
type source struct {
	n         *node
	startTime float64
	stopTime  float64
	started   bool
	ended     bool
	onEnded   func()
}

func newSource(n *node) source {
	return source{n: n, stopTime: math.Inf(1)}
}

func (s *source) start(owner scheduled, when float64) error {
	if s.started {
		return ErrAlreadyStarted
	}

	if s.n.closed {
		return ErrNodeClosed
	}

	s.started = true
	s.startTime = math.Max(when, 0)
	s.n.ctx.addSource(owner)

	return nil
}

func (s *source) stop(when float64) {
	if s.ended {
		return
	}

	when = math.Max(when, 0)
	if when < s.stopTime {
		s.stopTime = when
	}
}

// active reports whether the source sounds at clock time t.
func (s *source) active(t float64) bool {
	return s.started && !s.ended && t >= s.startTime && t < s.stopTime
}

func (s *source) finish() {
	if s.ended {
		return
	}

	s.ended = true
	s.n.ctx.queueEnded(s.onEnded)
}

// Ended reports whether the source finished playing.
func (s *source) Ended() bool { return s.ended }

// Started reports whether Start was called.
func (s *source) Started() bool { return s.started }

// OnEnded registers fn to run once, after the render quantum in which the
// source ended.
func (s *source) OnEnded(fn func()) { s.onEnded = fn }
