// Package midiin forwards notes from a MIDI input port to an instrument
// track.
package midiin

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
)

// NoteSink receives note events. *engine.Engine satisfies it; a when of 0
// plays immediately.
type NoteSink interface {
	TriggerAttack(trackID string, pitch int, velocity, when float64)
	TriggerRelease(trackID string, pitch int, when float64)
}

// Omni accepts every MIDI channel.
const Omni = -1

// Router maps incoming note messages onto the selected track.
type Router struct {
	sink NoteSink
	log  logrus.FieldLogger

	mu      sync.Mutex
	trackID string
	channel int
	held    map[uint8]string
}

// Option customizes a Router.
type Option func(*Router)

// WithChannel restricts the router to one zero-based MIDI channel.
func WithChannel(ch int) Option {
	return func(r *Router) { r.channel = ch }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRouter returns a router playing trackID on sink.
func NewRouter(sink NoteSink, trackID string, opts ...Option) *Router {
	r := &Router{
		sink:    sink,
		log:     logrus.StandardLogger(),
		trackID: trackID,
		channel: Omni,
		held:    make(map[uint8]string),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SetTrack retargets later notes. Held notes are released on the track
// that started them.
func (r *Router) SetTrack(trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackID = trackID
}

// Handle processes one message. Its signature matches midi.ListenTo.
func (r *Router) Handle(msg midi.Message, _ int32) {
	var ch, key, vel uint8
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !r.accepts(ch) || r.trackID == "" {
			return
		}

		r.held[key] = r.trackID
		r.sink.TriggerAttack(r.trackID, int(key), float64(vel)/127, 0)
	case msg.GetNoteEnd(&ch, &key):
		if !r.accepts(ch) {
			return
		}

		track, ok := r.held[key]
		if !ok {
			return
		}

		delete(r.held, key)
		r.sink.TriggerRelease(track, int(key), 0)
	}
}

func (r *Router) accepts(ch uint8) bool {
	return r.channel == Omni || int(ch) == r.channel
}

// ReleaseAll releases every held note.
func (r *Router) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, track := range r.held {
		r.sink.TriggerRelease(track, int(key), 0)
		delete(r.held, key)
	}
}

// Ports lists the MIDI input port names of the registered driver.
func Ports() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}

	return names
}

// Listen opens the named input port and feeds it to r until stop is
// called. A driver must be registered, for example by importing
// gitlab.com/gomidi/midi/v2/drivers/rtmididrv.
func Listen(port string, r *Router) (stop func(), err error) {
	in, err := midi.FindInPort(port)
	if err != nil {
		return nil, fmt.Errorf("midiin: find %q: %w", port, err)
	}

	stopFn, err := midi.ListenTo(in, r.Handle)
	if err != nil {
		return nil, fmt.Errorf("midiin: listen %q: %w", port, err)
	}

	r.log.WithFields(logrus.Fields{
		"function": "Listen",
		"port":     in.String(),
	}).Info("MIDI input opened")

	return func() {
		stopFn()
		r.ReleaseAll()
		_ = in.Close()
	}, nil
}
