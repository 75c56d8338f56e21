package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-daw/dsp/graph"
)

// InputStream is an open live input, such as a microphone. Frames are read
// from the render goroutine.
type InputStream interface {
	graph.FrameReader
	Close() error
}

// InputOpener acquires live inputs. Implementations open the device with
// echo cancellation, noise suppression and automatic gain disabled. An
// empty deviceID selects the default device.
type InputOpener interface {
	OpenInput(ctx context.Context, deviceID string) (InputStream, error)
}

// InputOpenerFunc adapts a function to InputOpener.
type InputOpenerFunc func(ctx context.Context, deviceID string) (InputStream, error)

// OpenInput calls f.
func (f InputOpenerFunc) OpenInput(ctx context.Context, deviceID string) (InputStream, error) {
	return f(ctx, deviceID)
}

// liveInput is an attached input stream feeding a track's input stage.
type liveInput struct {
	stream InputStream
	source *graph.StreamSource
}

// acquisition is a pending asynchronous input open.
type acquisition struct {
	cancel context.CancelFunc
}

// defaultInputDevice is the UI's name for the default device.
const defaultInputDevice = "mic-default"

// reconcileInput attaches or releases the live input of an audio track.
// Opening runs in its own goroutine; its result is applied under the lock
// only if the track is still waiting for that acquisition.
func (e *Engine) reconcileInput(t *trackEntry, track Track) {
	if track.Type != TrackAudio {
		return
	}

	if !track.Armed {
		if t.acquiring != nil {
			t.acquiring.cancel()
			t.acquiring = nil
		}

		if t.live != nil {
			t.detachInput()
			e.log.WithFields(logrus.Fields{
				"function": "reconcileInput",
				"track_id": t.id,
			}).Info("Live input released")
		}

		return
	}

	if t.live != nil || t.acquiring != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	acq := &acquisition{cancel: cancel}
	t.acquiring = acq
	device := track.InputDeviceID
	if device == defaultInputDevice {
		device = ""
	}

	go e.acquireInput(ctx, t, acq, device)
}

func (e *Engine) acquireInput(ctx context.Context, t *trackEntry, acq *acquisition, device string) {
	var (
		stream InputStream
		err    error
	)
	if e.inputs == nil {
		err = ErrNoInputDevice
	} else {
		stream, err = e.inputs.OpenInput(ctx, device)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	log := e.log.WithFields(logrus.Fields{
		"function": "acquireInput",
		"track_id": t.id,
	})
	current := !e.closed && t.acquiring == acq && e.tracks[t.id] == t
	if current {
		t.acquiring = nil
	}

	acq.cancel()

	if err != nil {
		if !current {
			return
		}

		log.WithError(err).Warn("Live input unavailable, track left un-monitored")
		e.notifyLocked(Notification{
			TrackID: t.id,
			Message: fmt.Sprintf("Could not access the input device for track %s. Check permissions.", t.id),
			Err:     err,
		})

		return
	}

	if !current {
		_ = stream.Close()
		return
	}

	src := graph.NewStreamSource(e.ctx, stream)
	if err := src.Connect(t.input); err != nil {
		log.WithError(err).Error("Live input connection failed")
		src.Close()
		_ = stream.Close()

		return
	}

	t.live = &liveInput{stream: stream, source: src}
	log.Info("Live input attached")
}

// detachInput disconnects and closes the live input, if any.
func (t *trackEntry) detachInput() {
	if t.live == nil {
		return
	}

	t.live.source.Close()
	_ = t.live.stream.Close()
	t.live = nil
}
