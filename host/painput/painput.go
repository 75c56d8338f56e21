// Package painput opens capture devices through PortAudio for armed audio
// tracks. It implements engine.InputOpener.
package painput

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-daw/engine"
)

// ErrDeviceNotFound is returned for a device name no capture device has.
var ErrDeviceNotFound = errors.New("painput: input device not found")

const (
	defaultFramesPerBuffer = 256
	// defaultBacklog is how much captured audio is held for the render
	// goroutine before the oldest frames are dropped.
	defaultBacklog = 500 * time.Millisecond
)

// Opener opens PortAudio capture streams at the engine sample rate.
type Opener struct {
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	backlog         time.Duration
	log             logrus.FieldLogger

	mu     sync.Mutex
	open   map[*Stream]struct{}
	closed bool
}

// Option customizes an Opener.
type Option func(*Opener)

// WithFramesPerBuffer sets the device callback size.
func WithFramesPerBuffer(n int) Option {
	return func(o *Opener) {
		if n > 0 {
			o.framesPerBuffer = n
		}
	}
}

// WithLowLatency selects the device's low input latency instead of its
// high latency.
func WithLowLatency() Option {
	return func(o *Opener) { o.lowLatency = true }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Opener) {
		if l != nil {
			o.log = l
		}
	}
}

// NewOpener initializes PortAudio. Close terminates it.
func NewOpener(sampleRate float64, opts ...Option) (*Opener, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("painput: initialize: %w", err)
	}

	o := &Opener{
		sampleRate:      sampleRate,
		framesPerBuffer: defaultFramesPerBuffer,
		backlog:         defaultBacklog,
		log:             logrus.StandardLogger(),
		open:            make(map[*Stream]struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// OpenInput opens deviceID, matched by device name; empty selects the
// default input device. PortAudio applies no echo cancellation, noise
// suppression or gain control.
func (o *Opener) OpenInput(ctx context.Context, deviceID string) (engine.InputStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, fmt.Errorf("painput: opener closed")
	}

	dev, err := findDevice(deviceID)
	if err != nil {
		return nil, err
	}

	channels := min(dev.MaxInputChannels, 2)
	if channels < 1 {
		return nil, fmt.Errorf("%w: %s has no input channels", ErrDeviceNotFound, dev.Name)
	}

	latency := dev.DefaultHighInputLatency
	if o.lowLatency {
		latency = dev.DefaultLowInputLatency
	}

	s := &Stream{
		owner:    o,
		channels: channels,
		fifo:     newFIFO(2 * int(o.backlog.Seconds()*o.sampleRate)),
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  latency,
		},
		FramesPerBuffer: o.framesPerBuffer,
		SampleRate:      o.sampleRate,
	}

	s.pa, err = portaudio.OpenStream(params, s.process)
	if err != nil {
		return nil, fmt.Errorf("painput: open %s: %w", dev.Name, err)
	}

	if err := s.pa.Start(); err != nil {
		_ = s.pa.Close()
		return nil, fmt.Errorf("painput: start %s: %w", dev.Name, err)
	}

	if err := ctx.Err(); err != nil {
		_ = s.pa.Stop()
		_ = s.pa.Close()

		return nil, err
	}

	o.open[s] = struct{}{}
	o.log.WithFields(logrus.Fields{
		"function": "OpenInput",
		"device":   dev.Name,
		"channels": channels,
		"latency":  latency,
	}).Info("Input device opened")

	return s, nil
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
		}

		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("painput: list devices: %w", err)
	}

	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// Close stops every open stream and terminates PortAudio.
func (o *Opener) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}

	o.closed = true
	streams := make([]*Stream, 0, len(o.open))
	for s := range o.open {
		streams = append(streams, s)
	}

	o.mu.Unlock()

	var errs []error
	for _, s := range streams {
		errs = append(errs, s.Close())
	}

	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("painput: terminate: %w", err))
	}

	return errors.Join(errs...)
}

// Stream is an open capture device. The device callback fills a FIFO the
// render goroutine drains through ReadFrames.
type Stream struct {
	owner    *Opener
	pa       *portaudio.Stream
	channels int
	fifo     *fifo
	once     sync.Once
}

// process receives interleaved device samples and queues them as stereo.
func (s *Stream) process(in []float32) {
	if s.channels == 2 {
		s.fifo.write(in)
		return
	}

	s.fifo.writeMono(in)
}

// ReadFrames implements graph.FrameReader.
func (s *Stream) ReadFrames(dst []float32) int {
	return s.fifo.read(dst) / 2
}

// Close stops the device stream.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		if s.owner != nil {
			s.owner.mu.Lock()
			delete(s.owner.open, s)
			s.owner.mu.Unlock()
		}

		if s.pa == nil {
			return
		}

		err = errors.Join(s.pa.Stop(), s.pa.Close())
		if err != nil {
			err = fmt.Errorf("painput: close: %w", err)
		}
	})

	return err
}

// fifo is a bounded sample queue. Writes past capacity drop the oldest
// samples, keeping whole stereo frames.
type fifo struct {
	mu   sync.Mutex
	buf  []float32
	head int
	size int
}

func newFIFO(capacity int) *fifo {
	capacity = max(capacity, 2)
	capacity += capacity % 2

	return &fifo{buf: make([]float32, capacity)}
}

func (f *fifo) push(v float32) {
	n := len(f.buf)
	if f.size == n {
		f.head = (f.head + 2) % n
		f.size -= 2
	}

	f.buf[(f.head+f.size)%n] = v
	f.size++
}

func (f *fifo) write(samples []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range samples[:len(samples)-len(samples)%2] {
		f.push(v)
	}
}

func (f *fifo) writeMono(samples []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range samples {
		f.push(v)
		f.push(v)
	}
}

// read copies up to len(dst) whole frames' worth of samples and returns
// the sample count.
func (f *fifo) read(dst []float32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(len(dst)-len(dst)%2, f.size)
	for i := range n {
		dst[i] = f.buf[(f.head+i)%len(f.buf)]
	}

	f.head = (f.head + n) % len(f.buf)
	f.size -= n

	return n
}

func (f *fifo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.size
}

var _ engine.InputOpener = (*Opener)(nil)
