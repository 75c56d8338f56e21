package engine

import (
	"fmt"
	"math"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-daw/dsp/core"
	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
	"github.com/cwbudde/algo-daw/dsp/plugin/builtin"
)

const (
	masterFFTSize   = 2048
	trackFFTSize    = 2048
	inputFFTSize    = 1024
	inputSmoothing  = 0.5
	meterSmoothing  = 0.8
	notifyBacklog   = 16
	limiterThreshDB = -0.5
	limiterRatio    = 20
	limiterAttack   = 0.005
)

// Engine is the audio engine. Create it with New.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	log      logrus.FieldLogger
	ctx      *graph.Context
	registry *plugin.Registry
	inputs   InputOpener
	client   *http.Client
	ticking  bool

	master  *masterBus
	preview *previewLane
	tracks  map[string]*trackEntry
	sched   scheduler
	rec     *recording
	tempo   float64

	notify chan Notification
	closed bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is a logrus logger at the
// configured level.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRegistry replaces the plugin registry.
func WithRegistry(r *plugin.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithInputOpener sets the live input provider used for armed audio tracks.
func WithInputOpener(o InputOpener) Option {
	return func(e *Engine) { e.inputs = o }
}

// WithHTTPClient sets the client used by ImportURL and PlayPreview.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.client = c
		}
	}
}

// WithoutTicker disables the scheduler goroutine. Render and Advance then
// drive scheduling, for offline rendering and tests.
func WithoutTicker() Option {
	return func(e *Engine) { e.ticking = false }
}

// New builds an engine with its master bus and preview lane.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		ctx:     graph.NewContext(core.WithSampleRate(cfg.SampleRate), core.WithBlockSize(cfg.BlockSize)),
		client:  http.DefaultClient,
		ticking: true,
		tracks:  make(map[string]*trackEntry),
		tempo:   cfg.Tempo,
		notify:  make(chan Notification, notifyBacklog),
	}

	e.registry = builtin.Registry(builtin.WithTempo(func() float64 { return e.tempo }))
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if e.log == nil {
		l := logrus.New()
		level, _ := logrus.ParseLevel(cfg.LogLevel)
		l.SetLevel(level)
		e.log = l
	}

	var err error
	if e.master, err = newMasterBus(e.ctx); err != nil {
		return nil, fmt.Errorf("engine: master bus: %w", err)
	}

	if e.preview, err = newPreviewLane(e.ctx, cfg.PreviewGain); err != nil {
		e.master.close()
		return nil, fmt.Errorf("engine: preview lane: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"function":    "New",
		"sample_rate": cfg.SampleRate,
		"block_size":  cfg.BlockSize,
	}).Info("Audio engine created")

	return e, nil
}

// masterBus sums every routed track: sum -> limiter -> analyser ->
// destination, with a splitter feeding per-channel analysers.
type masterBus struct {
	sum      *graph.Gain
	limiter  *graph.DynamicsCompressor
	analyser *graph.Analyser
	splitter *graph.ChannelSplitter
	left     *graph.Analyser
	right    *graph.Analyser
}

func newMasterBus(ctx *graph.Context) (*masterBus, error) {
	m := &masterBus{
		sum:      graph.NewGain(ctx),
		limiter:  graph.NewDynamicsCompressor(ctx),
		splitter: graph.NewChannelSplitter(ctx),
	}

	var err error
	if m.analyser, err = graph.NewAnalyser(ctx, masterFFTSize, meterSmoothing); err != nil {
		m.close()
		return nil, err
	}

	if m.left, err = graph.NewAnalyser(ctx, masterFFTSize, meterSmoothing); err != nil {
		m.close()
		return nil, err
	}

	if m.right, err = graph.NewAnalyser(ctx, masterFFTSize, meterSmoothing); err != nil {
		m.close()
		return nil, err
	}

	m.limiter.Threshold().SetValue(limiterThreshDB)
	m.limiter.Ratio().SetValue(limiterRatio)
	m.limiter.Attack().SetValue(limiterAttack)

	if err := plugin.Chain(m.sum, m.limiter, m.analyser, ctx.Destination()); err != nil {
		m.close()
		return nil, err
	}

	if err := plugin.Chain(m.analyser, m.splitter); err != nil {
		m.close()
		return nil, err
	}

	if err := m.splitter.Output(0).Connect(m.left); err != nil {
		m.close()
		return nil, err
	}

	if err := m.splitter.Output(1).Connect(m.right); err != nil {
		m.close()
		return nil, err
	}

	return m, nil
}

func (m *masterBus) close() {
	plugin.CloseAll(m.sum, m.limiter)
	if m.splitter != nil {
		m.splitter.Close()
	}

	for _, a := range []*graph.Analyser{m.analyser, m.left, m.right} {
		if a != nil {
			a.Close()
		}
	}
}

// Render fills dst with interleaved stereo frames. It is the host's audio
// callback; source end callbacks run inside it. Without a ticker it also
// runs the scheduler once per tick interval of rendered audio.
func (e *Engine) Render(dst []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		clear(dst)
		return
	}

	if e.ticking {
		e.ctx.Render(dst)
		return
	}

	step := graph.Channels * max(1, int(e.cfg.TickInterval.Seconds()*e.cfg.SampleRate))
	for len(dst) > 0 {
		if e.sched.playing {
			e.scheduleAhead()
		}

		n := min(step, len(dst))
		e.ctx.Render(dst[:n])
		dst = dst[n:]
	}
}

// Advance renders and discards seconds of audio, running the scheduler once
// per tick interval as the ticker would.
func (e *Engine) Advance(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	tick := e.cfg.TickInterval.Seconds()
	target := e.ctx.CurrentTime() + seconds
	for {
		now := e.ctx.CurrentTime()
		if now >= target {
			return
		}

		if e.sched.playing {
			e.scheduleAhead()
		}

		e.ctx.Advance(math.Min(tick, target-now))
	}
}

// Inspect runs fn under the engine lock, for reading analysers while the
// host renders concurrently.
func (e *Engine) Inspect(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// SampleRate returns the render sample rate.
func (e *Engine) SampleRate() float64 { return e.cfg.SampleRate }

// Config returns the engine settings.
func (e *Engine) Config() Config { return e.cfg }

// AudioTime returns the audio clock in seconds.
func (e *Engine) AudioTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ctx.CurrentTime()
}

// CurrentTime returns the transport position in project seconds.
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sched.position(e.ctx.CurrentTime())
}

// IsPlaying reports whether the transport runs.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sched.playing
}

// TrackAnalyser returns the input analyser while a live input is attached
// to the track, else its post-fader analyser; nil for unknown tracks.
func (e *Engine) TrackAnalyser(trackID string) *graph.Analyser {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tracks[trackID]
	if !ok {
		return nil
	}

	if t.live != nil {
		return t.inputAnalyser
	}

	return t.analyser
}

// MasterAnalyser returns the post-limiter analyser.
func (e *Engine) MasterAnalyser() *graph.Analyser { return e.master.analyser }

// MasterChannelAnalysers returns the left and right channel analysers.
func (e *Engine) MasterChannelAnalysers() (left, right *graph.Analyser) {
	return e.master.left, e.master.right
}

// PreviewAnalyser returns the preview lane analyser.
func (e *Engine) PreviewAnalyser() *graph.Analyser { return e.preview.analyser }

// MasterLevel returns the master RMS and peak of the latest window.
func (e *Engine) MasterLevel() (rms, peak float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.master.analyser.RMS(), e.master.analyser.Peak()
}

// PluginInstance returns the live node for a plugin id, including
// instrument descriptors, or nil.
func (e *Engine) PluginInstance(trackID, pluginID string) plugin.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tracks[trackID]
	if !ok {
		return nil
	}

	return t.pluginNode(pluginID)
}

// UpdatePluginParams pushes a parameter-only edit into a live node without
// rebuilding the track graph.
func (e *Engine) UpdatePluginParams(trackID, pluginID string, params plugin.Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tracks[trackID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}

	n := t.pluginNode(pluginID)
	if n == nil {
		return fmt.Errorf("%w: %s on track %s", ErrPluginNotFound, pluginID, trackID)
	}

	n.UpdateParams(params)

	return nil
}

// SetTempo changes the project tempo and re-times every tempo-synced node.
func (e *Engine) SetTempo(bpm float64) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tempo = bpm
	for _, t := range e.tracks {
		for _, n := range t.plugins {
			if ts, ok := n.(plugin.TempoSynced); ok {
				ts.SetTempo(bpm)
			}
		}
	}
}

// Tempo returns the project tempo.
func (e *Engine) Tempo() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tempo
}

// Notifications delivers asynchronous user-facing events. The channel is
// closed by Close.
func (e *Engine) Notifications() <-chan Notification { return e.notify }

// notifyLocked queues n without blocking; the caller holds the lock.
func (e *Engine) notifyLocked(n Notification) {
	if e.closed {
		return
	}

	select {
	case e.notify <- n:
	default:
		e.log.WithFields(logrus.Fields{
			"function": "notify",
			"track_id": n.TrackID,
		}).Warn("Notification dropped, backlog full")
	}
}

// DeleteTrack destroys a track's DSP entry. Tracks routed into it fall
// back to the master bus.
func (e *Engine) DeleteTrack(trackID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tracks[trackID]
	if !ok {
		return
	}

	if e.rec != nil && e.rec.trackID == trackID {
		e.dropRecordingLocked()
	}

	e.sched.stopTrack(trackID, e.ctx.CurrentTime())
	t.close()
	delete(e.tracks, trackID)
	for _, other := range e.tracks {
		if other.target == trackID {
			e.routeLocked(other, MasterID)
		}
	}

	e.applyMixLocked()
	e.log.WithFields(logrus.Fields{
		"function": "DeleteTrack",
		"track_id": trackID,
	}).Debug("Track deleted")
}

// Reset stops everything and destroys every track entry, keeping the
// master bus.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.stopLocked()
	e.dropRecordingLocked()
	e.stopPreviewLocked()
	for id, t := range e.tracks {
		t.close()
		delete(e.tracks, id)
	}
}

// Close releases every node and stops background work. The engine renders
// silence afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	e.resetLocked()
	e.preview.close()
	e.master.close()
	e.closed = true
	close(e.notify)
	e.log.WithField("function", "Close").Info("Audio engine closed")

	return nil
}
