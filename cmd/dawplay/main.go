// Command dawplay plays audio files through the engine, optionally through
// an effect chain, on the default output device or into a WAV file.
//
// Usage:
//
//	dawplay [flags] file ...
//
// The files are placed back to back on one audio track.
//
// Examples:
//
//	dawplay loop.wav
//	dawplay -fx REVERB,DELAY -tempo 96 vocals.flac
//	dawplay -render mix.wav -fx COMPRESSOR drums.mp3 bass.ogg
//	dawplay -midi "Keystation" -instrument SYNTH
//	dawplay -mic -record take.wav -seconds 10
//	dawplay -list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cwbudde/algo-daw/dsp/plugin/builtin"
	"github.com/cwbudde/algo-daw/engine"
	"github.com/cwbudde/algo-daw/host/midiin"
	"github.com/cwbudde/algo-daw/host/otoout"
	"github.com/cwbudde/algo-daw/host/painput"
)

func main() {
	configPath := flag.String("config", "", "YAML engine config (ALGO_DAW_* variables override it)")
	fx := flag.String("fx", "", "comma-separated effect kinds for the audio track, e.g. REVERB,DELAY")
	tempo := flag.Float64("tempo", 0, "project tempo in BPM (default from config)")
	render := flag.String("render", "", "render offline into this WAV file instead of the output device")
	seconds := flag.Float64("seconds", 0, "run time in seconds (default: length of the files)")
	midiPort := flag.String("midi", "", "MIDI input port to play an instrument track from")
	instrument := flag.String("instrument", "SYNTH", "instrument kind for -midi")
	mic := flag.Bool("mic", false, "arm a monitored input track on the default capture device")
	record := flag.String("record", "", "record the input track into this WAV file (implies -mic)")
	list := flag.Bool("list", false, "list plugin kinds")
	ports := flag.Bool("ports", false, "list MIDI input ports")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dawplay [flags] file ...\n\n")
		fmt.Fprintf(os.Stderr, "Plays audio files through the engine.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dawplay -fx REVERB,DELAY -tempo 96 vocals.flac\n")
		fmt.Fprintf(os.Stderr, "  dawplay -render mix.wav drums.mp3\n")
		fmt.Fprintf(os.Stderr, "  dawplay -list\n")
	}

	flag.Parse()

	if *list {
		printKinds()
		return
	}

	if *ports {
		for _, p := range midiin.Ports() {
			fmt.Println(p)
		}

		return
	}

	cfg, err := engine.LoadConfig(*configPath)
	if err != nil {
		fatalf("%v", err)
	}

	if *tempo > 0 {
		cfg.Tempo = *tempo
	}

	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	sess := session{
		cfg:        cfg,
		log:        log,
		files:      flag.Args(),
		fx:         *fx,
		midiPort:   *midiPort,
		instrument: *instrument,
		mic:        *mic || *record != "",
		record:     *record,
		seconds:    *seconds,
	}

	if *render != "" {
		err = sess.renderTo(*render)
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = sess.play(ctx)
		stop()
	}

	if err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func printKinds() {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Kind\tRole\n----\t----\n")
	for _, k := range builtin.Registry().Kinds() {
		role := "effect"
		if k.IsInstrument() {
			role = "instrument"
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, role)
	}

	if err := tw.Flush(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
}

// play runs the session on the output device until the files end, the
// time limit passes or ctx is cancelled.
func (s *session) play(ctx context.Context) error {
	var opts []engine.Option
	var opener *painput.Opener
	if s.mic {
		var err error
		if opener, err = painput.NewOpener(s.cfg.SampleRate, painput.WithLogger(s.log)); err != nil {
			return err
		}

		defer opener.Close()
		opts = append(opts, engine.WithInputOpener(opener))
	}

	e, tracks, length, err := s.build(ctx, opts...)
	if err != nil {
		return err
	}

	defer e.Close()

	out, err := otoout.Open(e, otoout.Options{SampleRate: int(s.cfg.SampleRate), Logger: s.log})
	if err != nil {
		return err
	}

	defer out.Close()

	if s.midiPort != "" {
		stop, err := midiin.Listen(s.midiPort, midiin.NewRouter(e, midiTrackID, midiin.WithLogger(s.log)))
		if err != nil {
			return err
		}

		defer stop()
	}

	if s.record != "" && !e.StartRecording(0, inputTrackID) {
		return errors.New("recording could not start")
	}

	e.StartPlayback(0, tracks)
	go s.reportNotifications(e)

	wait := s.runTime(length)
	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
	case <-timeout:
	}

	e.StopAll()

	if s.record != "" {
		return s.saveRecording(e)
	}

	return nil
}

func (s *session) reportNotifications(e *engine.Engine) {
	for n := range e.Notifications() {
		s.log.WithFields(logrus.Fields{"track_id": n.TrackID}).WithError(n.Err).Warn(n.Message)
	}
}

// runTime returns how long to play: the -seconds flag, else the file
// length plus a release tail, else until interrupted.
func (s *session) runTime(length float64) time.Duration {
	switch {
	case s.seconds > 0:
		return time.Duration(s.seconds * float64(time.Second))
	case length > 0:
		return time.Duration((length + tailSeconds) * float64(time.Second))
	}

	return 0
}

func (s *session) saveRecording(e *engine.Engine) error {
	rc, err := e.StopRecording()
	if err != nil {
		return err
	}

	if rc == nil {
		return errors.New("no recording")
	}

	if err := writeWAV(s.record, rc.Clip.Buffer); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"file":     s.record,
		"duration": rc.Clip.Duration,
	}).Info("Recording saved")

	return nil
}
