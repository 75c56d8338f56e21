//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"syscall/js"

	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/dsp/plugin"
	"github.com/cwbudde/algo-daw/engine"
)

var (
	eng   *engine.Engine
	funcs []js.Func

	// Decoded audio stays on the Go side; JS refers to it by clip ID.
	buffersMu sync.Mutex
	buffers   = map[string]*graph.Buffer{}
)

var errNotInitialized = errors.New("engine not initialized")

func main() {
	api := js.Global().Get("Object").New()
	api.Set("init", export(func(args []js.Value) any {
		cfg := engine.DefaultConfig()
		if len(args) > 0 {
			cfg.SampleRate = args[0].Float()
		}

		if eng != nil {
			_ = eng.Close()
		}

		e, err := engine.New(cfg, engine.WithoutTicker())
		if err != nil {
			return err.Error()
		}

		eng = e

		return js.Null()
	}))

	api.Set("updateTrack", export(func(args []js.Value) any {
		if eng == nil || len(args) < 2 {
			return js.Null()
		}

		var track engine.Track
		if err := json.Unmarshal([]byte(args[0].String()), &track); err != nil {
			return err.Error()
		}

		all, err := parseTracks(args[1])
		if err != nil {
			return err.Error()
		}

		eng.UpdateTrack(attach(track), all)

		return js.Null()
	}))

	api.Set("deleteTrack", export(func(args []js.Value) any {
		if eng == nil || len(args) < 1 {
			return js.Null()
		}

		eng.DeleteTrack(args[0].String())

		return js.Null()
	}))

	api.Set("updatePluginParams", export(func(args []js.Value) any {
		if eng == nil || len(args) < 3 {
			return js.Null()
		}

		var params plugin.Params
		if err := json.Unmarshal([]byte(args[2].String()), &params); err != nil {
			return err.Error()
		}

		if err := eng.UpdatePluginParams(args[0].String(), args[1].String(), params); err != nil {
			return err.Error()
		}

		return js.Null()
	}))

	api.Set("setTempo", export(func(args []js.Value) any {
		if eng == nil || len(args) < 1 {
			return js.Null()
		}

		eng.SetTempo(args[0].Float())

		return js.Null()
	}))

	api.Set("play", export(func(args []js.Value) any {
		if eng == nil || len(args) < 2 {
			return js.Null()
		}

		all, err := parseTracks(args[1])
		if err != nil {
			return err.Error()
		}

		eng.StartPlayback(args[0].Float(), all)

		return js.Null()
	}))

	api.Set("stop", export(func([]js.Value) any {
		if eng != nil {
			eng.StopAll()
		}

		return js.Null()
	}))

	api.Set("seek", export(func(args []js.Value) any {
		if eng == nil || len(args) < 3 {
			return js.Null()
		}

		all, err := parseTracks(args[1])
		if err != nil {
			return err.Error()
		}

		eng.SeekTo(args[0].Float(), all, args[2].Bool())

		return js.Null()
	}))

	api.Set("render", export(func(args []js.Value) any {
		if eng == nil || len(args) < 1 {
			return js.Global().Get("Float32Array").New(0)
		}

		n := args[0].Int()
		buf := make([]float32, n)
		eng.Render(buf)
		arr := js.Global().Get("Float32Array").New(n)
		for i := 0; i < n; i++ {
			arr.SetIndex(i, buf[i])
		}

		return arr
	}))

	api.Set("triggerAttack", export(func(args []js.Value) any {
		if eng == nil || len(args) < 3 {
			return js.Null()
		}

		eng.TriggerAttack(args[0].String(), args[1].Int(), args[2].Float(), 0)

		return js.Null()
	}))

	api.Set("triggerRelease", export(func(args []js.Value) any {
		if eng == nil || len(args) < 2 {
			return js.Null()
		}

		eng.TriggerRelease(args[0].String(), args[1].Int(), 0)

		return js.Null()
	}))

	api.Set("previewNote", export(func(args []js.Value) any {
		if eng == nil || len(args) < 2 {
			return js.Null()
		}

		dur := 0.0
		if len(args) > 2 {
			dur = args[2].Float()
		}

		eng.PreviewNote(args[0].String(), args[1].Int(), dur)

		return js.Null()
	}))

	api.Set("currentTime", export(func([]js.Value) any {
		if eng == nil {
			return 0
		}

		return eng.CurrentTime()
	}))

	api.Set("isPlaying", export(func([]js.Value) any {
		return eng != nil && eng.IsPlaying()
	}))

	api.Set("masterLevel", export(func([]js.Value) any {
		out := js.Global().Get("Object").New()
		if eng == nil {
			return out
		}

		rms, peak := eng.MasterLevel()
		out.Set("rms", rms)
		out.Set("peak", peak)

		return out
	}))

	api.Set("trackLevel", export(func(args []js.Value) any {
		if eng == nil || len(args) < 1 {
			return 0
		}

		a := eng.TrackAnalyser(args[0].String())
		if a == nil {
			return 0
		}

		level := 0.0
		eng.Inspect(func() { level = a.RMS() })

		return level
	}))

	api.Set("startRecording", export(func(args []js.Value) any {
		if eng == nil || len(args) < 2 {
			return false
		}

		return eng.StartRecording(args[0].Float(), args[1].String())
	}))

	api.Set("stopRecording", export(func([]js.Value) any {
		return promise(func() (any, error) {
			if eng == nil {
				return nil, errNotInitialized
			}

			rc, err := eng.StopRecording()
			if err != nil || rc == nil {
				return nil, err
			}

			keep(rc.Clip)
			data, err := json.Marshal(rc)

			return string(data), err
		})
	}))

	api.Set("importURL", export(func(args []js.Value) any {
		url := ""
		if len(args) > 0 {
			url = args[0].String()
		}

		return promise(func() (any, error) {
			if eng == nil {
				return nil, errNotInitialized
			}

			clip, err := eng.ImportURL(context.Background(), url)

			return clipJSON(clip, err)
		})
	}))

	api.Set("importBytes", export(func(args []js.Value) any {
		if len(args) < 2 {
			return js.Null()
		}

		data := make([]byte, args[0].Length())
		js.CopyBytesToGo(data, args[0])
		name := args[1].String()

		return promise(func() (any, error) {
			if eng == nil {
				return nil, errNotInitialized
			}

			clip, err := eng.Import(context.Background(), bytesReader(data), name)

			return clipJSON(clip, err)
		})
	}))

	api.Set("loadInstrumentSample", export(func(args []js.Value) any {
		if eng == nil || len(args) < 2 {
			return js.Null()
		}

		buf := lookup(args[1].String())
		if buf == nil {
			return "unknown clip"
		}

		if err := eng.LoadInstrumentBuffer(args[0].String(), buf); err != nil {
			return err.Error()
		}

		return js.Null()
	}))

	api.Set("loadDrumPad", export(func(args []js.Value) any {
		if eng == nil || len(args) < 3 {
			return js.Null()
		}

		buf := lookup(args[2].String())
		if buf == nil {
			return "unknown clip"
		}

		if err := eng.LoadDrumPadBuffer(args[0].String(), args[1].Int(), buf); err != nil {
			return err.Error()
		}

		return js.Null()
	}))

	api.Set("playPreview", export(func(args []js.Value) any {
		url := ""
		if len(args) > 0 {
			url = args[0].String()
		}

		return promise(func() (any, error) {
			if eng == nil {
				return nil, errNotInitialized
			}

			return nil, eng.PlayPreview(context.Background(), url)
		})
	}))

	api.Set("stopPreview", export(func([]js.Value) any {
		if eng != nil {
			eng.StopPreview()
		}

		return js.Null()
	}))

	api.Set("nextNotification", export(func([]js.Value) any {
		if eng == nil {
			return js.Null()
		}

		select {
		case n, ok := <-eng.Notifications():
			if !ok {
				return js.Null()
			}

			out := js.Global().Get("Object").New()
			out.Set("trackId", n.TrackID)
			out.Set("message", n.Message)

			return out
		default:
			return js.Null()
		}
	}))

	js.Global().Set("AlgoDAW", api)
	select {}
}

func export(fn func([]js.Value) any) js.Func {
	f := js.FuncOf(func(_ js.Value, args []js.Value) any {
		return fn(args)
	})
	funcs = append(funcs, f)

	return f
}
