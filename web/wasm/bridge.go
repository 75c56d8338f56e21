//go:build js && wasm

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"syscall/js"

	"github.com/cwbudde/algo-daw/dsp/graph"
	"github.com/cwbudde/algo-daw/engine"
)

// promise runs fn off the event loop and settles a JS Promise with its
// result.
func promise(fn func() (any, error)) js.Value {
	var handler js.Func
	handler = js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			defer handler.Release()
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}

			if v == nil {
				resolve.Invoke(js.Null())
				return
			}

			resolve.Invoke(v)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}

func parseTracks(v js.Value) ([]engine.Track, error) {
	var tracks []engine.Track
	if err := json.Unmarshal([]byte(v.String()), &tracks); err != nil {
		return nil, err
	}

	for i := range tracks {
		tracks[i] = attach(tracks[i])
	}

	return tracks, nil
}

// attach resolves clip IDs to their decoded buffers.
func attach(t engine.Track) engine.Track {
	buffersMu.Lock()
	defer buffersMu.Unlock()
	for i := range t.Clips {
		if b, ok := buffers[t.Clips[i].ID]; ok {
			t.Clips[i].Buffer = b
		}
	}

	return t
}

func keep(c engine.Clip) {
	buffersMu.Lock()
	defer buffersMu.Unlock()
	buffers[c.ID] = c.Buffer
}

func lookup(clipID string) *graph.Buffer {
	buffersMu.Lock()
	defer buffersMu.Unlock()

	return buffers[clipID]
}

func clipJSON(c *engine.Clip, err error) (any, error) {
	if err != nil {
		return nil, err
	}

	keep(*c)
	data, err := json.Marshal(c)

	return string(data), err
}

func bytesReader(data []byte) io.Reader { return bytes.NewReader(data) }
