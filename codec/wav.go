package codec

import (
	"bytes"
	"fmt"
	"math"

	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-daw/dsp/graph"
)

// decodeWAV decodes integer PCM with go-audio, normalising by 2^(bits-1)
// so full scale matches what Encoder writes. Other WAVE encodings go
// through beep.
func decodeWAV(data []byte, sampleRate float64) (*graph.Buffer, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: %s: invalid header", ErrDecode, FormatWAV)
	}

	if d.WavAudioFormat != wavPCMFormat {
		return decodeBeep(FormatWAV, data, sampleRate)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, FormatWAV, err)
	}

	channels := int(d.NumChans)
	if channels == 0 || len(pcm.Data) < channels {
		return nil, fmt.Errorf("%w: %s: no audio frames", ErrDecode, FormatWAV)
	}

	frames := len(pcm.Data) / channels
	bits := int(d.BitDepth)
	scale := math.Exp2(float64(bits - 1))
	// 8-bit WAVE samples are unsigned.
	var offset float64
	if bits == 8 {
		offset = 128
	}

	buf := &graph.Buffer{
		SampleRate: float64(d.SampleRate),
		Channels:   make([][]float64, min(channels, graph.Channels)),
	}

	for ch := range buf.Channels {
		out := make([]float64, frames)
		for i := range out {
			out[i] = (float64(pcm.Data[i*channels+ch]) - offset) / scale
		}

		buf.Channels[ch] = out
	}

	if sampleRate > 0 && math.Round(sampleRate) != math.Round(buf.SampleRate) {
		return resample(buf, sampleRate)
	}

	return buf, nil
}
