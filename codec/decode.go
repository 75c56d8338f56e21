package codec

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/cwbudde/algo-daw/dsp/graph"
)

// resampleQuality is the beep resampler quality used when the source rate
// differs from the target.
const resampleQuality = 4

// streamChunk is the number of frames pulled from a streamer per read.
const streamChunk = 4096

// Decode reads all of r and decodes it to a buffer at sampleRate. A
// sampleRate of zero keeps the source rate.
func Decode(r io.Reader, sampleRate float64) (*graph.Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrDecode, err)
	}

	return DecodeBytes(data, sampleRate)
}

// DecodeBytes decodes an in-memory file to a buffer at sampleRate.
func DecodeBytes(data []byte, sampleRate float64) (*graph.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	format := Sniff(data)
	switch format {
	case FormatWAV:
		return decodeWAV(data, sampleRate)
	case FormatMP3, FormatFLAC, FormatVorbis:
		return decodeBeep(format, data, sampleRate)
	case FormatOpus:
		return decodeOggOpus(data, sampleRate)
	case FormatWebM:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return nil, fmt.Errorf("%w: unrecognised header", ErrUnsupportedFormat)
}

func decodeBeep(format Format, data []byte, sampleRate float64) (*graph.Buffer, error) {
	var (
		stream beep.StreamSeekCloser
		bf     beep.Format
		err    error
	)
	switch format {
	case FormatWAV:
		stream, bf, err = wav.Decode(bytes.NewReader(data))
	case FormatMP3:
		stream, bf, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case FormatFLAC:
		stream, bf, err = flac.Decode(bytes.NewReader(data))
	case FormatVorbis:
		stream, bf, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, format, err)
	}

	defer stream.Close()

	var src beep.Streamer = stream
	outRate := bf.SampleRate
	if sampleRate > 0 && beep.SampleRate(math.Round(sampleRate)) != bf.SampleRate {
		outRate = beep.SampleRate(math.Round(sampleRate))
		src = beep.Resample(resampleQuality, bf.SampleRate, outRate, stream)
	}

	channels := min(max(bf.NumChannels, 1), graph.Channels)
	buf, err := drain(src, channels, float64(outRate), stream.Len())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, format, err)
	}

	return buf, nil
}

// drain reads src to the end into a buffer with the given channel count.
func drain(src beep.Streamer, channels int, rate float64, hint int) (*graph.Buffer, error) {
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, 0, max(hint, 0))
	}

	chunk := make([][2]float64, streamChunk)
	for {
		n, ok := src.Stream(chunk)
		for _, s := range chunk[:n] {
			for ch := range out {
				out[ch] = append(out[ch], s[ch])
			}
		}

		if !ok {
			break
		}
	}

	if err := src.Err(); err != nil {
		return nil, err
	}

	if len(out[0]) == 0 {
		return nil, fmt.Errorf("no audio frames")
	}

	return &graph.Buffer{SampleRate: rate, Channels: out}, nil
}
