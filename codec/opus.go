package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gopxl/beep"
	"github.com/pion/opus"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"

	"github.com/cwbudde/algo-daw/dsp/graph"
)

// maxOpusPacket is the largest decoded packet: 120 ms of stereo 16-bit
// audio at 48 kHz.
const maxOpusPacket = 5760 * 2 * 2

// decodeOggOpus decodes an Ogg Opus stream page by page.
func decodeOggOpus(data []byte, sampleRate float64) (*graph.Buffer, error) {
	reader, header, err := oggreader.NewWith(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: ogg/opus: %v", ErrDecode, err)
	}

	dec := opus.NewDecoder()
	out := make([]byte, maxOpusPacket)
	var (
		left, right []float64
		rate        float64
	)
	for {
		payload, _, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: ogg/opus: %v", ErrDecode, err)
		}

		if len(payload) == 0 || bytes.HasPrefix(payload, []byte("OpusTags")) {
			continue
		}

		bandwidth, stereo, err := dec.Decode(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: ogg/opus: %v", ErrDecode, err)
		}

		pktRate := float64(bandwidth.SampleRate())
		if rate == 0 {
			rate = pktRate
		}

		channels := 1
		if stereo {
			channels = 2
		}

		frames := min(packetFrames(payload, pktRate), len(out)/(2*channels))
		for i := range frames {
			l := pcm16(out, i*channels)
			r := l
			if stereo {
				r = pcm16(out, i*channels+1)
			}

			left = append(left, l)
			right = append(right, r)
		}
	}

	if len(left) == 0 {
		return nil, fmt.Errorf("%w: ogg/opus: no audio packets", ErrDecode)
	}

	buf := &graph.Buffer{SampleRate: rate, Channels: [][]float64{left, right}}
	if header != nil && header.Channels == 1 {
		buf.Channels = buf.Channels[:1]
	}

	if sampleRate > 0 && math.Round(sampleRate) != math.Round(rate) {
		return resample(buf, sampleRate)
	}

	return buf, nil
}

func pcm16(b []byte, i int) float64 {
	return float64(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768
}

// packetFrames returns the number of frames per channel an Opus packet
// decodes to at rate, from its table-of-contents byte.
func packetFrames(packet []byte, rate float64) int {
	if len(packet) == 0 {
		return 0
	}

	toc := packet[0]
	config := toc >> 3
	var ms float64
	switch {
	case config < 12:
		ms = [...]float64{10, 20, 40, 60}[config%4]
	case config < 16:
		ms = [...]float64{10, 20}[config%2]
	default:
		ms = [...]float64{2.5, 5, 10, 20}[config%4]
	}

	count := 1
	switch toc & 0x3 {
	case 1, 2:
		count = 2
	case 3:
		if len(packet) > 1 {
			count = int(packet[1] & 0x3F)
		}
	}

	return int(math.Round(ms * float64(count) * rate / 1000))
}

// resample converts buf to sampleRate with beep's resampler.
func resample(buf *graph.Buffer, sampleRate float64) (*graph.Buffer, error) {
	pos := 0
	src := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n := 0
		for n < len(samples) && pos < buf.Frames() {
			samples[n][0] = buf.Channel(0)[pos]
			samples[n][1] = buf.Channel(1)[pos]
			n++
			pos++
		}

		return n, n > 0
	})
	from := beep.SampleRate(math.Round(buf.SampleRate))
	to := beep.SampleRate(math.Round(sampleRate))
	out, err := drain(beep.Resample(resampleQuality, from, to, src), buf.NumChannels(), float64(to), int(float64(buf.Frames())*sampleRate/buf.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("%w: resample: %v", ErrDecode, err)
	}

	return out, nil
}
