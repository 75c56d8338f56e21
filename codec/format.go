package codec

import (
	"bytes"
	"errors"
)

var (
	// ErrDecode is returned when audio data cannot be decoded.
	ErrDecode = errors.New("codec: decode failed")
	// ErrUnsupportedFormat is returned for containers no decoder handles.
	ErrUnsupportedFormat = errors.New("codec: unsupported format")
)

// Format identifies an audio container.
type Format string

// Known containers.
const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatVorbis  Format = "ogg/vorbis"
	FormatOpus    Format = "ogg/opus"
	FormatWebM    Format = "webm"
)

// sniffLen is how many leading bytes Sniff inspects.
const sniffLen = 512

// Sniff identifies the container of data from its leading bytes.
func Sniff(data []byte) Format {
	head := data[:min(len(data), sniffLen)]
	switch {
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(head, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(head, []byte("OggS")):
		switch {
		case bytes.Contains(head, []byte("OpusHead")):
			return FormatOpus
		case bytes.Contains(head, []byte("\x01vorbis")):
			return FormatVorbis
		}

		return FormatUnknown
	case bytes.HasPrefix(head, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	case bytes.HasPrefix(head, []byte("ID3")):
		return FormatMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return FormatMP3
	}

	return FormatUnknown
}

// ParseFormat maps a name or MIME type to a Format.
func ParseFormat(name string) Format {
	switch name {
	case "wav", "audio/wav", "audio/wave", "audio/x-wav":
		return FormatWAV
	case "mp3", "audio/mpeg", "audio/mp3":
		return FormatMP3
	case "flac", "audio/flac":
		return FormatFLAC
	case "ogg", "ogg/vorbis", "audio/ogg", "audio/ogg;codecs=vorbis":
		return FormatVorbis
	case "opus", "ogg/opus", "audio/ogg;codecs=opus":
		return FormatOpus
	case "webm", "audio/webm", "audio/webm;codecs=opus":
		return FormatWebM
	}

	return FormatUnknown
}
