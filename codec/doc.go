// Package codec converts between encoded audio files and graph buffers.
//
// Decode sniffs the container from the leading bytes and decodes WAV, MP3,
// FLAC and Ogg Vorbis with beep, and Ogg Opus with pion/opus, resampling to
// the requested rate. Encoder produces the WAV container used for
// recordings.
package codec
