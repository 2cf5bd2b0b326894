// Package audio converts between the audio representations used by the
// studio: base64 text on the wire, signed 16-bit little-endian PCM from the
// providers, float32 samples in [-1, 1] on the capture and playback side, and
// RIFF/WAVE containers for anything that must be playable on its own.
//
// Live sessions capture at InputSampleRate and receive model audio at
// OutputSampleRate; both are mono.
package audio
