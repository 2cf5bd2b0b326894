package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

const (
	// InputSampleRate is the capture rate sent to live sessions.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of audio produced by the hosted provider.
	OutputSampleRate = 24000
	// CaptureFrameSize is the number of samples per captured frame.
	CaptureFrameSize = 4096
)

// EncodeBase64 returns the standard base64 encoding of b.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes standard base64 text.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("audio: decode base64: %w", err)
	}
	return b, nil
}

// PCM16ToFloat32 decodes signed 16-bit little-endian PCM into samples in
// [-1, 1). A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToPCM16 encodes samples as signed 16-bit little-endian PCM.
// Samples are clamped to [-1, 1]; negatives scale by 32768 and the rest by
// 32767 so both ends of the range stay representable. Scaled values are
// truncated toward zero.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	switch {
	case s != s: // NaN
		return 0
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// EncodeFrame converts one captured frame into the base64 PCM payload sent to
// a live session.
func EncodeFrame(samples []float32) string {
	return EncodeBase64(Float32ToPCM16(samples))
}

// DecodeChunk converts a base64 PCM payload received from a live session into
// a playable buffer.
func DecodeChunk(b64 string, sampleRate int) (Buffer, error) {
	pcm, err := DecodeBase64(b64)
	if err != nil {
		return Buffer{}, err
	}
	return Buffer{
		Samples:    PCM16ToFloat32(pcm),
		SampleRate: sampleRate,
		Channels:   1,
	}, nil
}
