package audio

import (
	"encoding/binary"
	"errors"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header.
const WAVHeaderSize = 44

// EncodeWAV renders b as a 16-bit PCM RIFF/WAVE file.
func EncodeWAV(b Buffer) []byte {
	channels := b.Channels
	if channels <= 0 {
		channels = 1
	}
	frames := b.Frames()
	dataLen := frames * channels * 2

	out := make([]byte, WAVHeaderSize+dataLen)
	putWAVHeader(out, b.SampleRate, channels, dataLen)

	pcm := Float32ToPCM16(b.Samples[:frames*channels])
	copy(out[WAVHeaderSize:], pcm)
	return out
}

// WrapPCM16 prepends a WAV header to raw 16-bit little-endian PCM.
func WrapPCM16(pcm []byte, sampleRate, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	dataLen := len(pcm) - len(pcm)%(channels*2)
	out := make([]byte, WAVHeaderSize+dataLen)
	putWAVHeader(out, sampleRate, channels, dataLen)
	copy(out[WAVHeaderSize:], pcm[:dataLen])
	return out
}

func putWAVHeader(out []byte, sampleRate, channels, dataLen int) {
	le := binary.LittleEndian
	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], 1)
	le.PutUint16(out[22:24], uint16(channels))
	le.PutUint32(out[24:28], uint32(sampleRate))
	le.PutUint32(out[28:32], uint32(sampleRate*channels*2))
	le.PutUint16(out[32:34], uint16(channels*2))
	le.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(dataLen))
}

// WAVInfo is the format block of a parsed WAV header.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int
}

var errNotWAV = errors.New("audio: not a canonical PCM WAV file")

// ParseWAVHeader reads the canonical 44-byte header written by EncodeWAV.
func ParseWAVHeader(b []byte) (WAVInfo, error) {
	if len(b) < WAVHeaderSize ||
		string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" ||
		string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return WAVInfo{}, errNotWAV
	}
	le := binary.LittleEndian
	if le.Uint16(b[20:22]) != 1 {
		return WAVInfo{}, errNotWAV
	}
	return WAVInfo{
		SampleRate:    int(le.Uint32(b[24:28])),
		Channels:      int(le.Uint16(b[22:24])),
		BitsPerSample: int(le.Uint16(b[34:36])),
		DataSize:      int(le.Uint32(b[40:44])),
	}, nil
}
