package audio

import (
	"fmt"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Clip is self-contained audio a player can consume directly.
type Clip struct {
	Data     []byte
	MIMEType string
}

// Playable turns synthesized speech into a clip, branching on the encoding
// the provider reported. Raw PCM is wrapped in a WAV container; container
// formats pass through unchanged.
func Playable(res types.SpeechResult) (Clip, error) {
	raw, err := DecodeBase64(res.Data)
	if err != nil {
		return Clip{}, err
	}
	switch res.Encoding {
	case types.EncodingPCM16:
		rate := res.SampleRate
		if rate <= 0 {
			rate = OutputSampleRate
		}
		return Clip{Data: WrapPCM16(raw, rate, res.Channels), MIMEType: "audio/wav"}, nil
	case types.EncodingWAV:
		return Clip{Data: raw, MIMEType: "audio/wav"}, nil
	case types.EncodingMP3:
		return Clip{Data: raw, MIMEType: "audio/mpeg"}, nil
	default:
		return Clip{}, fmt.Errorf("audio: unknown speech encoding %q", res.Encoding)
	}
}
