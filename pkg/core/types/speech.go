package types

import (
	"fmt"
	"strings"
)

// AudioEncoding identifies the byte format of synthesized speech.
type AudioEncoding string

const (
	// EncodingPCM16 is raw signed 16-bit little-endian PCM.
	EncodingPCM16 AudioEncoding = "pcm_s16le"
	EncodingWAV   AudioEncoding = "wav"
	EncodingMP3   AudioEncoding = "mp3"
)

// SpeakerVoice binds a speaker label used in the text to a voice.
type SpeakerVoice struct {
	Speaker   string `json:"speaker"`
	VoiceName string `json:"voice_name"`
}

// VoiceSelection is either a single VoiceName or exactly two Speakers.
type VoiceSelection struct {
	VoiceName string         `json:"voice_name,omitempty"`
	Speakers  []SpeakerVoice `json:"speakers,omitempty"`
}

// MultiSpeaker reports whether the selection is a multi-speaker dialogue.
func (v VoiceSelection) MultiSpeaker() bool { return len(v.Speakers) > 0 }

// Validate enforces the multi-speaker shape: exactly two entries with
// distinct, non-empty speaker labels and non-empty voices.
func (v VoiceSelection) Validate() error {
	if !v.MultiSpeaker() {
		return nil
	}
	if len(v.Speakers) != 2 {
		return fmt.Errorf("multi-speaker synthesis requires exactly 2 speakers, got %d", len(v.Speakers))
	}
	seen := make(map[string]struct{}, 2)
	for i, s := range v.Speakers {
		name := strings.TrimSpace(s.Speaker)
		if name == "" {
			return fmt.Errorf("speakers[%d].speaker is required", i)
		}
		if strings.TrimSpace(s.VoiceName) == "" {
			return fmt.Errorf("speakers[%d].voice_name is required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("speaker %q is listed twice", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

type SpeechRequest struct {
	Text  string         `json:"text"`
	Voice VoiceSelection `json:"voice,omitempty"`

	// Format is the container requested from servers that produce one
	// (wav or mp3). Providers emitting raw PCM ignore it.
	Format AudioEncoding `json:"format,omitempty"`
}

// SpeechResult is synthesized audio tagged with the encoding that produced
// it. SampleRate and Channels are set for raw PCM.
type SpeechResult struct {
	Data       string        `json:"data"`
	Encoding   AudioEncoding `json:"encoding"`
	SampleRate int           `json:"sample_rate,omitempty"`
	Channels   int           `json:"channels,omitempty"`
}
