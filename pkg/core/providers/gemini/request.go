package gemini

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

const imageMIMEType = "image/jpeg"

// chatHistory maps generic turns onto the SDK's user/model roles.
func chatHistory(turns []types.ChatTurn) []*genai.Content {
	if len(turns) == 0 {
		return nil
	}
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(t.Text, genai.Role(role)))
	}
	return out
}

func systemInstruction(text string) *genai.Content {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}

func chatConfig(system string) *genai.GenerateContentConfig {
	si := systemInstruction(system)
	if si == nil {
		return nil
	}
	return &genai.GenerateContentConfig{SystemInstruction: si}
}

func reasoningConfig(system string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(system),
		ThinkingConfig:    &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(ReasoningBudget)},
	}
}

func imageConfig(ratio types.AspectRatio) *genai.GenerateImagesConfig {
	return &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: imageMIMEType,
		AspectRatio:    string(ratio.OrDefault()),
	}
}

func editConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
	}
}

// mediaParts decodes base64 payloads into inline data parts.
func mediaParts(media []types.MediaPart, param string) ([]*genai.Part, error) {
	out := make([]*genai.Part, 0, len(media)+1)
	for i, m := range media {
		if err := m.Validate(); err != nil {
			return nil, core.NewValidationError(err.Error(), fmt.Sprintf("%s[%d]", param, i))
		}
		data, err := m.Bytes()
		if err != nil {
			return nil, core.NewValidationError(err.Error(), fmt.Sprintf("%s[%d]", param, i))
		}
		out = append(out, genai.NewPartFromBytes(data, m.MIMEType))
	}
	return out, nil
}

func userContent(parts []*genai.Part) []*genai.Content {
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// searchConfig selects web or place grounding. The coordinate is only sent
// for place searches.
func searchConfig(req *types.SearchRequest) *genai.GenerateContentConfig {
	if !req.UseMaps {
		return &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		}
	}
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}},
	}
	if req.Location != nil {
		cfg.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{
					Latitude:  genai.Ptr(req.Location.Latitude),
					Longitude: genai.Ptr(req.Location.Longitude),
				},
			},
		}
	}
	return cfg
}

func prebuiltVoice(name string) *genai.VoiceConfig {
	if strings.TrimSpace(name) == "" {
		name = DefaultVoice
	}
	return &genai.VoiceConfig{
		PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: name},
	}
}

// speechConfig builds the audio generation config, rejecting malformed
// multi-speaker selections.
func speechConfig(v types.VoiceSelection) (*genai.GenerateContentConfig, error) {
	if err := v.Validate(); err != nil {
		return nil, core.NewValidationError(err.Error(), "voice.speakers")
	}

	sc := &genai.SpeechConfig{}
	if v.MultiSpeaker() {
		speakers := make([]*genai.SpeakerVoiceConfig, 0, len(v.Speakers))
		for _, s := range v.Speakers {
			speakers = append(speakers, &genai.SpeakerVoiceConfig{
				Speaker:     strings.TrimSpace(s.Speaker),
				VoiceConfig: prebuiltVoice(s.VoiceName),
			})
		}
		sc.MultiSpeakerVoiceConfig = &genai.MultiSpeakerVoiceConfig{SpeakerVoiceConfigs: speakers}
	} else {
		sc.VoiceConfig = prebuiltVoice(v.VoiceName)
	}

	return &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig:       sc,
	}, nil
}

// speechPrompt frames the text for the TTS model. Dialogues keep their
// "Speaker: line" prefixes so the model can assign voices.
func speechPrompt(req *types.SpeechRequest) string {
	if !req.Voice.MultiSpeaker() {
		return "Say this: " + req.Text
	}
	return fmt.Sprintf("TTS the following conversation between %s and %s:\n%s",
		req.Voice.Speakers[0].Speaker, req.Voice.Speakers[1].Speaker, req.Text)
}

// sampleRateFromMIME reads the rate parameter of MIME types such as
// "audio/L16;codec=pcm;rate=24000".
func sampleRateFromMIME(mime string, fallback int) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
