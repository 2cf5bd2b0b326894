// Package protocol defines the JSON messages exchanged with the browser on
// /v1/live. Microphone audio travels as binary frames and has no message
// type of its own.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

const (
	ProtocolVersion1 = "1"

	// ModeConverse plays the model's answers back to the browser.
	ModeConverse = "converse"
	// ModeTranscribe only transcribes the user; no audio is sent back.
	ModeTranscribe = "transcribe"

	EncodingPCM16 = "pcm_s16le"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// AudioFormat describes one direction of live audio.
type AudioFormat struct {
	Encoding     string `json:"encoding"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
}

// ClientHello must be the first frame of every session.
type ClientHello struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Mode            string `json:"mode,omitempty"`
	// Provider selects the adapter. Nil uses the gateway default.
	Provider          *types.ProviderConfig `json:"provider,omitempty"`
	Model             string                `json:"model,omitempty"`
	VoiceName         string                `json:"voice_name,omitempty"`
	SystemInstruction string                `json:"system_instruction,omitempty"`
}

// LiveConfig is the session configuration requested from the provider.
func (h ClientHello) LiveConfig() types.LiveConfig {
	return types.LiveConfig{
		Model:             strings.TrimSpace(h.Model),
		VoiceName:         strings.TrimSpace(h.VoiceName),
		SystemInstruction: h.SystemInstruction,
	}
}

// Transcribe reports whether the session plays no audio.
func (h ClientHello) Transcribe() bool {
	return h.Mode == ModeTranscribe
}

// RedactedForLog omits the provider key.
func (h ClientHello) RedactedForLog() map[string]any {
	out := map[string]any{
		"protocol_version": h.ProtocolVersion,
		"mode":             h.Mode,
		"model":            h.Model,
		"voice_name":       h.VoiceName,
		"has_system":       strings.TrimSpace(h.SystemInstruction) != "",
	}
	if h.Provider != nil {
		out["provider"] = h.Provider.Kind
		out["endpoint"] = h.Provider.Endpoint
		out["has_api_key"] = strings.TrimSpace(h.Provider.APIKey) != ""
	}
	return out
}

// ClientStop ends the session gracefully.
type ClientStop struct {
	Type string `json:"type"`
}

// DecodeClientMessage decodes one text frame into ClientHello or ClientStop.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "stop":
		return ClientStop{Type: typ}, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ValidateHello checks msg and fills in the default mode.
func ValidateHello(msg *ClientHello) error {
	if strings.TrimSpace(msg.ProtocolVersion) == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if strings.TrimSpace(msg.ProtocolVersion) != ProtocolVersion1 {
		return unsupported("unsupported protocol_version", "protocol_version")
	}
	switch strings.TrimSpace(msg.Mode) {
	case "":
		msg.Mode = ModeConverse
	case ModeConverse, ModeTranscribe:
		msg.Mode = strings.TrimSpace(msg.Mode)
	default:
		return unsupported("mode must be converse or transcribe", "mode")
	}
	if msg.Provider != nil && !msg.Provider.Kind.Valid() {
		return badRequest("unknown provider kind "+string(msg.Provider.Kind), "provider.kind")
	}
	return nil
}

type HelloAckLimits struct {
	MaxAudioFrameBytes  int   `json:"max_audio_frame_bytes"`
	MaxJSONMessageBytes int64 `json:"max_json_message_bytes"`
	MaxSessionMS        int64 `json:"max_session_ms,omitempty"`
}

type ServerHelloAck struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	SessionID       string          `json:"session_id"`
	Mode            string          `json:"mode"`
	AudioIn         AudioFormat     `json:"audio_in"`
	AudioOut        *AudioFormat    `json:"audio_out,omitempty"`
	Limits          *HelloAckLimits `json:"limits,omitempty"`
}

type ServerState struct {
	Type  string     `json:"type"`
	State live.State `json:"state"`
}

type ServerTranscript struct {
	Type  string               `json:"type"`
	Entry live.TranscriptEntry `json:"entry"`
}

// ServerAudio carries one PCM16 chunk to play at StartMS on the session's
// output clock.
type ServerAudio struct {
	Type       string `json:"type"`
	ID         int64  `json:"id"`
	DataB64    string `json:"data"`
	StartMS    int64  `json:"start_ms"`
	DurationMS int64  `json:"duration_ms"`
}

// ServerAudioStop tells the browser to drop every chunk it has not finished
// playing.
type ServerAudioStop struct {
	Type    string `json:"type"`
	Stopped int    `json:"stopped"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Close   bool   `json:"close,omitempty"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerClosed struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}
