package types

// LiveConfig configures a live audio session with the hosted provider.
type LiveConfig struct {
	Model             string `json:"model,omitempty"`
	VoiceName         string `json:"voice_name,omitempty"`
	SystemInstruction string `json:"system_instruction,omitempty"`
}

// LiveEvent is one decoded server message from a live session. Several
// fields may be set on the same event; TurnComplete applies to the
// transcript fragments carried alongside it.
type LiveEvent struct {
	InputTranscript  string `json:"input_transcript,omitempty"`
	OutputTranscript string `json:"output_transcript,omitempty"`

	// Audio holds base64 PCM16 chunks at the provider output rate, in
	// playback order.
	Audio []string `json:"audio,omitempty"`

	TurnComplete bool `json:"turn_complete,omitempty"`
	Interrupted  bool `json:"interrupted,omitempty"`
}
