package types

// Role is the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message in a conversation.
type ChatTurn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ChatRequest sends Message after the prior History.
type ChatRequest struct {
	History []ChatTurn `json:"history,omitempty"`
	Message string     `json:"message"`
	System  string     `json:"system,omitempty"`
}

// QueryRequest is a single-shot prompt that asks for extended reasoning.
type QueryRequest struct {
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
}
