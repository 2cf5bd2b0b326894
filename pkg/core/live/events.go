package live

import "time"

// Event is the interface for all controller events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted on every state transition.
type StateChangedEvent struct {
	SessionID string `json:"session_id,omitempty"`
	From      State  `json:"from"`
	To        State  `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// TranscriptEvent carries the current contents of a transcript entry after
// it was created, extended or sealed.
type TranscriptEvent struct {
	Entry TranscriptEntry `json:"entry"`
}

func (e *TranscriptEvent) EventType() string { return "transcript" }

// AudioScheduledEvent is emitted when an output chunk has been placed on the
// output clock.
type AudioScheduledEvent struct {
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}

func (e *AudioScheduledEvent) EventType() string { return "audio.scheduled" }

// InterruptedEvent is emitted when the model was talked over and scheduled
// playback was cut.
type InterruptedEvent struct {
	Stopped int `json:"stopped"`
}

func (e *InterruptedEvent) EventType() string { return "interrupted" }

// ErrorEvent is emitted when a session fails. Code is the error type.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// SessionClosedEvent is emitted once teardown has finished.
type SessionClosedEvent struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

func (e *SessionClosedEvent) EventType() string { return "session.closed" }
