package live

// State is the lifecycle state of a Controller.
type State int

const (
	// StateIdle means no session is active. It is the only state Start
	// accepts.
	StateIdle State = iota
	// StateStarting is held while the microphone is requested.
	StateStarting
	// StateOpen means capture is running and the remote session is live.
	StateOpen
	// StateClosing is held while resources are released.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
