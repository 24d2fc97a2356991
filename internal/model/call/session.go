package call

import "time"

// State is the lifecycle phase of the single process-wide call session.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateActive       State = "active"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)

// Session captures the one active voice call. There is never more than one.
type Session struct {
	State     State     `json:"state"`
	StartedAt time.Time `json:"startedAt,omitzero"`
}

// Active reports whether speech is currently being captured.
func (s Session) Active() bool {
	return s.State == StateActive
}

// StatusText is the badge label for a state. An SDK error deliberately
// presents as "Connected" rather than alarming the viewer.
func (s State) StatusText() string {
	switch s {
	case StateActive:
		return "Call Active"
	case StateConnecting:
		return "Connecting..."
	default:
		return "Connected"
	}
}

// StatusColor is the badge color for a state.
func (s State) StatusColor() string {
	switch s {
	case StateConnecting:
		return "#f59e0b"
	default:
		return "#10b981"
	}
}
