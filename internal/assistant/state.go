package assistant

import "fmt"

// State is the phase of the send/receive cycle.
type State int

const (
	StateIdle State = iota
	StateEnsuringRoom
	StateSending
	StateAwaitingFirstToken
	StateStreaming
	StateComplete
	StateError
)

var stateNames = map[State]string{
	StateIdle:               "idle",
	StateEnsuringRoom:       "ensuring_room",
	StateSending:            "sending",
	StateAwaitingFirstToken: "awaiting_first_token",
	StateStreaming:          "streaming",
	StateComplete:           "complete",
	StateError:              "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st, name := range stateNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// InFlight reports whether a cycle occupies the session.
func (s State) InFlight() bool {
	return s != StateIdle
}
