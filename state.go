package collabwire

import "fmt"

// SessionState is the coordinator lifecycle. Disconnected is terminal once
// reached through explicit Disconnect or reconnect exhaustion.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// TransitionTo validates the move from s to newState and returns the new
// state, or an error for an illegal transition.
func (s SessionState) TransitionTo(newState SessionState) (SessionState, error) {
	switch s {
	case StateDisconnected:
		if newState == StateConnecting {
			return newState, nil
		}
	case StateConnecting:
		switch newState {
		case StateConnected, StateDisconnected:
			return newState, nil
		}
	case StateConnected:
		switch newState {
		case StateReconnecting, StateDisconnected:
			return newState, nil
		}
	case StateReconnecting:
		switch newState {
		case StateConnected, StateDisconnected:
			return newState, nil
		}
	}

	return s, fmt.Errorf("invalid state transition from %v to %v", s, newState)
}
