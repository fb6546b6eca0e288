package realtime

// Status is the lifecycle position of the real-time channel.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectionState is a snapshot of the channel. ReconnectAttempt is zero
// whenever Status is StatusConnected.
type ConnectionState struct {
	Status           Status
	ReconnectAttempt int
	LastError        error
}

// Connected reports whether frames can currently be sent.
func (s ConnectionState) Connected() bool {
	return s.Status == StatusConnected
}

// StateChange describes one transition.
type StateChange struct {
	Old ConnectionState
	New ConnectionState
}

// StateListener observes transitions in the order they happen. Listeners run
// outside the manager lock and may call back into the Manager.
type StateListener func(StateChange)
