package realtimeclient

// State is the session's connection phase.
type State int

const (
	// StateIdle means the session was never connected, or was explicitly
	// disconnected by the caller.
	StateIdle State = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateConnected means the session is live.
	StateConnected

	// StateDisconnected means the transport dropped and a reconnect has not
	// been scheduled yet.
	StateDisconnected

	// StateReconnecting means a backoff timer is pending.
	StateReconnecting

	// StateFailed means reconnection attempts are exhausted; the session is
	// terminally down until the caller connects again.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
