package session

// State is the connection lifecycle position of a Session.
type State int

const (
	// StateDisconnected is the initial and post-teardown state.
	StateDisconnected State = iota

	// StateConnecting means the transport dial is in progress.
	StateConnecting

	// StateAwaitingAuth means the transport is up and a login ack or
	// reject is pending.
	StateAwaitingAuth

	// StateAuthenticated is the only state that accepts outbound chat
	// messages.
	StateAuthenticated

	// StateClosing means the user asked to quit and the close is being
	// sent.
	StateClosing

	// StateFailed is terminal: an unrecoverable error ended the session.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingAuth:
		return "awaiting-auth"
	case StateAuthenticated:
		return "authenticated"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transitions are possible.
func (s State) terminal() bool {
	return s == StateDisconnected || s == StateFailed
}
