package session

import "time"

// Event is a normalized inbound event for the UI. One of Connected,
// AuthResult, MessageReceived, ConnectionLost, or Notice; consumers type
// switch over the concrete types.
type Event any

// Connected is published once the transport is established.
type Connected struct{}

// AuthResult reports the outcome of a login attempt. A failure is
// recoverable only by constructing a fresh session.
type AuthResult struct {
	OK     bool
	Reason string // empty on success
}

// MessageReceived carries one chat message from the server.
type MessageReceived struct {
	Sender    string
	Text      string
	Timestamp time.Time
}

// ConnectionLost is the terminal event for transport errors, heartbeat
// timeouts, server disconnects, and login rejection teardown. At most one
// is published per session, and nothing follows it.
type ConnectionLost struct {
	Reason string
}

// Notice describes an error condition: fatal (corrupt frame, protocol
// violation) or transient (command rejected while unauthenticated). Fatal
// notices are followed by teardown; transient ones are not.
type Notice struct {
	Description string
}
