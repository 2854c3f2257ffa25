package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/blockdoth/chatger/internal/protocol"
)

// Credentials identify the user to the server. The password is opaque: it is
// written to the wire inside the Login frame and nowhere else.
type Credentials struct {
	Username string
	Password string
}

// LogValue keeps the secret out of log output.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "<redacted>"),
	)
}

// Result is the outcome of feeding one input to the Machine: events to
// publish to the UI, frames to write to the transport, and whether the
// session is over. Frames are flushed before teardown when Done is set.
type Result struct {
	Events []Event
	Frames []any
	Done   bool
}

// Machine is the session state machine. It performs no I/O: every input
// (frame, command, timer expiry, transport notification) returns a Result
// describing what the event bridge should do. It is mutated only from the
// bridge goroutine (single-writer invariant), so it carries no lock.
type Machine struct {
	creds        Credentials
	autoLogin    bool
	state        State
	connID       uint64
	connIDSet    bool
	loginSent    bool
	lastActivity time.Time
}

// NewMachine creates a machine in the disconnected state. A fresh machine is
// constructed per connection attempt; machines are never reused.
func NewMachine(creds Credentials, autoLogin bool) *Machine {
	return &Machine{
		creds:     creds,
		autoLogin: autoLogin,
		state:     StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	return m.state
}

// ConnID returns the server-assigned connection identifier, if one was
// issued yet.
func (m *Machine) ConnID() (uint64, bool) {
	return m.connID, m.connIDSet
}

// LastActivity returns the time of the last received frame.
func (m *Machine) LastActivity() time.Time {
	return m.lastActivity
}

// ConnectStarted marks the transport dial in progress.
func (m *Machine) ConnectStarted() {
	if m.state == StateDisconnected {
		m.state = StateConnecting
	}
}

// ConnectFailed ends the session before the transport came up.
func (m *Machine) ConnectFailed(err error) Result {
	return m.fail(fmt.Sprintf("connect failed: %v", err))
}

// TransportReady moves into the authentication phase. With auto-login the
// Login frame goes out immediately; otherwise the machine waits for a
// RequestLogin command.
func (m *Machine) TransportReady(now time.Time) Result {
	if m.state != StateConnecting {
		return Result{}
	}
	m.state = StateAwaitingAuth
	m.lastActivity = now

	res := Result{Events: []Event{Connected{}}}
	if m.autoLogin {
		res.Frames = append(res.Frames, m.loginFrame())
	}
	return res
}

// HandleFrame applies one inbound frame, in arrival order. Unexpected frame
// types for the current state are protocol errors and fatal.
func (m *Machine) HandleFrame(frame any, now time.Time) Result {
	if m.state.terminal() {
		return Result{}
	}
	m.lastActivity = now

	switch f := frame.(type) {
	case *protocol.Heartbeat:
		// Activity already noted; nothing to publish.
		return Result{}

	case *protocol.LoginAck:
		if m.state != StateAwaitingAuth {
			return m.protocolError(fmt.Sprintf("unexpected LoginAck in state %s", m.state))
		}
		m.state = StateAuthenticated
		m.connID = f.ConnID
		m.connIDSet = true
		return Result{Events: []Event{AuthResult{OK: true}}}

	case *protocol.LoginReject:
		if m.state != StateAwaitingAuth {
			return m.protocolError(fmt.Sprintf("unexpected LoginReject in state %s", m.state))
		}
		// Recoverable by the caller with a fresh session; never retried here.
		m.state = StateDisconnected
		return Result{
			Events: []Event{
				AuthResult{OK: false, Reason: f.Reason},
				ConnectionLost{Reason: "login rejected"},
			},
			Done: true,
		}

	case *protocol.Message:
		if m.state != StateAuthenticated {
			return m.protocolError(fmt.Sprintf("unexpected Message in state %s", m.state))
		}
		return Result{Events: []Event{MessageReceived{
			Sender:    f.Sender,
			Text:      f.Text,
			Timestamp: time.UnixMilli(f.TimestampMs),
		}}}

	case *protocol.MessageAck:
		if m.state != StateAuthenticated {
			return m.protocolError(fmt.Sprintf("unexpected MessageAck in state %s", m.state))
		}
		// Delivery confirmation for one of our sends; nothing to publish.
		return Result{}

	case *protocol.ErrorFrame:
		return m.fatalNotice(fmt.Sprintf("server error: %s", f.Description))

	case *protocol.Disconnect:
		reason := f.Reason
		if reason == "" {
			reason = "server closed connection"
		}
		return m.fail(reason)

	default:
		return m.protocolError(fmt.Sprintf("unexpected frame type %T", frame))
	}
}

// HandleCommand applies one user command, in submission order. Commands are
// validated against the current state; a rejected command is consumed, never
// queued for later.
func (m *Machine) HandleCommand(cmd Command, now time.Time) Result {
	switch c := cmd.(type) {
	case SendMessage:
		if m.state != StateAuthenticated {
			// Rejected, not queued.
			return Result{Events: []Event{Notice{
				Description: ErrNotAuthenticated.Error(),
			}}}
		}
		return Result{Frames: []any{&protocol.Message{
			TimestampMs: now.UnixMilli(),
			Sender:      m.creds.Username,
			Text:        c.Text,
		}}}

	case RequestLogin:
		if m.state != StateAwaitingAuth || m.loginSent {
			return Result{Events: []Event{Notice{
				Description: "login not possible in state " + m.state.String(),
			}}}
		}
		return Result{Frames: []any{m.loginFrame()}}

	case Quit:
		if m.state.terminal() {
			return Result{}
		}
		m.state = StateClosing
		return Result{
			Frames: []any{&protocol.Disconnect{Reason: "client quit"}},
			Done:   true,
		}

	default:
		return Result{Events: []Event{Notice{
			Description: fmt.Sprintf("unsupported command %T", cmd),
		}}}
	}
}

// CloseSent completes a clean shutdown after the Disconnect frame was
// flushed.
func (m *Machine) CloseSent() {
	if m.state == StateClosing {
		m.state = StateDisconnected
	}
}

// RecvTimeout declares the connection lost after the liveness window passed
// with no inbound frame.
func (m *Machine) RecvTimeout() Result {
	return m.fail("timeout")
}

// TransportFailed ends the session on a mid-session socket error.
func (m *Machine) TransportFailed(err error) Result {
	return m.fail(err.Error())
}

// StreamCorrupted ends the session on an undecodable byte stream (length
// bound exceeded, unknown frame type). No partial frame reaches the UI.
func (m *Machine) StreamCorrupted(err error) Result {
	return m.fatalNotice(fmt.Sprintf("corrupt frame: %v", err))
}

// --- Internal transitions ---

func (m *Machine) loginFrame() any {
	m.loginSent = true
	return &protocol.Login{
		Username: m.creds.Username,
		Password: m.creds.Password,
	}
}

// fail moves to the terminal Failed state with a single ConnectionLost
// event.
func (m *Machine) fail(reason string) Result {
	if m.state.terminal() {
		return Result{}
	}
	m.state = StateFailed
	return Result{
		Events: []Event{ConnectionLost{Reason: reason}},
		Done:   true,
	}
}

// fatalNotice moves to Failed with a single descriptive Notice as the
// terminal event.
func (m *Machine) fatalNotice(description string) Result {
	if m.state.terminal() {
		return Result{}
	}
	m.state = StateFailed
	return Result{
		Events: []Event{Notice{Description: description}},
		Done:   true,
	}
}

// protocolError is a peer violation of the frame/state contract.
func (m *Machine) protocolError(description string) Result {
	return m.fatalNotice("protocol error: " + description)
}
