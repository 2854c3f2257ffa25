package session

import "errors"

var (
	// ErrNotAuthenticated rejects a chat message submitted before login
	// completed. The message is not queued.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrBusy rejects a command when the bounded command queue is full.
	ErrBusy = errors.New("command queue full")
)

// Command is a user-originated intent, applied in submission order by the
// event bridge. One of SendMessage, RequestLogin, or Quit.
type Command any

// SendMessage sends chat text. Only valid in the authenticated state.
type SendMessage struct {
	Text string
}

// RequestLogin triggers the login exchange when auto-login is off.
type RequestLogin struct{}

// Quit closes the session cleanly.
type Quit struct{}
