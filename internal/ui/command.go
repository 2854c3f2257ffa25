package ui

import "strings"

// Action is what one line of input asks the client to do.
type Action int

const (
	// ActionSay sends the line as a chat message.
	ActionSay Action = iota
	// ActionLogin retries the login handshake.
	ActionLogin
	// ActionQuit ends the session cleanly.
	ActionQuit
	// ActionHelp shows the command list.
	ActionHelp
	// ActionNone means the line was empty.
	ActionNone
	// ActionUnknown is an unrecognized slash command.
	ActionUnknown
)

// Input is one parsed line from the input view.
type Input struct {
	Action Action
	// Text is the message body for ActionSay, or the command name for
	// ActionUnknown.
	Text string
}

// Parse interprets one line of user input. Lines starting with "/" are
// commands; everything else is a chat message. "//" escapes a literal
// leading slash.
func Parse(line string) Input {
	line = strings.TrimSpace(line)
	if line == "" {
		return Input{Action: ActionNone}
	}
	if strings.HasPrefix(line, "//") {
		return Input{Action: ActionSay, Text: line[1:]}
	}
	if !strings.HasPrefix(line, "/") {
		return Input{Action: ActionSay, Text: line}
	}

	name, _, _ := strings.Cut(line[1:], " ")
	switch strings.ToLower(name) {
	case "quit", "exit":
		return Input{Action: ActionQuit}
	case "login":
		return Input{Action: ActionLogin}
	case "help":
		return Input{Action: ActionHelp}
	default:
		return Input{Action: ActionUnknown, Text: name}
	}
}
