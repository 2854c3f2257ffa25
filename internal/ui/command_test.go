package ui

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Input
	}{
		{"plain message", "hello there", Input{Action: ActionSay, Text: "hello there"}},
		{"trims whitespace", "  hi  ", Input{Action: ActionSay, Text: "hi"}},
		{"empty", "", Input{Action: ActionNone}},
		{"only spaces", "   ", Input{Action: ActionNone}},
		{"quit", "/quit", Input{Action: ActionQuit}},
		{"exit alias", "/exit", Input{Action: ActionQuit}},
		{"quit case insensitive", "/QUIT", Input{Action: ActionQuit}},
		{"quit with args", "/quit now", Input{Action: ActionQuit}},
		{"login", "/login", Input{Action: ActionLogin}},
		{"help", "/help", Input{Action: ActionHelp}},
		{"unknown command", "/frobnicate", Input{Action: ActionUnknown, Text: "frobnicate"}},
		{"escaped slash", "//quit is a command", Input{Action: ActionSay, Text: "/quit is a command"}},
		{"bare slash", "/", Input{Action: ActionUnknown, Text: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.line)
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}
