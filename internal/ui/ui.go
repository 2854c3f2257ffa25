// Package ui renders the chat session in the terminal. It consumes the
// client's event stream and feeds typed lines back as commands. All gocui
// view mutations go through gui.Update, so the event loop goroutine never
// touches a view directly.
package ui

import (
	"fmt"
	"log/slog"

	"github.com/jroimartin/gocui"

	"github.com/blockdoth/chatger/internal/client"
	"github.com/blockdoth/chatger/internal/history"
	"github.com/blockdoth/chatger/internal/session"
)

const (
	msgView    = "messages"
	statusView = "status"
	inputView  = "input"
	helpView   = "help"
)

const helpText = `Commands:
/login          - Retry the login handshake
/help           - Toggle this help
/quit           - Leave the chat
//text          - Send a message starting with a literal slash

Keybindings:
Ctrl-C          - Quit
Enter           - Send`

// UI owns the terminal while a session runs.
type UI struct {
	gui        *gocui.Gui
	client     *client.Client
	scrollback *history.Log
	log        *slog.Logger
	username   string
	showHelp   bool
}

// New takes over the terminal. Call Run next; the terminal is restored
// when Run returns.
func New(c *client.Client, scrollback *history.Log, username string, logger *slog.Logger) (*UI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	g.Cursor = true

	ui := &UI{
		gui:        g,
		client:     c,
		scrollback: scrollback,
		log:        logger.With("component", "ui"),
		username:   username,
	}
	g.SetManagerFunc(ui.layout)
	return ui, nil
}

func (ui *UI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	msgHeight := maxY - 5

	if v, err := g.SetView(msgView, 0, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
		for _, m := range ui.scrollback.Last(msgHeight) {
			fmt.Fprintf(v, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Sender, m.Text)
		}
	}

	if v, err := g.SetView(statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		fmt.Fprintf(v, "%s | connecting... | Ctrl-C or /quit to exit", ui.username)
	}

	if v, err := g.SetView(inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input"
		v.Editable = true
		v.Wrap = true
		if _, err := g.SetCurrentView(inputView); err != nil {
			return err
		}
	}

	if ui.showHelp {
		if v, err := g.SetView(helpView, maxX/6, maxY/6, maxX*5/6, maxY*5/6); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.Title = "Help"
			fmt.Fprintln(v, helpText)
		}
	} else {
		if err := g.DeleteView(helpView); err != nil && err != gocui.ErrUnknownView {
			return err
		}
	}

	return nil
}

func (ui *UI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			// Best-effort clean close; the session ending closes the UI.
			ui.client.Submit(session.Quit{})
			return gocui.ErrQuit
		}); err != nil {
		return err
	}
	return ui.gui.SetKeybinding(inputView, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *UI) handleInput(_ *gocui.Gui, v *gocui.View) error {
	line := v.Buffer()
	v.Clear()
	v.SetCursor(0, 0)

	in := Parse(line)
	switch in.Action {
	case ActionNone:
		return nil
	case ActionSay:
		if err := ui.client.Submit(session.SendMessage{Text: in.Text}); err != nil {
			ui.systemLine(fmt.Sprintf("not sent: %v", err))
		}
	case ActionLogin:
		if err := ui.client.Submit(session.RequestLogin{}); err != nil {
			ui.systemLine(fmt.Sprintf("login not sent: %v", err))
		}
	case ActionQuit:
		if err := ui.client.Submit(session.Quit{}); err != nil {
			ui.systemLine(fmt.Sprintf("quit not sent: %v", err))
		}
	case ActionHelp:
		ui.showHelp = !ui.showHelp
	case ActionUnknown:
		ui.systemLine(fmt.Sprintf("unknown command /%s, try /help", in.Text))
	}
	return nil
}

// Run drives the terminal until the session ends or the user quits.
func (ui *UI) Run() error {
	defer ui.gui.Close()

	if err := ui.keybindings(); err != nil {
		return fmt.Errorf("keybindings: %w", err)
	}
	go ui.eventLoop()

	if err := ui.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

// eventLoop consumes session events until the stream closes, then shuts
// the UI down. It is the only reader of the client's event channel.
func (ui *UI) eventLoop() {
	for ev := range ui.client.Events() {
		switch ev := ev.(type) {
		case session.Connected:
			ui.setStatus("connected, logging in...")
		case session.AuthResult:
			if ev.OK {
				ui.setStatus(fmt.Sprintf("logged in as %s", ui.username))
				ui.systemLine("login successful")
			} else {
				ui.setStatus("login failed")
				ui.systemLine(fmt.Sprintf("login failed: %s", ev.Reason))
			}
		case session.MessageReceived:
			ui.scrollback.Append(ev.Sender, ev.Text, ev.Timestamp)
			ui.messageLine(ev)
		case session.Notice:
			ui.systemLine(ev.Description)
		case session.ConnectionLost:
			ui.setStatus(fmt.Sprintf("disconnected: %s", ev.Reason))
			ui.systemLine(fmt.Sprintf("connection lost: %s", ev.Reason))
		}
	}
	ui.log.Debug("event stream closed, leaving main loop")
	ui.gui.Update(func(*gocui.Gui) error {
		return gocui.ErrQuit
	})
}

func (ui *UI) messageLine(m session.MessageReceived) {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(msgView)
		if err != nil {
			return err
		}
		fmt.Fprintf(v, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Sender, m.Text)
		return nil
	})
}

func (ui *UI) systemLine(text string) {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(msgView)
		if err != nil {
			return err
		}
		fmt.Fprintf(v, "* %s\n", text)
		return nil
	})
}

func (ui *UI) setStatus(status string) {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(statusView)
		if err != nil {
			return err
		}
		v.Clear()
		fmt.Fprintf(v, "%s | %s | Ctrl-C or /quit to exit", ui.username, status)
		return nil
	})
}
