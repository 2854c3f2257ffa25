package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/blockdoth/chatger/internal/client"
	"github.com/blockdoth/chatger/internal/history"
	"github.com/blockdoth/chatger/internal/session"
	"github.com/blockdoth/chatger/internal/transport"
	"github.com/blockdoth/chatger/internal/ui"
	"github.com/blockdoth/chatger/internal/version"
)

// globalFlags holds double-dash flags parsed from os.Args before dispatch.
// rest contains the remaining arguments with global flags stripped.
type globalFlags struct {
	version   bool
	quic      bool
	noUI      bool
	autoLogin bool
	rest      []string
}

// parseGlobalFlags extracts double-dash flags from os.Args and returns
// the parsed values plus remaining args.
func parseGlobalFlags() globalFlags {
	var g globalFlags
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--version":
			g.version = true
		case "--quic":
			g.quic = true
		case "--no-ui":
			g.noUI = true
		case "--auto-login":
			g.autoLogin = true
		default:
			g.rest = append(g.rest, arg)
		}
	}
	return g
}

func main() {
	gf := parseGlobalFlags()

	if gf.version || (len(gf.rest) > 0 && gf.rest[0] == "version") {
		fmt.Printf("chatger %s (%s)\n", version.Version, version.Commit)
		os.Exit(0)
	}

	fs := flag.NewFlagSet("chatger", flag.ExitOnError)
	host := fs.String("host", "", "server host (default from config, else 127.0.0.1)")
	port := fs.Int("p", 0, "server port (default from config, else 4348)")
	user := fs.String("u", "", "username (prompted if not given)")
	pass := fs.String("pass", "", "password (prompted without echo if not given)")
	configPath := fs.String("config", "", "config file path (default: user config dir)")
	logPath := fs.String("log", "", "write debug logs to this file")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: chatger [flags]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "flags:")
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, "  --auto-login    send login immediately on connect")
		fmt.Fprintln(os.Stderr, "  --quic          use QUIC transport instead of TCP+TLS")
		fmt.Fprintln(os.Stderr, "  --no-ui         plain line mode on stdin/stdout")
		fmt.Fprintln(os.Stderr, "  --version       print version and exit")
	}
	fs.Parse(gf.rest)

	path := *configPath
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatger: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file.
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *user != "" {
		cfg.Username = *user
	}
	if *logPath != "" {
		cfg.LogFile = *logPath
	}
	if gf.quic {
		cfg.QUIC = true
	}
	if gf.autoLogin {
		cfg.AutoLogin = true
	}

	creds, err := resolveCredentials(cfg.Username, *pass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatger: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := setupLogger(cfg.LogFile, gf.noUI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	mode := transport.DialTLS
	if cfg.QUIC {
		mode = transport.DialQUIC
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Credentials: creds,
		AutoLogin:   cfg.AutoLogin,
		DialMode:    mode,
		Logger:      logger,
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- c.Run(ctx)
	}()

	scrollback := history.New(cfg.Scrollback)
	if gf.noUI {
		err = runHeadless(c, scrollback)
	} else {
		var u *ui.UI
		u, err = ui.New(c, scrollback, creds.Username, logger)
		if err == nil {
			err = u.Run()
		}
	}
	stop()

	if rerr := <-runErr; rerr != nil && rerr != context.Canceled {
		fmt.Fprintf(os.Stderr, "chatger: session ended: %v\n", rerr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatger: %v\n", err)
		os.Exit(1)
	}
}

// resolveCredentials fills in whatever the flags and config left blank.
// The password prompt never echoes.
func resolveCredentials(username, password string) (session.Credentials, error) {
	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Fprint(os.Stderr, "username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return session.Credentials{}, fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
		if username == "" {
			return session.Credentials{}, fmt.Errorf("username is required")
		}
	}

	if password == "" {
		fmt.Fprint(os.Stderr, "password: ")
		if term.IsTerminal(int(os.Stdin.Fd())) {
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return session.Credentials{}, fmt.Errorf("read password: %w", err)
			}
			password = string(raw)
		} else {
			line, err := reader.ReadString('\n')
			if err != nil {
				return session.Credentials{}, fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
	}

	return session.Credentials{Username: username, Password: password}, nil
}

// setupLogger picks a destination the UI cannot fight over: a file when
// asked for, stderr in line mode, discard otherwise.
func setupLogger(logFile string, headless bool) (*slog.Logger, func(), error) {
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
		return slog.New(h), func() { f.Close() }, nil
	}
	if headless {
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
		return slog.New(h), func() {}, nil
	}
	return slog.New(slog.DiscardHandler), func() {}, nil
}

// runHeadless is plain line mode: events print to stdout, stdin lines
// become commands. Useful for scripting and for terminals gocui cannot
// drive.
func runHeadless(c *client.Client, scrollback *history.Log) error {
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			in := ui.Parse(scanner.Text())
			var err error
			switch in.Action {
			case ui.ActionNone:
				continue
			case ui.ActionSay:
				err = c.Submit(session.SendMessage{Text: in.Text})
			case ui.ActionLogin:
				err = c.Submit(session.RequestLogin{})
			case ui.ActionQuit:
				c.Submit(session.Quit{})
				return
			case ui.ActionHelp:
				fmt.Println("* commands: /login, /quit")
				continue
			case ui.ActionUnknown:
				fmt.Printf("* unknown command /%s\n", in.Text)
				continue
			}
			if err != nil {
				fmt.Printf("* not sent: %v\n", err)
			}
		}
		// stdin closed; end the session cleanly.
		c.Submit(session.Quit{})
	}()

	for ev := range c.Events() {
		switch ev := ev.(type) {
		case session.Connected:
			fmt.Println("* connected")
		case session.AuthResult:
			if ev.OK {
				fmt.Println("* login successful")
			} else {
				fmt.Printf("* login failed: %s\n", ev.Reason)
			}
		case session.MessageReceived:
			scrollback.Append(ev.Sender, ev.Text, ev.Timestamp)
			fmt.Printf("[%s] %s: %s\n", ev.Timestamp.Format("15:04:05"), ev.Sender, ev.Text)
		case session.Notice:
			fmt.Printf("* %s\n", ev.Description)
		case session.ConnectionLost:
			fmt.Printf("* connection lost: %s\n", ev.Reason)
		}
	}
	return nil
}
