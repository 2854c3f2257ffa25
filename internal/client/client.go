// Package client runs one chat session end to end: it owns the encrypted
// transport, drives the session state machine, and multiplexes inbound
// frames, user commands, and the heartbeat timer onto a single ordered
// event stream for the UI.
package client

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blockdoth/chatger/internal/protocol"
	"github.com/blockdoth/chatger/internal/session"
	"github.com/blockdoth/chatger/internal/transport"
)

const (
	readBufSize = 32 * 1024 // 32 KB per transport read

	DefaultHeartbeatInterval = 5 * time.Second
	DefaultRecvTimeout       = 15 * time.Second
	DefaultEventBuffer       = 64
	DefaultCommandBuffer     = 16
)

// Config holds everything a session needs, supplied once at construction
// and immutable afterwards.
type Config struct {
	Host        string
	Port        int
	Credentials session.Credentials
	AutoLogin   bool

	DialMode transport.DialMode
	// RootCAs overrides the trust store for server certificate
	// verification. nil means the system roots.
	RootCAs     *x509.CertPool
	DialTimeout time.Duration

	HeartbeatInterval time.Duration
	RecvTimeout       time.Duration

	// EventBuffer bounds the UI event channel. A full channel blocks the
	// bridge (backpressure); events are never dropped.
	EventBuffer int
	// CommandBuffer bounds the command queue. A full queue rejects Submit
	// with ErrBusy.
	CommandBuffer int

	Logger *slog.Logger
}

// Client is one session lifecycle: dial, authenticate, relay, tear down.
// A Client is not reused across connection attempts; construct a new one
// to reconnect.
type Client struct {
	cfg      Config
	log      *slog.Logger
	machine  *session.Machine
	events   chan session.Event
	commands chan session.Command
}

// New creates a client from cfg, filling in defaults for zero-valued knobs.
func New(cfg Config) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.RecvTimeout <= 0 {
		cfg.RecvTimeout = DefaultRecvTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultCommandBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		cfg:      cfg,
		log:      logger.With("component", "client"),
		machine:  session.NewMachine(cfg.Credentials, cfg.AutoLogin),
		events:   make(chan session.Event, cfg.EventBuffer),
		commands: make(chan session.Command, cfg.CommandBuffer),
	}
}

// Events returns the inbound event stream for the UI. It is closed when
// Run returns; the terminal event, if any, is the last one delivered.
func (c *Client) Events() <-chan session.Event {
	return c.events
}

// Submit enqueues a user command without blocking. Returns ErrBusy when
// the bounded queue is full; the caller may retry later.
func (c *Client) Submit(cmd session.Command) error {
	select {
	case c.commands <- cmd:
		return nil
	default:
		return session.ErrBusy
	}
}

// State returns the machine's current state. Safe only for coarse display;
// the loop may have moved on by the time the caller looks.
func (c *Client) State() session.State {
	return c.machine.State()
}

// readResult carries a decoded frame or error from the read goroutine.
type readResult struct {
	frame any
	err   error
}

// Run executes one full session and blocks until it ends: clean quit,
// login rejection, fatal error, or ctx cancellation. The events channel is
// closed on return. Run never reconnects; that decision belongs to the
// caller, with a fresh Client.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	c.machine.ConnectStarted()
	c.log.Debug("dialing", "host", c.cfg.Host, "port", c.cfg.Port, "mode", c.cfg.DialMode.String())

	conn, err := transport.Dial(ctx, c.cfg.DialMode, c.cfg.Host, c.cfg.Port, transport.Options{
		RootCAs: c.cfg.RootCAs,
		Timeout: c.cfg.DialTimeout,
	})
	if err != nil {
		c.publish(ctx, c.machine.ConnectFailed(err).Events)
		return err
	}
	defer conn.Close()

	if done, err := c.apply(ctx, conn, c.machine.TransportReady(time.Now())); done || err != nil {
		return err
	}

	frameCh := make(chan readResult, 16)
	readDone := make(chan struct{})
	defer close(readDone)
	go readLoop(conn, frameCh, readDone)

	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case res := <-frameCh:
			if res.err != nil {
				if perr := c.finish(ctx, c.streamError(res.err)); perr != nil {
					return perr
				}
				return fmt.Errorf("session failed: %w", res.err)
			}
			done, err := c.apply(ctx, conn, c.machine.HandleFrame(res.frame, time.Now()))
			if done || err != nil {
				return err
			}

		case cmd := <-c.commands:
			done, err := c.apply(ctx, conn, c.machine.HandleCommand(cmd, time.Now()))
			if done {
				c.machine.CloseSent()
				return err
			}
			if err != nil {
				return err
			}

		case <-heartbeat.C:
			if err := protocol.WriteFrame(conn, &protocol.Heartbeat{
				TimestampMs: time.Now().UnixMilli(),
			}); err != nil {
				if perr := c.finish(ctx, c.machine.TransportFailed(err)); perr != nil {
					return perr
				}
				return fmt.Errorf("heartbeat write: %w", err)
			}
			if since := time.Since(c.machine.LastActivity()); since > c.cfg.RecvTimeout {
				c.log.Warn("liveness window exceeded", "since_last_frame", since)
				if err := c.finish(ctx, c.machine.RecvTimeout()); err != nil {
					return err
				}
				return fmt.Errorf("receive timeout after %s", since.Truncate(time.Millisecond))
			}

		case <-ctx.Done():
			// Best-effort close notification; the deferred Close follows.
			protocol.WriteFrame(conn, &protocol.Disconnect{Reason: "client quit"})
			return ctx.Err()
		}
	}
}

// apply writes the frames and publishes the events of one machine result,
// in that order. All transport writes happen here, on the loop goroutine.
func (c *Client) apply(ctx context.Context, conn transport.Conn, res session.Result) (bool, error) {
	for _, f := range res.Frames {
		if err := protocol.WriteFrame(conn, f); err != nil {
			if res.Done {
				// Already tearing down; the close frame is best-effort.
				break
			}
			if perr := c.finish(ctx, c.machine.TransportFailed(err)); perr != nil {
				return true, perr
			}
			return true, fmt.Errorf("write frame: %w", err)
		}
	}
	if err := c.publish(ctx, res.Events); err != nil {
		return true, err
	}
	return res.Done, nil
}

// finish publishes the terminal events of res and reports how the session
// ended.
func (c *Client) finish(ctx context.Context, res session.Result) error {
	return c.publish(ctx, res.Events)
}

// publish delivers events in generation order. A full channel blocks the
// bridge rather than dropping — message loss is never silent. Cancellation
// is the only escape.
func (c *Client) publish(ctx context.Context, events []session.Event) error {
	for _, ev := range events {
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// streamError maps a read-goroutine error onto the machine: undecodable
// bytes are a protocol fault, everything else is a transport failure.
func (c *Client) streamError(err error) session.Result {
	if errors.Is(err, protocol.ErrPayloadTooLarge) ||
		errors.Is(err, protocol.ErrUnknownFrame) ||
		errors.Is(err, protocol.ErrShortPayload) {
		c.log.Error("corrupt inbound stream", "err", err)
		return c.machine.StreamCorrupted(err)
	}
	c.log.Debug("transport read ended", "err", err)
	return c.machine.TransportFailed(err)
}

// readLoop drives transport reads through the streaming decoder, draining
// every complete frame before requesting more bytes. Frames are delivered
// in exact wire order. Exits on the first read or decode error, or when
// done closes with frames still undelivered (the loop stopped receiving);
// closing the transport unblocks a pending read.
func readLoop(conn transport.Conn, ch chan<- readResult, done <-chan struct{}) {
	var dec protocol.Decoder
	buf := make([]byte, readBufSize)
	deliver := func(res readResult) bool {
		select {
		case ch <- res:
			return true
		case <-done:
			return false
		}
	}
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				frame, derr := dec.Next()
				if derr == protocol.ErrIncomplete {
					break
				}
				if derr != nil {
					deliver(readResult{err: derr})
					return
				}
				if !deliver(readResult{frame: frame}) {
					return
				}
			}
		}
		if err != nil {
			deliver(readResult{err: err})
			return
		}
	}
}
