// Package chatserver is a minimal loopback chatger server: it authenticates
// clients against a static user table and relays chat messages between them.
// It exists for integration tests and local development, not production use.
package chatserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blockdoth/chatger/internal/protocol"
	"github.com/blockdoth/chatger/internal/transport"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	loginDeadline            = 5 * time.Second
)

// Config holds server configuration.
type Config struct {
	Port int
	Cert tls.Certificate

	// Users maps username to password. Anything else is rejected.
	Users map[string]string

	// HeartbeatInterval between server heartbeats per connection.
	// 0 = default; negative = no heartbeats (silent server, used by
	// liveness tests).
	HeartbeatInterval time.Duration

	Logger *slog.Logger
}

// Server accepts TLS connections, performs the login exchange, and
// broadcasts chat messages to every authenticated client.
type Server struct {
	cfg Config
	log *slog.Logger
	ln  *transport.Listener

	mu     sync.Mutex
	conns  map[uint64]*clientConn
	nextID uint64

	// OnAuthenticated, if set, runs once per connection right after the
	// LoginAck, with exclusive access to the write side. Tests use it to
	// inject raw bytes.
	OnAuthenticated func(w io.Writer)

	// Ready is closed after the listener is bound, with Port set.
	Ready chan struct{}
	Port  int
}

// clientConn is one authenticated connection with serialized writes.
type clientConn struct {
	conn transport.Conn
	mu   sync.Mutex
}

func (c *clientConn) writeFrame(frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteFrame(c.conn, frame)
}

// New creates a server but does not start it. Call Run to begin.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:   cfg,
		log:   logger.With("component", "chatserver"),
		conns: make(map[uint64]*clientConn),
		Ready: make(chan struct{}),
	}
}

// Run binds the listener and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := transport.Listen(s.cfg.Port, s.cfg.Cert)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.ln = ln
	defer s.ln.Close()

	s.Port = ln.Port()
	close(s.Ready)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.closeAll()
				return ctx.Err()
			}
			// Accept errors (failed handshakes etc.) are transient.
			s.log.Warn("accept", "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn authenticates one connection and relays its traffic until it
// drops or ctx ends.
func (s *Server) handleConn(ctx context.Context, conn transport.Conn) {
	defer conn.Close()

	// The login must arrive promptly; a silent peer can't hold a slot.
	conn.SetReadDeadline(time.Now().Add(loginDeadline))
	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		s.log.Debug("read login", "err", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	login, ok := frame.(*protocol.Login)
	if !ok {
		protocol.WriteFrame(conn, &protocol.ErrorFrame{
			Description: fmt.Sprintf("expected Login, got %T", frame),
		})
		return
	}

	password, known := s.cfg.Users[login.Username]
	if !known || password != login.Password {
		s.log.Info("login rejected", "username", login.Username)
		protocol.WriteFrame(conn, &protocol.LoginReject{Reason: "rejected"})
		return
	}

	cc := &clientConn{conn: conn}
	id := s.register(cc)
	defer s.unregister(id)

	if err := cc.writeFrame(&protocol.LoginAck{ConnID: id}); err != nil {
		return
	}
	s.log.Info("login accepted", "username", login.Username, "conn_id", id)

	if s.OnAuthenticated != nil {
		cc.mu.Lock()
		s.OnAuthenticated(cc.conn)
		cc.mu.Unlock()
	}

	hbInterval := s.cfg.HeartbeatInterval
	if hbInterval == 0 {
		hbInterval = defaultHeartbeatInterval
	}
	if hbInterval > 0 {
		stopHB := make(chan struct{})
		defer close(stopHB)
		go s.heartbeatLoop(cc, hbInterval, stopHB)
	}

	var msgSeq uint64 // per-connection count of accepted messages
	for {
		frame, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.log.Debug("conn read", "conn_id", id, "err", err)
			}
			return
		}

		switch f := frame.(type) {
		case *protocol.Message:
			msgSeq++
			cc.writeFrame(&protocol.MessageAck{Seq: msgSeq})
			s.broadcast(&protocol.Message{
				TimestampMs: f.TimestampMs,
				Sender:      login.Username,
				Text:        f.Text,
			})
		case *protocol.Heartbeat:
			// Liveness noted; nothing to do.
		case *protocol.Disconnect:
			s.log.Info("client quit", "conn_id", id)
			return
		default:
			cc.writeFrame(&protocol.ErrorFrame{
				Description: fmt.Sprintf("unexpected frame %T", frame),
			})
			return
		}
	}
}

func (s *Server) heartbeatLoop(cc *clientConn, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := cc.writeFrame(&protocol.Heartbeat{
				TimestampMs: time.Now().UnixMilli(),
			}); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (s *Server) register(cc *clientConn) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.conns[s.nextID] = cc
	return s.nextID
}

func (s *Server) unregister(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// broadcast relays a message to every authenticated connection, including
// the sender (the echo doubles as the sender's delivery confirmation in
// the UI).
func (s *Server) broadcast(msg *protocol.Message) {
	s.mu.Lock()
	targets := make([]*clientConn, 0, len(s.conns))
	for _, cc := range s.conns {
		targets = append(targets, cc)
	}
	s.mu.Unlock()

	for _, cc := range targets {
		if err := cc.writeFrame(msg); err != nil {
			s.log.Debug("broadcast write", "err", err)
		}
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cc := range s.conns {
		cc.conn.Close()
		delete(s.conns, id)
	}
}
