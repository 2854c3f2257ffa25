package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
)

// Listener accepts TLS-over-TCP connections for the server side. The chat
// client never listens; this exists for the loopback server used in tests
// and local development.
type Listener struct {
	ln   net.Listener
	port int
}

// Listen binds a TLS listener on the given port (0 = random).
func Listen(port int, cert tls.Certificate) (*Listener, error) {
	ln, err := tls.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port), ServerTLSConfig(cert))
	if err != nil {
		return nil, fmt.Errorf("tls listen: %w", err)
	}
	return &Listener{
		ln:   ln,
		port: ln.Addr().(*net.TCPAddr).Port,
	}, nil
}

// Port returns the bound port.
func (l *Listener) Port() int {
	return l.port
}

// Accept waits for the next client connection, respecting ctx cancellation.
func (l *Listener) Accept(ctx context.Context) (Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("accept: %w", res.err)
		}
		return &tlsConn{conn: res.conn.(*tls.Conn)}, nil
	case <-ctx.Done():
		// The goroutine may still be blocked in Accept; it unblocks when
		// the caller closes the listener. If it raced an accepted
		// connection, close it so it doesn't leak.
		go func() {
			res := <-ch
			if res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Close shuts down the listener.
func (l *Listener) Close() error {
	return l.ln.Close()
}
