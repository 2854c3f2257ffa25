package transport

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"sync"
	"time"
)

// tlsConn wraps a TLS-over-TCP connection. Reads and writes go straight to
// the TLS record layer; Close sends a best-effort close_notify before
// tearing down the socket.
type tlsConn struct {
	conn      *tls.Conn
	closeOnce sync.Once
	closeErr  error
}

// dialTLS connects over TCP and completes the TLS handshake, verifying the
// server chain against the configured roots.
func dialTLS(ctx context.Context, host string, port int, opts Options) (Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := &tls.Dialer{
		Config: ClientTLSConfig(host, opts.RootCAs),
	}

	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError(err)
	}

	return &tlsConn{conn: rawConn.(*tls.Conn)}, nil
}

func (c *tlsConn) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

func (c *tlsConn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *tlsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close attempts one encrypted close_notify, then closes the socket. A
// failed close_notify is not escalated; a pending Read unblocks with an
// error either way.
func (c *tlsConn) Close() error {
	c.closeOnce.Do(func() {
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.conn.CloseWrite() // best-effort close_notify
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
