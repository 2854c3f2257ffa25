package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// quicConn carries the frame stream over a single bidirectional QUIC stream.
// QUIC is TLS 1.3 end to end, so the same trust model applies as for the
// TCP path.
type quicConn struct {
	qconn     *quic.Conn
	stream    *quic.Stream
	closeOnce sync.Once
}

func dialQUIC(ctx context.Context, host string, port int, opts Options) (Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	tlsConf := ClientTLSConfig(host, opts.RootCAs)
	quicConf := &quic.Config{
		MaxIdleTimeout: 30 * time.Second,
	}

	qconn, err := quic.DialAddr(ctx, addr, tlsConf, quicConf)
	if err != nil {
		return nil, classifyDialError(err)
	}

	// The peer learns about the stream on its first write; the login frame
	// follows immediately after dial, so no announcement write is needed.
	stream, err := qconn.OpenStreamSync(ctx)
	if err != nil {
		qconn.CloseWithError(0, "open stream failed")
		return nil, classifyDialError(err)
	}

	return &quicConn{qconn: qconn, stream: stream}, nil
}

func (c *quicConn) Read(p []byte) (int, error) {
	return c.stream.Read(p)
}

func (c *quicConn) Write(p []byte) (int, error) {
	return c.stream.Write(p)
}

func (c *quicConn) SetReadDeadline(t time.Time) error {
	return c.stream.SetReadDeadline(t)
}

// Close shuts the stream and sends CONNECTION_CLOSE, which unblocks any
// pending stream read.
func (c *quicConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stream.CancelRead(0)
		c.stream.Close()
		err = c.qconn.CloseWithError(0, "closed")
	})
	return err
}
