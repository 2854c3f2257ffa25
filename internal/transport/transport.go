package transport

import (
	"context"
	"crypto/x509"
	"io"
	"time"
)

// DialMode selects which transport to use when dialing.
type DialMode int

const (
	DialTLS DialMode = iota // TLS over TCP (default)
	DialQUIC
)

func (m DialMode) String() string {
	switch m {
	case DialTLS:
		return "TLS"
	case DialQUIC:
		return "QUIC"
	default:
		return "unknown"
	}
}

// DefaultPort is the conventional chatger server port.
const DefaultPort = 4348

// DefaultDialTimeout bounds the whole connect attempt (TCP + TLS handshake).
const DefaultDialTimeout = 10 * time.Second

// Conn is an established encrypted byte stream to the server. Reads and
// writes carry raw frame bytes; framing lives in the protocol package.
// A blocked Read is abandoned by closing the connection or by an expired
// read deadline; it is never retried internally.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
	Close() error
}

// Options carries dial-time knobs. The zero value is usable: system roots,
// default timeout.
type Options struct {
	// RootCAs overrides the root pool used to verify the server chain.
	// nil means the system trust store. Certificate verification is always
	// performed; there is no insecure mode.
	RootCAs *x509.CertPool

	// Timeout bounds the connect attempt. Zero means DefaultDialTimeout.
	Timeout time.Duration
}

// Dial connects to host:port over the selected transport and completes the
// TLS handshake. Failures are returned as a *ConnectError classifying the
// cause (DNS, refused/timeout, TLS).
func Dial(ctx context.Context, mode DialMode, host string, port int, opts Options) (Conn, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch mode {
	case DialQUIC:
		return dialQUIC(dialCtx, host, port, opts)
	default:
		return dialTLS(dialCtx, host, port, opts)
	}
}
