package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies why a connect attempt failed.
type FailureKind int

const (
	DNSFailure FailureKind = iota
	RefusedOrTimedOut
	TLSHandshakeFailed
)

func (k FailureKind) String() string {
	switch k {
	case DNSFailure:
		return "dns failure"
	case RefusedOrTimedOut:
		return "refused or timed out"
	case TLSHandshakeFailed:
		return "tls handshake failed"
	default:
		return "unknown"
	}
}

// ConnectError is a fatal connect-attempt failure. It is never retried by
// the transport; the caller decides whether to construct a new session.
type ConnectError struct {
	Kind FailureKind
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect: %s: %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// classifyDialError maps a raw dial/handshake error onto the connect
// failure taxonomy. Anything not recognizably DNS or TLS is treated as
// refused/timed out.
func classifyDialError(err error) *ConnectError {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ConnectError{Kind: DNSFailure, Err: err}
	}

	var certErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var unknownAuth x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) {
		return &ConnectError{Kind: TLSHandshakeFailed, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ConnectError{Kind: RefusedOrTimedOut, Err: err}
	}

	return &ConnectError{Kind: RefusedOrTimedOut, Err: err}
}
