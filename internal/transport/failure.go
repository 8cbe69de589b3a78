package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// FailureKind categorizes why a probe could not produce a response.
// The engine reports the category string as the result context and never
// aborts a run over an individual failure.
type FailureKind int

const (
	// FailureOther covers everything the more specific kinds do not.
	FailureOther FailureKind = iota

	// FailureProtocol indicates the peer spoke unparseable HTTP.
	FailureProtocol

	// FailureProxy indicates the configured proxy could not be used:
	// unreachable, handshake rejected, or CONNECT refused.
	FailureProxy

	// FailureConnection indicates the target itself could not be reached:
	// DNS failure, refused connection, or a dropped transfer.
	FailureConnection

	// FailureTimeout indicates the per-request time budget expired.
	FailureTimeout
)

// Category returns the short human-readable category for this kind.
// These exact strings appear in result contexts and archived runs, so they
// are load-bearing for anyone diffing run history.
func (k FailureKind) Category() string {
	switch k {
	case FailureProtocol:
		return "HTTP Error"
	case FailureProxy:
		return "Proxy Error"
	case FailureConnection:
		return "Error Connecting"
	case FailureTimeout:
		return "Timeout Error"
	default:
		return "Unknown Error"
	}
}

// Failure wraps a transport error with its taxonomy kind.
type Failure struct {
	// Kind is the failure category.
	Kind FailureKind

	// Err is the underlying error.
	Err error
}

// NewFailure classifies err and wraps it. A nil err returns nil.
func NewFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	return &Failure{Kind: classify(err), Err: err}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind.Category(), f.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a *Failure from an error chain. When err carries no
// Failure (which no path in this package produces), it is classified on the
// spot so callers always get a category.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return NewFailure(err)
}

// classify maps an error chain onto a FailureKind.
//
// The proxy check runs first: SOCKS dial errors surface as *net.OpError with
// a "socks connect" op and http-proxy CONNECT errors as op "proxyconnect",
// and both stay proxy failures even when the underlying cause was a timeout —
// a dead proxy should read as a proxy problem, not a slow site.
func classify(err error) FailureKind {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "proxyconnect" || strings.Contains(opErr.Op, "socks") {
			return FailureProxy
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	if opErr != nil {
		return FailureConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureConnection
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return FailureConnection
	}

	msg := err.Error()
	if strings.Contains(msg, "malformed HTTP") || strings.Contains(msg, "bad Content-Length") {
		return FailureProtocol
	}

	return FailureOther
}
