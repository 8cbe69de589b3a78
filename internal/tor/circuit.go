package tor

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/handlescan/handlescan/internal/transport"
)

// checkProxyTimeout is the timeout for checking if the Tor proxy is available.
// We use a short timeout here because this is just a connectivity check,
// not an actual request through Tor.
const checkProxyTimeout = 2 * time.Second

// defaultControlTimeout bounds one control-port exchange (dial, authenticate,
// signal). Rotations happen between probe dispatches, so a hung control port
// must not stall the worker pool for long.
const defaultControlTimeout = 10 * time.Second

// Circuit is one rotatable Tor identity. Probe traffic is routed through its
// SOCKS5 endpoint; RotateIdentity asks the daemon for a fresh identity over
// the control port.
//
// Design decision: The circuit is an explicit handle that callers construct
// and pass where it is needed, never package-level state. Rotation is
// mutex-guarded so at most one NEWNYM is in flight even though probe dispatch
// is concurrent; requests already in flight on the old identity are
// deliberately left to finish, matching the long-standing behavior of
// rotating right after dispatch rather than after the response.
type Circuit struct {
	// socksAddr is the Tor SOCKS5 proxy address in "host:port" format.
	socksAddr string

	// controlAddr is the control port address, empty when unavailable.
	controlAddr string

	// auth supplies control-port credentials.
	auth ControlAuth

	// controlTimeout bounds control-port exchanges.
	controlTimeout time.Duration

	// dialer is the SOCKS5 dialer for routed connections.
	// We cache this to avoid recreating it for each connection.
	dialer proxy.Dialer

	// mu serializes rotations and lazy client construction.
	mu sync.Mutex

	// probeClient is the lazily built HTTP transport over this circuit.
	// Kept so rotation can drop its pooled connections.
	probeClient *transport.HTTPClient
}

// CircuitOption configures a Circuit.
type CircuitOption func(*Circuit)

// WithControlAddr sets the control port address used for identity rotation.
func WithControlAddr(addr string) CircuitOption {
	return func(c *Circuit) {
		c.controlAddr = addr
	}
}

// WithControlAuth sets the control-port credentials.
func WithControlAuth(auth ControlAuth) CircuitOption {
	return func(c *Circuit) {
		c.auth = auth
	}
}

// WithControlTimeout overrides the control-port exchange timeout.
func WithControlTimeout(d time.Duration) CircuitOption {
	return func(c *Circuit) {
		c.controlTimeout = d
	}
}

// NewCircuit creates a circuit over the given SOCKS5 proxy address.
//
// The address must be in "host:port" format (e.g., "127.0.0.1:9050").
// The constructor validates the address format but does not contact the
// proxy; call CheckConnection to verify the daemon is reachable. This keeps
// construction usable before Tor has finished starting and keeps tests free
// of network dependencies.
func NewCircuit(socksAddr string, opts ...CircuitOption) (*Circuit, error) {
	if !isValidProxyAddress(socksAddr) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port does not require authentication by default.
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}

	c := &Circuit{
		socksAddr:      socksAddr,
		controlTimeout: defaultControlTimeout,
		dialer:         dialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
// We use a simple check rather than a full URL parser because the format
// is very specific (no scheme, no path, just host and port).
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return false
	}
	if host == "" || port == "" {
		return false
	}

	portNum := 0
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
		portNum = portNum*10 + int(c-'0')
		if portNum > 65535 {
			return false
		}
	}
	return portNum >= 1
}

// SocksAddr returns the SOCKS5 proxy address this circuit routes through.
func (c *Circuit) SocksAddr() string {
	return c.socksAddr
}

// ControlAddr returns the control port address, empty when not configured.
func (c *Circuit) ControlAddr() string {
	return c.controlAddr
}

// Dialer returns the SOCKS5 dialer for connections over this circuit.
func (c *Circuit) Dialer() proxy.Dialer {
	return c.dialer
}

// CanRotate reports whether this circuit has a control endpoint to ask for
// new identities.
func (c *Circuit) CanRotate() bool {
	return c.controlAddr != ""
}

// ProbeClient returns the HTTP transport client routed through this circuit,
// building it on first use. The same client is returned on every call so
// rotation can invalidate its connection pool.
func (c *Circuit) ProbeClient() (*transport.HTTPClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.probeClient == nil {
		client, err := transport.NewHTTPClient(transport.WithDialer(c.dialer))
		if err != nil {
			return nil, err
		}
		c.probeClient = client
	}
	return c.probeClient, nil
}

// RotateIdentity asks the daemon for a fresh identity (SIGNAL NEWNYM) and
// drops the circuit's pooled connections so subsequent requests open new
// streams. Only one rotation runs at a time.
func (c *Circuit) RotateIdentity(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.controlAddr == "" {
		return ErrControlNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.controlTimeout)
	defer cancel()

	ctrl, err := dialControl(ctx, c.controlAddr, c.controlTimeout)
	if err != nil {
		return err
	}
	defer ctrl.close()

	if err := ctrl.authenticate(c.auth); err != nil {
		return err
	}
	if err := ctrl.signalNewnym(); err != nil {
		return err
	}

	if c.probeClient != nil {
		c.probeClient.CloseIdleConnections()
	}
	return nil
}

// SOCKS5 protocol constants.
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5TestTarget is a synthetic .onion address used for SOCKS5
	// verification. It is intentionally non-existent: the check only needs
	// the proxy to process a CONNECT request, not to reach anything, and a
	// fake address avoids touching real services.
	socks5TestTarget = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
)

// CheckConnection verifies that the Tor proxy is running and accessible.
// It returns a ProxyStatus indicating the result of the check.
//
// The check performs a real SOCKS5 handshake to verify the listener speaks
// SOCKS5 without authentication and processes CONNECT requests for .onion
// domains. This is more robust than probing for an HTTP banner: a non-Tor
// service on the port cannot easily mimic proper SOCKS5 behavior.
func (c *Circuit) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.socksAddr)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close() //nolint:errcheck // Best effort cleanup

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Version negotiation: offer "no authentication" only.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		// Anything else means it didn't speak SOCKS5 properly.
		return ProxyStatusWrongType
	}

	if authResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	if authResp[1] == socks5AuthNoAccept || authResp[1] != socks5AuthNone {
		// Tor's SOCKS port accepts unauthenticated clients by default.
		return ProxyStatusWrongType
	}

	// CONNECT to the synthetic target. Any well-formed reply (success or
	// host-unreachable) proves the listener actually proxies SOCKS5
	// requests instead of merely accepting the handshake.
	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00, // reserved
		socks5AddrTypeDomID,
		byte(len(socks5TestTarget)),
	}
	connectReq = append(connectReq, []byte(socks5TestTarget)...)
	connectReq = append(connectReq, 0x00, 0x50) // port 80

	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}
