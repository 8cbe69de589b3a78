package tor

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"strings"
	"time"
)

// ControlAuth holds credentials for the Tor control port. Exactly one of
// CookiePath or Password is normally set; when both are empty the circuit
// sends a bare AUTHENTICATE, which succeeds only on daemons configured
// without authentication.
type ControlAuth struct {
	// CookiePath is the path to the daemon's control_auth_cookie file.
	CookiePath string

	// Password is the HashedControlPassword cleartext.
	Password string
}

// CookieAuth returns control-port credentials backed by a cookie file.
func CookieAuth(path string) ControlAuth {
	return ControlAuth{CookiePath: path}
}

// PasswordAuth returns control-port credentials backed by a password.
func PasswordAuth(password string) ControlAuth {
	return ControlAuth{Password: password}
}

// controlConn is a connection to the Tor control port speaking the
// line-oriented control protocol: commands go out as single CRLF-terminated
// lines, replies come back as one or more "250"-prefixed lines where a dash
// after the code marks a continuation and a space marks the final line.
type controlConn struct {
	conn net.Conn
	text *textproto.Conn
}

// dialControl connects to the control port. The deadline covers the whole
// exchange, not just the dial, so a daemon that accepts the connection and
// then stalls still fails fast.
func dialControl(ctx context.Context, addr string, timeout time.Duration) (*controlConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrControlCommand, addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close() //nolint:errcheck // Best effort cleanup
			return nil, fmt.Errorf("%w: %w", ErrControlCommand, err)
		}
	} else if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("%w: %w", ErrControlCommand, err)
	}
	return &controlConn{conn: conn, text: textproto.NewConn(conn)}, nil
}

// close releases the control connection.
func (cc *controlConn) close() {
	cc.text.Close() //nolint:errcheck // Best effort cleanup
}

// authenticate identifies this client to the daemon. Cookie bytes are sent
// hex-encoded without quotes; passwords are sent as a quoted string per the
// control protocol grammar.
func (cc *controlConn) authenticate(auth ControlAuth) error {
	var cmd string
	switch {
	case auth.CookiePath != "":
		cookie, err := os.ReadFile(auth.CookiePath)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCookieUnreadable, err)
		}
		cmd = "AUTHENTICATE " + hex.EncodeToString(cookie)
	case auth.Password != "":
		cmd = fmt.Sprintf("AUTHENTICATE %q", auth.Password)
	default:
		cmd = "AUTHENTICATE"
	}
	return cc.roundTrip(cmd)
}

// signalNewnym asks the daemon to switch to clean circuits. New streams
// opened after a successful reply take fresh identities; the daemon may
// rate-limit back-to-back signals internally.
func (cc *controlConn) signalNewnym() error {
	return cc.roundTrip("SIGNAL NEWNYM")
}

// roundTrip sends one command and consumes the daemon's reply, failing on
// any status other than 250.
func (cc *controlConn) roundTrip(cmd string) error {
	if err := cc.text.PrintfLine("%s", cmd); err != nil {
		return fmt.Errorf("%w: send: %w", ErrControlCommand, err)
	}

	for {
		line, err := cc.text.ReadLine()
		if err != nil {
			return fmt.Errorf("%w: read reply: %w", ErrControlCommand, err)
		}
		if len(line) < 3 {
			return fmt.Errorf("%w: short reply %q", ErrControlCommand, line)
		}
		code := line[:3]
		if code != "250" {
			return fmt.Errorf("%w: %s", ErrControlCommand, strings.TrimSpace(line))
		}
		// "250-" and "250+" are continuation lines; "250 " (or a bare
		// "250") ends the reply.
		if len(line) == 3 || line[3] == ' ' {
			return nil
		}
	}
}
