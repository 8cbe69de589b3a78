package transport

import "errors"

// Client construction errors.
var (
	// ErrInvalidProxyURL is returned when the proxy URL cannot be parsed.
	ErrInvalidProxyURL = errors.New("invalid proxy URL")

	// ErrUnsupportedProxyScheme is returned for proxy schemes other than
	// http, https, socks5, and socks5h.
	ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme")
)
