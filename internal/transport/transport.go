package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
)

const (
	// defaultMaxBodySize limits how much of a response body is read.
	// Profile pages are small; anything beyond this cannot change a verdict
	// and only risks memory exhaustion on a hostile or broken site.
	defaultMaxBodySize = 5 * 1024 * 1024

	// maxRedirects bounds redirect chains for strategies that follow them.
	maxRedirects = 10
)

// Request describes one probe to send.
type Request struct {
	// Method is the HTTP method. An empty method means GET.
	Method string

	// URL is the fully resolved probe URL.
	URL string

	// Headers holds the complete header set for the request; the engine has
	// already merged defaults with descriptor overrides.
	Headers map[string]string

	// Body is the request payload, empty for bodiless requests.
	Body string

	// FollowRedirects selects the redirect policy. The response_url
	// detection kind needs the raw response, every other kind follows.
	FollowRedirects bool
}

// Response carries the parts of an HTTP response that classification needs.
type Response struct {
	// StatusCode is the final status code.
	StatusCode int

	// Body is the response body decoded to UTF-8, capped at the client's
	// body-size limit. Empty for HEAD probes.
	Body string

	// Elapsed is the time from sending the request until response headers
	// arrived, excluding body download.
	Elapsed time.Duration
}

// Client issues probes. Implementations must be safe for concurrent use;
// the engine calls Do from every worker.
type Client interface {
	// Do sends one probe. Any error it returns is a *Failure.
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPClient is the direct Client implementation over net/http.
//
// Design decision: It keeps two http.Clients over one shared Transport —
// one following redirects, one returning the raw response — because
// net/http fixes the redirect policy per client, while our policy varies
// per request with the site's detection kind. Sharing the Transport keeps
// a single connection pool either way.
type HTTPClient struct {
	// follow handles requests that may follow redirects.
	follow *http.Client

	// noFollow returns the first response untouched.
	noFollow *http.Client

	// transport is the shared pool, kept for CloseIdleConnections.
	transport *http.Transport

	// maxBodySize caps body reads.
	maxBodySize int64
}

// settings collects constructor options before validation.
type settings struct {
	proxyURL    string
	dialer      proxy.Dialer
	maxBodySize int64
}

// Option configures an HTTPClient.
type Option func(*settings)

// WithProxyURL routes all requests through the given proxy.
// Supported schemes: http, https, socks5, socks5h.
func WithProxyURL(rawURL string) Option {
	return func(s *settings) {
		s.proxyURL = rawURL
	}
}

// WithDialer routes all connections through the given dialer, typically a
// SOCKS5 dialer over a Tor circuit. Takes precedence over WithProxyURL.
func WithDialer(d proxy.Dialer) Option {
	return func(s *settings) {
		s.dialer = d
	}
}

// WithMaxBodySize overrides the response body read limit.
func WithMaxBodySize(n int64) Option {
	return func(s *settings) {
		s.maxBodySize = n
	}
}

// NewHTTPClient creates a direct transport client.
func NewHTTPClient(opts ...Option) (*HTTPClient, error) {
	s := &settings{maxBodySize: defaultMaxBodySize}
	for _, opt := range opts {
		opt(s)
	}

	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	switch {
	case s.dialer != nil:
		tr.DialContext = dialContextFrom(s.dialer)
	case s.proxyURL != "":
		if err := configureProxy(tr, s.proxyURL); err != nil {
			return nil, err
		}
	}

	return &HTTPClient{
		follow: &http.Client{
			Transport: tr,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		noFollow: &http.Client{
			Transport: tr,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		transport:   tr,
		maxBodySize: s.maxBodySize,
	}, nil
}

// configureProxy wires the parsed proxy URL into the transport.
func configureProxy(tr *http.Transport, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProxyURL, err)
	}

	switch u.Scheme {
	case "http", "https":
		tr.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProxyURL, err)
		}
		tr.DialContext = dialContextFrom(dialer)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProxyScheme, u.Scheme)
	}
	return nil
}

// dialContextFrom adapts a proxy.Dialer into a DialContext function.
// SOCKS5 dialers from x/net/proxy support contexts natively; for anything
// else the dial runs in a goroutine so cancellation at least unblocks the
// caller, even though the underlying attempt may continue briefly.
func dialContextFrom(d proxy.Dialer) func(context.Context, string, string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()
		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Do implements Client.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, NewFailure(err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	client := c.follow
	if !req.FollowRedirects {
		client = c.noFollow
	}

	start := time.Now()
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, NewFailure(err)
	}
	// Elapsed mirrors the time to response headers, not body download,
	// so it stays comparable between GET and HEAD probes.
	elapsed := time.Since(start)
	defer httpResp.Body.Close() //nolint:errcheck // Best effort cleanup

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Elapsed:    elapsed,
	}

	if method != http.MethodHead {
		body, err := c.readBody(httpResp)
		if err != nil {
			return nil, NewFailure(err)
		}
		resp.Body = body
	}
	return resp, nil
}

// readBody decodes the response body to UTF-8, honoring Content-Type
// charset declarations so message matching works on non-UTF-8 sites, and
// caps the read at the configured limit.
func (c *HTTPClient) readBody(httpResp *http.Response) (string, error) {
	limited := io.LimitReader(httpResp.Body, c.maxBodySize)
	decoded, err := charset.NewReader(limited, httpResp.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CloseIdleConnections drops pooled connections. The anonymized transport
// calls this on identity rotation so new requests cannot reuse streams that
// are pinned to the previous circuit.
func (c *HTTPClient) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}
