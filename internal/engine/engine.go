package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/handlescan/handlescan/internal/catalog"
	"github.com/handlescan/handlescan/internal/model"
	"github.com/handlescan/handlescan/internal/transport"
)

const (
	// DefaultMaxWorkers caps concurrent probes when the caller does not.
	// The effective pool is further bounded by the site count and the
	// number of logical CPUs.
	DefaultMaxWorkers = 20

	// DefaultUserAgent is sent with every probe unless a descriptor
	// overrides it. Some sites answer obvious bots with a different page
	// than they answer browsers, which would skew message detection.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.12; rv:55.0) Gecko/20100101 Firefox/55.0"
)

// IdentityRotator switches an anonymized transport to a fresh identity.
// Implementations must serialize rotations internally; the engine calls
// RotateIdentity from concurrent workers.
type IdentityRotator interface {
	RotateIdentity(ctx context.Context) error
}

// Engine runs probing passes. It is safe for concurrent use; each Probe
// call owns its run state.
type Engine struct {
	// client issues the probes.
	client transport.Client

	// logger receives run-level and per-probe debug logging.
	logger *slog.Logger

	// maxWorkers is the caller's concurrency cap.
	maxWorkers int

	// requestTimeout bounds one probe, zero means unbounded. An unbounded
	// probe against a hung site blocks only its own worker, but the run
	// cannot finish until every site resolves.
	requestTimeout time.Duration

	// rotator, when set, is asked for a fresh identity after each dispatch.
	rotator IdentityRotator

	// limiter, when set, paces dispatches globally across all workers.
	limiter *rate.Limiter

	// userAgent is sent with probes whose descriptor does not set its own.
	userAgent string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxWorkers sets the concurrency cap. Non-positive values are ignored.
func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxWorkers = n
		}
	}
}

// WithRequestTimeout bounds each individual probe. A probe that exceeds the
// budget resolves to Unknown with a timeout context instead of blocking the
// run.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.requestTimeout = d
		}
	}
}

// WithIdentityRotation asks for a fresh identity after every dispatch.
// Rotation failures are logged and the probe proceeds on the old identity.
func WithIdentityRotation(r IdentityRotator) Option {
	return func(e *Engine) {
		e.rotator = r
	}
}

// WithRateLimit paces dispatches to at most perSecond requests per second
// across all workers. Non-positive values are ignored.
func WithRateLimit(perSecond float64) Option {
	return func(e *Engine) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithUserAgent replaces the default User-Agent for probes whose descriptor
// does not set its own. Empty values are ignored.
func WithUserAgent(ua string) Option {
	return func(e *Engine) {
		if ua != "" {
			e.userAgent = ua
		}
	}
}

// New creates an Engine probing through the given transport client.
func New(client transport.Client, opts ...Option) *Engine {
	e := &Engine{
		client:     client,
		maxWorkers: DefaultMaxWorkers,
		userAgent:  DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Probe checks the username against every site in the catalog and returns
// one result per site, keyed by site name.
//
// The sink sees Start once, then Update exactly once per site from a single
// collector goroutine, then Finish once. Iteration follows catalog order;
// completion order is unconstrained. Transport failures become Unknown
// results and never abort the run; only a configuration error aborts, and it
// does so before the sink sees any callback.
//
// Cancelling ctx does not abandon the mapping: in-flight and pending probes
// resolve quickly as Unknown results, preserving one result per site.
func (e *Engine) Probe(ctx context.Context, username string, cat *catalog.Catalog, sink model.NotifySink) (map[string]model.QueryResult, error) {
	if e.client == nil {
		return nil, ErrNoTransport
	}
	if sink == nil {
		sink = model.NopSink{}
	}

	// Pre-flight before any side effect: a descriptor without a resolved
	// strategy bypassed the loader's validation.
	sites := cat.Sites()
	for _, d := range sites {
		if d.Detect == nil {
			return nil, fmt.Errorf("%w: site %q", ErrNoStrategy, d.Name)
		}
	}

	sink.Start(username)

	workers := poolSize(len(sites), e.maxWorkers)
	e.logger.Info("probe run starting",
		"username", username,
		"sites", len(sites),
		"workers", workers,
	)
	start := time.Now()

	// Buffered to the site count so no producer ever blocks on the
	// collector: Illegal results are synthesized during dispatch, before
	// collection begins.
	completions := make(chan model.QueryResult, len(sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, d := range sites {
		if !d.AllowsUsername(username) {
			// No request, no worker slot, no elapsed time.
			completions <- model.QueryResult{
				Username: username,
				SiteName: d.Name,
				UserURL:  d.UserPageURL(username),
				Status:   model.StatusIllegal,
			}
			continue
		}

		g.Go(func() error {
			completions <- e.probeSite(gctx, username, d)
			return nil
		})
	}

	go func() {
		// Workers never return errors; transport failures are results.
		_ = g.Wait() //nolint:errcheck
		close(completions)
	}()

	// Single collector owns the mapping and the sink's update stream.
	results := make(map[string]model.QueryResult, len(sites))
	for result := range completions {
		sink.Update(result)
		results[result.SiteName] = result
	}

	sink.Finish()
	e.logger.Info("probe run complete",
		"username", username,
		"sites", len(sites),
		"elapsed", time.Since(start),
	)
	return results, nil
}

// poolSize bounds concurrency by the site count, the caller's cap, and the
// logical CPU count. Probes are network-bound, but more workers than sites
// is pointless and more workers than cores mostly adds scheduler churn on
// the response path.
func poolSize(siteCount, maxWorkers int) int {
	size := min(siteCount, maxWorkers, runtime.NumCPU())
	if size < 1 {
		size = 1
	}
	return size
}

// probeSite runs one probe to completion. It always returns a result;
// every failure path maps to StatusUnknown with the failure category.
func (e *Engine) probeSite(ctx context.Context, username string, d *catalog.Descriptor) model.QueryResult {
	userURL := d.UserPageURL(username)

	req := &transport.Request{
		Method:          d.Method,
		URL:             d.ProbeTargetURL(username),
		Headers:         e.requestHeaders(d),
		FollowRedirects: d.Detect.FollowRedirects(),
	}
	if d.Method == http.MethodPost {
		req.Body = d.PayloadBody(username)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return e.failureResult(username, d.Name, userURL, err)
		}
	}

	if e.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.requestTimeout)
		defer cancel()
	}

	resp, err := e.send(ctx, req)
	if err != nil {
		return e.failureResult(username, d.Name, userURL, err)
	}

	verdict := d.Detect.Classify(resp.StatusCode, resp.Body)
	e.logger.Debug("probe classified",
		"site", d.Name,
		"status", verdict.Status,
		"http_status", resp.StatusCode,
		"elapsed", resp.Elapsed,
	)
	return model.QueryResult{
		Username: username,
		SiteName: d.Name,
		UserURL:  userURL,
		Status:   verdict.Status,
		Elapsed:  resp.Elapsed,
		Context:  verdict.Context,
	}
}

// send dispatches the request. With rotation enabled, the identity rotates
// immediately after dispatch, before this dispatch's response is awaited, so
// the next probe takes a fresh circuit while this one finishes on the old.
func (e *Engine) send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if e.rotator == nil {
		return e.client.Do(ctx, req)
	}

	type outcome struct {
		resp *transport.Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := e.client.Do(ctx, req)
		done <- outcome{resp: resp, err: err}
	}()

	if err := e.rotator.RotateIdentity(ctx); err != nil {
		// The probe is still valid on the old identity; rotation is for
		// unlinkability between probes, not correctness.
		e.logger.Warn("identity rotation failed", "error", err)
	}

	o := <-done
	return o.resp, o.err
}

// failureResult maps a transport failure onto an Unknown result carrying
// the failure category as context. No elapsed time is recorded because no
// response arrived.
func (e *Engine) failureResult(username, site, userURL string, err error) model.QueryResult {
	failure := transport.AsFailure(err)
	e.logger.Debug("probe failed",
		"site", site,
		"category", failure.Kind.Category(),
		"error", err,
	)
	return model.QueryResult{
		Username: username,
		SiteName: site,
		UserURL:  userURL,
		Status:   model.StatusUnknown,
		Context:  failure.Kind.Category(),
	}
}

// requestHeaders merges the engine's defaults with descriptor overrides,
// descriptor values winning on conflict.
func (e *Engine) requestHeaders(d *catalog.Descriptor) map[string]string {
	headers := make(map[string]string, 1+len(d.Headers))
	headers["User-Agent"] = e.userAgent
	for key, value := range d.Headers {
		headers[key] = value
	}
	return headers
}
