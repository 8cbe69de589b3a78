// Package transport issues the HTTP probes for the engine.
//
// It defines a small request/response contract (Client) so the engine never
// touches net/http directly: probes carry plain string headers and bodies,
// and responses carry only what classification needs — the final status code,
// the decoded body text, and the elapsed time until headers arrived.
//
// The direct implementation (HTTPClient) supports http, https, and socks5
// proxies and keeps two underlying clients over one shared connection pool:
// one that follows redirects and one that returns the raw response, because a
// redirect-following policy cannot be chosen per request on a single
// net/http client.
//
// Every transport error is wrapped in a Failure whose kind maps onto the
// engine's failure taxonomy; callers report the category string and move on.
package transport
