// Package tor provides the anonymized transport path for handlescan.
//
// A Circuit bundles what one rotatable Tor identity needs: the SOCKS5
// endpoint that probe traffic is routed through, and optionally the control
// endpoint used to request a fresh identity (SIGNAL NEWNYM) between probes.
// Rotations are serialized by a mutex inside the Circuit, and the circuit's
// pooled HTTP connections are dropped on rotation so new requests cannot
// silently reuse streams pinned to the previous identity.
//
// The daemon can be external (a running Tor with its SOCKS port, the
// default 127.0.0.1:9050) or embedded via the tornago library, which
// launches and supervises a private Tor process with its own data
// directory and cookie authentication.
//
// Design decision: identity rotation speaks the control protocol directly
// over a TCP connection rather than going through a client library. The
// protocol needed here is two line-oriented commands (AUTHENTICATE, SIGNAL
// NEWNYM) with "250" acknowledgements, and owning the exchange keeps the
// rotation path free of connection pooling that could blur when a NEWNYM
// takes effect.
package tor
