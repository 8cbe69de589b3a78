// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//   - Compatibility with tornago's slog-based logging
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers a site descriptor may override (Authorization, Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Proxy URLs carrying embedded credentials
//   - Session identifiers and the Tor control password
//
// Site catalogs are community-maintained documents whose per-site headers can
// carry real credentials, and probe debug logging walks those headers. Even in
// verbose mode, sensitive values are masked to prevent accidental exposure of
// secrets in logs that may be shared or stored.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("probe sent",
//	    "cookie", "session=abc123",  // Will be sanitized to "***REDACTED***"
//	    "url", "https://example.com/alice",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
//
// # Integration with tornago
//
// The SecureHandler is compatible with tornago's slog integration:
//
//	secureLogger := log.NewSecureLogger(os.Stderr, verbose)
//	// Use with tornago components that accept *slog.Logger
package log
