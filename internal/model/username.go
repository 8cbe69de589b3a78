package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxUsernameLength is the longest username accepted for probing.
// No mainstream site allows longer handles, and oversized input is usually
// a pasted mistake rather than a real handle.
const MaxUsernameLength = 64

// NormalizeUsername prepares raw command-line input for probing. Surrounding
// whitespace is trimmed and the text is converted to Unicode NFC, so a handle
// pasted in decomposed form produces the same probe URLs as the composed one.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

// ValidateUsername checks whether a username is plausible input for a
// probing run. This is a coarse sanity check on the CLI boundary; per-site
// format rules are enforced by each descriptor's legality pattern.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrUsernameForbiddenRune
		}
	}
	if strings.ContainsAny(username, "/?#%") {
		// These would change the meaning of the probe URL.
		return ErrUsernameForbiddenRune
	}
	return nil
}
