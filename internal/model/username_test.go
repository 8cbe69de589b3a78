package model

import (
	"errors"
	"strings"
	"testing"
)

// TestValidateUsername tests the coarse input check on the CLI boundary.
func TestValidateUsername(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		username string
		wantErr  error
	}{
		{"plain handle", "alice", nil},
		{"digits and separators", "alice_bob-99.dev", nil},
		{"unicode handle", "日本語ハンドル", nil},
		{"empty", "", ErrEmptyUsername},
		{"too long", strings.Repeat("a", MaxUsernameLength+1), ErrUsernameTooLong},
		{"at limit", strings.Repeat("a", MaxUsernameLength), nil},
		{"embedded space", "alice bob", ErrUsernameForbiddenRune},
		{"tab", "alice\tbob", ErrUsernameForbiddenRune},
		{"newline", "alice\n", ErrUsernameForbiddenRune},
		{"path separator", "alice/bob", ErrUsernameForbiddenRune},
		{"query marker", "alice?x=1", ErrUsernameForbiddenRune},
		{"fragment marker", "alice#1", ErrUsernameForbiddenRune},
		{"percent", "alice%20", ErrUsernameForbiddenRune},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateUsername(tc.username)
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateUsername(%q) = %v, expected nil", tc.username, err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateUsername(%q) = %v, expected %v", tc.username, err, tc.wantErr)
			}
		})
	}
}

// TestNormalizeUsername tests input cleanup before validation.
func TestNormalizeUsername(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"already clean", "alice", "alice"},
		{"surrounding whitespace", "  alice \n", "alice"},
		{"decomposed accent", "café", "café"},
		{"composed accent unchanged", "café", "café"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := NormalizeUsername(tc.input); got != tc.expected {
				t.Errorf("NormalizeUsername(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}
