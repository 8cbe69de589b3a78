package model

import "errors"

// Username validation errors.
var (
	// ErrEmptyUsername is returned when an empty username is supplied.
	ErrEmptyUsername = errors.New("username must not be empty")

	// ErrUsernameTooLong is returned when a username exceeds MaxUsernameLength.
	ErrUsernameTooLong = errors.New("username exceeds maximum length")

	// ErrUsernameForbiddenRune is returned when a username contains
	// whitespace, control characters, or URL-significant characters.
	ErrUsernameForbiddenRune = errors.New("username contains forbidden characters")
)
