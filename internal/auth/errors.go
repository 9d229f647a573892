package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized represents missing or invalid authentication tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidPIN is returned when a PIN cannot be hashed.
	ErrInvalidPIN = errors.New("invalid pin")
)
