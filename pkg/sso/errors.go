package sso

import "errors"

var (
	// ErrInvalidState is returned when a state token is malformed, forged or expired
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidCallback is returned when a state token names a callback outside the allow list
	ErrInvalidCallback = errors.New("invalid callback")
	// ErrProvider wraps every failure talking to the identity provider
	ErrProvider = errors.New("identity provider error")
	// ErrConfiguration is returned when a required secret or client setting is missing
	ErrConfiguration = errors.New("sso is not configured")
)

// ValidationError rejects an identity that cannot be provisioned.
// Its message is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}
