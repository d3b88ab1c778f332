package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated indicates no valid session exists.
	ErrNotAuthenticated = errors.New("provider: not authenticated")

	// ErrUnknownProvider signals a sign-in request naming an unregistered provider.
	ErrUnknownProvider = errors.New("provider: unknown provider")

	// ErrNoActiveAuthentication signals a sign-out with no active session.
	ErrNoActiveAuthentication = errors.New("provider: no active authentication")

	// ErrInvalidCredentials signals malformed or missing caller credentials.
	ErrInvalidCredentials = errors.New("provider: invalid credentials")
)

// Reason is the human-readable cause carried by an AuthError. Callers map
// it to UI text; they do not interpret it structurally beyond this set.
type Reason string

const (
	ReasonCancelled          Reason = "cancelled"
	ReasonNetwork            Reason = "network error"
	ReasonInvalidCredential  Reason = "invalid credential"
	ReasonUnauthorizedDomain Reason = "unauthorized domain"
	ReasonRateLimited        Reason = "rate limited"
)

// AuthError is a typed authentication failure with a human-readable cause.
type AuthError struct {
	Reason Reason
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
	return string(e.Reason)
}

// ReasonOf extracts the Reason from err, or "" when err carries none.
func ReasonOf(err error) Reason {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return ""
}
