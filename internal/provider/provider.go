// Package provider defines the identity-provider contract shared by the
// agent's authentication backends, plus the session bookkeeping both
// implementations need.
package provider

import "context"

// Credentials carries direct sign-in material. Only the email/password
// provider uses it; the Google provider ignores it.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserProfile describes the authenticated user. Fields are all-present or
// the profile is nil; a partially populated profile is a bug.
type UserProfile struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// SignInResult is the outcome of a successful sign-in.
type SignInResult struct {
	UserID        string
	Email         string
	DisplayName   string
	PhotoURL      string
	IdentityToken string

	// ProviderToken and RefreshToken carry provider-side OAuth material.
	// Only the Google provider populates them.
	ProviderToken string
	RefreshToken  string
}

// Provider is one pluggable identity strategy. Implementations must clear
// local state on SignOut even when remote revocation fails.
type Provider interface {
	// Name is the unique registry key.
	Name() string

	// DisplayName is the human-facing provider label.
	DisplayName() string

	// SignIn authenticates the user and persists the resulting session.
	SignIn(ctx context.Context, creds *Credentials) (*SignInResult, error)

	// SignOut ends the session. Best-effort remotely, unconditional locally;
	// signing out with no session is not an error.
	SignOut(ctx context.Context) error

	// CurrentUser returns the persisted profile, or nil when signed out.
	CurrentUser(ctx context.Context) (*UserProfile, error)

	// IDToken returns a usable identity token, refreshing it when forced or
	// stale. Returns ErrNotAuthenticated when no session exists.
	IDToken(ctx context.Context, forceRefresh bool) (string, error)

	// OnAuthStateChanged registers a callback invoked with the new profile
	// on sign-in and nil on sign-out. The returned function unsubscribes.
	OnAuthStateChanged(cb func(*UserProfile)) (unsubscribe func())
}

// Bridge is the surface of the headless auth context that providers rely
// on. The concrete implementation lives in the bridge package; tests
// substitute stubs.
type Bridge interface {
	// SignInWithCredential exchanges a platform OAuth access token for an
	// identity session.
	SignInWithCredential(ctx context.Context, accessToken string) (*SignInResult, error)

	// SignInWithEmail signs in directly with email and password.
	SignInWithEmail(ctx context.Context, email, password string) (*SignInResult, error)

	// RefreshIDToken force-refreshes the identity token of the bridge's
	// current session.
	RefreshIDToken(ctx context.Context) (string, error)

	// SignOut drops the bridge's identity session.
	SignOut(ctx context.Context) error
}
