// Package store persists the agent's authentication state. It is the only
// durable owner of identity data; everything else re-derives its view from
// here on each operation.
package store

import "context"

// Documented keys. Callers own correctness of the values; the store applies
// no validation beyond the schema version stamp.
const (
	// KeyIdentityToken is the bearer credential presented to the backend.
	KeyIdentityToken = "identity_token"

	// KeyLastRefresh is the RFC3339 timestamp of the last token mint or refresh.
	KeyLastRefresh = "last_refresh"

	// KeyUserID is the authenticated user's stable identifier.
	KeyUserID = "user_id"

	// KeyEmail is the authenticated user's email address.
	KeyEmail = "email"

	// KeyDisplayName is the authenticated user's display name, if any.
	KeyDisplayName = "display_name"

	// KeyPhotoURL is the authenticated user's avatar URL, if any.
	KeyPhotoURL = "photo_url"

	// KeyGoogleOAuthToken holds the raw platform OAuth access token. Only
	// written as a fallback when server-side storage of the token fails.
	KeyGoogleOAuthToken = "google_oauth_token"

	// KeyActiveProvider names the provider of the current session.
	KeyActiveProvider = "active_provider"

	// KeySchemaVersion stamps the store layout version.
	KeySchemaVersion = "schema_version"
)

// IdentityKeys are the keys cleared when a session ends or is invalidated.
var IdentityKeys = []string{
	KeyIdentityToken,
	KeyLastRefresh,
	KeyUserID,
	KeyEmail,
	KeyDisplayName,
	KeyPhotoURL,
	KeyGoogleOAuthToken,
}

// Store is an asynchronous key/value record. Writes are atomic per call;
// concurrent access is last-write-wins.
type Store interface {
	// Get returns the values for the requested keys. Absent keys are
	// omitted from the result rather than reported as errors.
	Get(ctx context.Context, keys ...string) (map[string]string, error)

	// Set writes the given keys. The whole batch becomes visible at once.
	Set(ctx context.Context, values map[string]string) error

	// Remove deletes the given keys. Removing an absent key is a no-op.
	Remove(ctx context.Context, keys ...string) error

	// Close releases the underlying storage.
	Close() error
}
