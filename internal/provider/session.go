package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/recipeclip/agent/internal/store"
	log "github.com/sirupsen/logrus"
)

// staleAfter is how long a cached identity token is trusted before IDToken
// refreshes it.
const staleAfter = 50 * time.Minute

// Session is the token/profile bookkeeping shared by all providers. It reads
// the store at every call; nothing in memory is trusted across invocations.
type Session struct {
	Store  store.Store
	Bridge Bridge
}

// PersistSignIn writes the identity token, refresh timestamp, and profile in
// one batch so readers never observe a partial sign-in.
func (s *Session) PersistSignIn(ctx context.Context, res *SignInResult) error {
	return s.Store.Set(ctx, map[string]string{
		store.KeyIdentityToken: res.IdentityToken,
		store.KeyLastRefresh:   time.Now().UTC().Format(time.RFC3339),
		store.KeyUserID:        res.UserID,
		store.KeyEmail:         res.Email,
		store.KeyDisplayName:   res.DisplayName,
		store.KeyPhotoURL:      res.PhotoURL,
	})
}

// CurrentUser returns the persisted profile, or nil when the core identity
// fields are absent.
func (s *Session) CurrentUser(ctx context.Context) (*UserProfile, error) {
	values, err := s.Store.Get(ctx, store.KeyUserID, store.KeyEmail, store.KeyDisplayName, store.KeyPhotoURL)
	if err != nil {
		return nil, err
	}
	if values[store.KeyUserID] == "" || values[store.KeyEmail] == "" {
		return nil, nil
	}
	return &UserProfile{
		UserID:      values[store.KeyUserID],
		Email:       values[store.KeyEmail],
		DisplayName: values[store.KeyDisplayName],
		PhotoURL:    values[store.KeyPhotoURL],
	}, nil
}

// IDToken returns the cached identity token, refreshing it through the
// bridge when forced or older than the staleness threshold. A failed refresh
// purges the session: the agent fails closed rather than serving a token it
// cannot vouch for.
func (s *Session) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	values, err := s.Store.Get(ctx, store.KeyIdentityToken, store.KeyLastRefresh)
	if err != nil {
		return "", err
	}
	token := values[store.KeyIdentityToken]
	if token == "" {
		return "", ErrNotAuthenticated
	}
	if !forceRefresh && !stale(values[store.KeyLastRefresh]) {
		return token, nil
	}

	fresh, err := s.Bridge.RefreshIDToken(ctx)
	if err != nil {
		if errClear := s.Clear(ctx); errClear != nil {
			log.Errorf("failed to clear auth state after refresh failure: %v", errClear)
		}
		return "", fmt.Errorf("failed to refresh identity token: %w", err)
	}
	err = s.Store.Set(ctx, map[string]string{
		store.KeyIdentityToken: fresh,
		store.KeyLastRefresh:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	return fresh, nil
}

// Clear removes every identity-related key. Missing keys are fine; Clear is
// called unconditionally during sign-out.
func (s *Session) Clear(ctx context.Context) error {
	return s.Store.Remove(ctx, store.IdentityKeys...)
}

func stale(lastRefresh string) bool {
	if lastRefresh == "" {
		return true
	}
	refreshedAt, err := time.Parse(time.RFC3339, lastRefresh)
	if err != nil {
		return true
	}
	return time.Since(refreshedAt) > staleAfter
}
