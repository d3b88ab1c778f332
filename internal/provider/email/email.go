// Package email implements direct email/password sign-in against the
// identity backend. There is no platform OAuth step; the bridge performs
// the whole exchange.
package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/recipeclip/agent/internal/backend"
	"github.com/recipeclip/agent/internal/provider"
	"github.com/recipeclip/agent/internal/store"
	log "github.com/sirupsen/logrus"
)

const (
	providerName        = "email"
	providerDisplayName = "Email & Password"

	signOutWait = 2 * time.Second
)

// Provider is the email/password identity provider.
type Provider struct {
	session  *provider.Session
	backend  *backend.Client
	notifier provider.StateNotifier
}

// New constructs the email/password provider.
func New(st store.Store, br provider.Bridge, be *backend.Client) *Provider {
	return &Provider{
		session: &provider.Session{Store: st, Bridge: br},
		backend: be,
	}
}

func (p *Provider) Name() string        { return providerName }
func (p *Provider) DisplayName() string { return providerDisplayName }

// SignIn validates the credentials locally, then delegates to the bridge's
// email sign-in RPC and persists the returned session.
func (p *Provider) SignIn(ctx context.Context, creds *provider.Credentials) (*provider.SignInResult, error) {
	if creds == nil || strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", provider.ErrInvalidCredentials)
	}

	result, err := p.session.Bridge.SignInWithEmail(ctx, strings.TrimSpace(creds.Email), creds.Password)
	if err != nil {
		return nil, err
	}

	if err = p.session.PersistSignIn(ctx, result); err != nil {
		return nil, err
	}

	if p.backend != nil {
		if errProfile := p.backend.EnsureProfile(ctx, result.IdentityToken); errProfile != nil {
			log.Warnf("backend profile verification failed: %v", errProfile)
		}
	}

	p.notifier.Notify(&provider.UserProfile{
		UserID:      result.UserID,
		Email:       result.Email,
		DisplayName: result.DisplayName,
		PhotoURL:    result.PhotoURL,
	})
	return result, nil
}

// SignOut asks the bridge to drop its session (bounded, best-effort) and
// clears local state unconditionally. No platform tokens exist to revoke.
func (p *Provider) SignOut(ctx context.Context) error {
	bridgeCtx, cancel := context.WithTimeout(ctx, signOutWait)
	defer cancel()
	if errBridge := p.session.Bridge.SignOut(bridgeCtx); errBridge != nil {
		log.Warnf("bridge sign-out skipped: %v", errBridge)
	}

	if err := p.session.Clear(ctx); err != nil {
		return err
	}
	p.notifier.Notify(nil)
	return nil
}

// CurrentUser returns the persisted profile, or nil when signed out.
func (p *Provider) CurrentUser(ctx context.Context) (*provider.UserProfile, error) {
	return p.session.CurrentUser(ctx)
}

// IDToken returns a usable identity token, refreshing through the bridge
// when forced or stale.
func (p *Provider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	return p.session.IDToken(ctx, forceRefresh)
}

// OnAuthStateChanged registers a state-change callback.
func (p *Provider) OnAuthStateChanged(cb func(*provider.UserProfile)) func() {
	return p.notifier.Subscribe(cb)
}
