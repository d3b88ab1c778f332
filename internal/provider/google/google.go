// Package google implements the Google identity provider. A platform OAuth
// access token is obtained first, then exchanged for a backend identity
// credential through the headless auth bridge.
package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/recipeclip/agent/internal/backend"
	"github.com/recipeclip/agent/internal/config"
	"github.com/recipeclip/agent/internal/provider"
	"github.com/recipeclip/agent/internal/store"
	"github.com/recipeclip/agent/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	providerName        = "google"
	providerDisplayName = "Google"

	revokeEndpoint = "https://accounts.google.com/o/oauth2/revoke"

	// signOutWait bounds the bridge sign-out RPC; the bridge may not exist
	// or may not answer, and sign-out must not hang on it.
	signOutWait = 2 * time.Second
)

// Provider is the Google identity provider.
type Provider struct {
	cfg      *config.Config
	session  *provider.Session
	backend  *backend.Client
	flow     OAuthFlow
	notifier provider.StateNotifier

	httpClient *http.Client
	revokeURL  string
}

// New constructs the Google provider with the production OAuth web flow.
func New(cfg *config.Config, st store.Store, br provider.Bridge, be *backend.Client) *Provider {
	return &Provider{
		cfg:        cfg,
		session:    &provider.Session{Store: st, Bridge: br},
		backend:    be,
		flow:       newWebFlow(cfg),
		httpClient: util.SetProxy(cfg, &http.Client{}),
		revokeURL:  revokeEndpoint,
	}
}

func (p *Provider) Name() string        { return providerName }
func (p *Provider) DisplayName() string { return providerDisplayName }

// SignIn runs the Google sign-in state machine: platform OAuth token,
// bridge credential exchange, persist, then best-effort backend side
// effects. Failures in the first two steps are terminal; the side effects
// never are.
func (p *Provider) SignIn(ctx context.Context, _ *provider.Credentials) (*provider.SignInResult, error) {
	token, err := p.flow.AcquireToken(ctx, true)
	if err != nil {
		return nil, err
	}

	result, err := p.session.Bridge.SignInWithCredential(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("credential exchange failed: %w", err)
	}
	result.ProviderToken = token.AccessToken
	result.RefreshToken = token.RefreshToken

	if err = p.session.PersistSignIn(ctx, result); err != nil {
		return nil, err
	}

	expiresIn := int64(time.Until(token.Expiry).Seconds())
	if err = p.backend.StoreOAuthTokens(ctx, result.IdentityToken, token.AccessToken, token.RefreshToken, expiresIn); err != nil {
		log.Warnf("backend OAuth token storage failed, caching token locally: %v", err)
		if errSet := p.session.Store.Set(ctx, map[string]string{store.KeyGoogleOAuthToken: token.AccessToken}); errSet != nil {
			log.Errorf("local OAuth token fallback failed: %v", errSet)
		}
	}
	if err = p.backend.EnsureProfile(ctx, result.IdentityToken); err != nil {
		log.Warnf("backend profile verification failed: %v", err)
	}

	p.notifier.Notify(&provider.UserProfile{
		UserID:      result.UserID,
		Email:       result.Email,
		DisplayName: result.DisplayName,
		PhotoURL:    result.PhotoURL,
	})
	return result, nil
}

// SignOut revokes the cached platform token, asks the bridge to drop its
// identity session (bounded, best-effort), then clears local state
// unconditionally.
func (p *Provider) SignOut(ctx context.Context) error {
	values, err := p.session.Store.Get(ctx, store.KeyGoogleOAuthToken)
	if err == nil && values[store.KeyGoogleOAuthToken] != "" {
		if errRevoke := p.revokeToken(ctx, values[store.KeyGoogleOAuthToken]); errRevoke != nil {
			log.Warnf("platform token revocation failed: %v", errRevoke)
		}
	}

	bridgeCtx, cancel := context.WithTimeout(ctx, signOutWait)
	defer cancel()
	if errBridge := p.session.Bridge.SignOut(bridgeCtx); errBridge != nil {
		log.Warnf("bridge sign-out skipped: %v", errBridge)
	}

	if err = p.session.Clear(ctx); err != nil {
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

func (p *Provider) revokeToken(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.revokeURL+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revoke failed with status %d", resp.StatusCode)
	}
	return nil
}
