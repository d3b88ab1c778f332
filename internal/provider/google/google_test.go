package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/recipeclip/agent/internal/backend"
	"github.com/recipeclip/agent/internal/config"
	"github.com/recipeclip/agent/internal/provider"
	"github.com/recipeclip/agent/internal/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type stubFlow struct {
	token *oauth2.Token
	err   error
}

func (f *stubFlow) AcquireToken(ctx context.Context, interactive bool) (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type stubBridge struct {
	credentialCalls int
	result          *provider.SignInResult
	err             error
	signOutErr      error
}

func (b *stubBridge) SignInWithCredential(ctx context.Context, accessToken string) (*provider.SignInResult, error) {
	b.credentialCalls++
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

func (b *stubBridge) SignInWithEmail(ctx context.Context, email, password string) (*provider.SignInResult, error) {
	return nil, errors.New("not implemented")
}

func (b *stubBridge) RefreshIDToken(ctx context.Context) (string, error) {
	return "", errors.New("not implemented")
}

func (b *stubBridge) SignOut(ctx context.Context) error { return b.signOutErr }

// newTestBackend answers the two best-effort endpoints. tokensStatus
// controls the oauth-tokens reply so tests can force the local fallback.
func newTestBackend(t *testing.T, tokensStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/oauth-tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(tokensStatus)
	})
	mux.HandleFunc("/api/user/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(t *testing.T, tokensStatus int) (*Provider, *stubBridge, store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})

	backendServer := newTestBackend(t, tokensStatus)
	cfg := &config.Config{Backend: config.Backend{BaseURL: backendServer.URL}}

	bridge := &stubBridge{
		result: &provider.SignInResult{
			UserID:        "g1",
			Email:         "g@b.com",
			DisplayName:   "G",
			IdentityToken: "gtok1",
		},
	}
	p := New(cfg, s, bridge, backend.New(cfg))
	p.flow = &stubFlow{token: &oauth2.Token{
		AccessToken:  "platform-at",
		RefreshToken: "platform-rt",
		Expiry:       time.Now().Add(time.Hour),
	}}
	return p, bridge, s
}

func TestSignInPlatformFailureLeavesStoreUntouched(t *testing.T) {
	p, bridge, s := newTestProvider(t, http.StatusOK)
	p.flow = &stubFlow{err: &provider.AuthError{Reason: provider.ReasonCancelled, Detail: "user closed the consent page"}}
	ctx := context.Background()

	_, err := p.SignIn(ctx, nil)
	require.Error(t, err)
	require.Equal(t, provider.ReasonCancelled, provider.ReasonOf(err))
	require.Zero(t, bridge.credentialCalls)

	values, err := s.Get(ctx, store.IdentityKeys...)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestSignInBridgeFailureLeavesStoreUntouched(t *testing.T) {
	p, bridge, s := newTestProvider(t, http.StatusOK)
	bridge.err = &provider.AuthError{Reason: provider.ReasonNetwork, Detail: "identity service unreachable"}
	ctx := context.Background()

	_, err := p.SignIn(ctx, nil)
	require.Error(t, err)

	values, err := s.Get(ctx, store.IdentityKeys...)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestSignInPersistsSession(t *testing.T) {
	p, _, s := newTestProvider(t, http.StatusOK)
	ctx := context.Background()

	result, err := p.SignIn(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, "platform-at", result.ProviderToken)

	values, err := s.Get(ctx, store.KeyUserID, store.KeyEmail, store.KeyIdentityToken, store.KeyGoogleOAuthToken)
	require.NoError(t, err)
	require.Equal(t, "g1", values[store.KeyUserID])
	require.Equal(t, "g@b.com", values[store.KeyEmail])
	require.Equal(t, "gtok1", values[store.KeyIdentityToken])
	// Backend storage succeeded, so no local fallback is kept.
	require.Empty(t, values[store.KeyGoogleOAuthToken])
}

func TestSignInBackendFailureFallsBackToLocalToken(t *testing.T) {
	p, _, s := newTestProvider(t, http.StatusInternalServerError)
	ctx := context.Background()

	_, err := p.SignIn(ctx, nil)
	require.NoError(t, err, "backend side effects must not fail the sign-in")

	values, err := s.Get(ctx, store.KeyGoogleOAuthToken)
	require.NoError(t, err)
	require.Equal(t, "platform-at", values[store.KeyGoogleOAuthToken])
}

func TestSignOutIsTotal(t *testing.T) {
	p, bridge, s := newTestProvider(t, http.StatusInternalServerError)
	ctx := context.Background()

	revoked := 0
	revokeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		revoked++
	}))
	defer revokeServer.Close()
	p.revokeURL = revokeServer.URL

	_, err := p.SignIn(ctx, nil)
	require.NoError(t, err)

	bridge.signOutErr = errors.New("bridge gone")
	require.NoError(t, p.SignOut(ctx))
	require.Equal(t, 1, revoked)

	values, err := s.Get(ctx, store.IdentityKeys...)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestSignOutRevocationFailureStillClears(t *testing.T) {
	p, _, s := newTestProvider(t, http.StatusInternalServerError)
	ctx := context.Background()

	revokeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer revokeServer.Close()
	p.revokeURL = revokeServer.URL

	_, err := p.SignIn(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx))

	values, err := s.Get(ctx, store.IdentityKeys...)
	require.NoError(t, err)
	require.Empty(t, values)
}
