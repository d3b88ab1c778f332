package authman

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/recipeclip/agent/internal/provider"
	emailprovider "github.com/recipeclip/agent/internal/provider/email"
	"github.com/recipeclip/agent/internal/store"
	"github.com/stretchr/testify/require"
)

type stubBridge struct {
	refreshCalls int
	refreshToken string
}

func (b *stubBridge) SignInWithCredential(ctx context.Context, accessToken string) (*provider.SignInResult, error) {
	return nil, errors.New("not implemented")
}

func (b *stubBridge) SignInWithEmail(ctx context.Context, email, password string) (*provider.SignInResult, error) {
	return &provider.SignInResult{UserID: "u1", Email: email, IdentityToken: "tok1"}, nil
}

func (b *stubBridge) RefreshIDToken(ctx context.Context) (string, error) {
	b.refreshCalls++
	return b.refreshToken, nil
}

func (b *stubBridge) SignOut(ctx context.Context) error { return nil }

// fakeProvider lets tests script provider behavior directly.
type fakeProvider struct {
	name         string
	user         *provider.UserProfile
	userErr      error
	subscribed   int
	unsubscribed int
}

func (p *fakeProvider) Name() string        { return p.name }
func (p *fakeProvider) DisplayName() string { return p.name }

func (p *fakeProvider) SignIn(ctx context.Context, creds *provider.Credentials) (*provider.SignInResult, error) {
	return &provider.SignInResult{UserID: "u1", Email: "a@b.com", IdentityToken: "tok1"}, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error { return nil }

func (p *fakeProvider) CurrentUser(ctx context.Context) (*provider.UserProfile, error) {
	return p.user, p.userErr
}

func (p *fakeProvider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	return "tok1", nil
}

func (p *fakeProvider) OnAuthStateChanged(cb func(*provider.UserProfile)) func() {
	p.subscribed++
	return func() { p.unsubscribed++ }
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func newEmailManager(t *testing.T) (*Manager, *stubBridge, store.Store) {
	t.Helper()
	s := newTestStore(t)
	bridge := &stubBridge{refreshToken: "tok2"}
	return New(s, emailprovider.New(s, bridge, nil)), bridge, s
}

func TestCheckAuthStatusOnFreshProfile(t *testing.T) {
	m, _, _ := newEmailManager(t)

	status, err := m.CheckAuthStatus(context.Background())
	require.NoError(t, err)
	require.False(t, status.Authenticated)
	require.Empty(t, status.Error)
}

func TestSignInUnknownProviderWritesNothing(t *testing.T) {
	m, _, s := newEmailManager(t)
	ctx := context.Background()

	_, err := m.SignIn(ctx, "not-a-real-provider", nil)
	require.True(t, errors.Is(err, provider.ErrUnknownProvider))

	keys := append([]string{store.KeyActiveProvider}, store.IdentityKeys...)
	values, err := s.Get(ctx, keys...)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestSignInPersistsActiveProvider(t *testing.T) {
	m, _, s := newEmailManager(t)
	ctx := context.Background()

	_, err := m.SignIn(ctx, "email", &provider.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	values, err := s.Get(ctx, store.KeyUserID, store.KeyEmail, store.KeyIdentityToken, store.KeyActiveProvider)
	require.NoError(t, err)
	require.Equal(t, "u1", values[store.KeyUserID])
	require.Equal(t, "a@b.com", values[store.KeyEmail])
	require.Equal(t, "tok1", values[store.KeyIdentityToken])
	require.Equal(t, "email", values[store.KeyActiveProvider])
}

func TestIDTokenFreshSessionSkipsRefresh(t *testing.T) {
	m, bridge, _ := newEmailManager(t)
	ctx := context.Background()

	_, err := m.SignIn(ctx, "email", &provider.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	token, err := m.IDToken(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "tok1", token)
	require.Zero(t, bridge.refreshCalls)
}

func TestIDTokenStaleSessionRefreshes(t *testing.T) {
	m, bridge, s := newEmailManager(t)
	ctx := context.Background()

	_, err := m.SignIn(ctx, "email", &provider.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	aged := time.Now().Add(-60 * time.Minute).UTC().Format(time.RFC3339)
	require.NoError(t, s.Set(ctx, map[string]string{store.KeyLastRefresh: aged}))

	token, err := m.IDToken(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "tok2", token)
	require.Equal(t, 1, bridge.refreshCalls)

	values, err := s.Get(ctx, store.KeyIdentityToken)
	require.NoError(t, err)
	require.Equal(t, "tok2", values[store.KeyIdentityToken])
}

func TestIDTokenWithoutActiveProvider(t *testing.T) {
	m, _, _ := newEmailManager(t)

	_, err := m.IDToken(context.Background(), false)
	require.True(t, errors.Is(err, provider.ErrNotAuthenticated))
}

func TestSignOutWithoutSession(t *testing.T) {
	m, _, s := newEmailManager(t)
	ctx := context.Background()

	err := m.SignOut(ctx)
	require.True(t, errors.Is(err, provider.ErrNoActiveAuthentication))

	values, err := s.Get(ctx, store.IdentityKeys...)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestSignOutClearsActiveProvider(t *testing.T) {
	m, _, s := newEmailManager(t)
	ctx := context.Background()

	_, err := m.SignIn(ctx, "email", &provider.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, m.SignOut(ctx))

	keys := append([]string{store.KeyActiveProvider}, store.IdentityKeys...)
	values, err := s.Get(ctx, keys...)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestCheckAuthStatusRoundTrip(t *testing.T) {
	m, _, _ := newEmailManager(t)
	ctx := context.Background()

	_, err := m.SignIn(ctx, "email", &provider.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	status, err := m.CheckAuthStatus(ctx)
	require.NoError(t, err)
	require.True(t, status.Authenticated)
	require.Equal(t, "email", status.Provider)
	require.Equal(t, "u1", status.Profile.UserID)
}

func TestCheckAuthStatusExpiredSessionPurges(t *testing.T) {
	s := newTestStore(t)
	dead := &fakeProvider{name: "google", userErr: errors.New("session revoked")}
	m := New(s, dead)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]string{
		store.KeyUserID:         "u1",
		store.KeyEmail:          "a@b.com",
		store.KeyIdentityToken:  "tok1",
		store.KeyActiveProvider: "google",
	}))

	status, err := m.CheckAuthStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.Authenticated)
	require.Equal(t, "Authentication expired", status.Error)

	keys := append([]string{store.KeyActiveProvider}, store.IdentityKeys...)
	values, err := s.Get(ctx, keys...)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestCheckAuthStatusStalePointerFallsBackToDefault(t *testing.T) {
	s := newTestStore(t)
	google := &fakeProvider{name: "google", user: &provider.UserProfile{UserID: "u1", Email: "a@b.com"}}
	m := New(s, google)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]string{
		store.KeyUserID:         "u1",
		store.KeyEmail:          "a@b.com",
		store.KeyIdentityToken:  "tok1",
		store.KeyActiveProvider: "retired-provider",
	}))

	status, err := m.CheckAuthStatus(ctx)
	require.NoError(t, err)
	require.True(t, status.Authenticated)
	require.Equal(t, "google", status.Provider)
}

func TestSetupAuthStateListenerResubscribes(t *testing.T) {
	s := newTestStore(t)
	google := &fakeProvider{name: "google"}
	m := New(s, google)
	ctx := context.Background()

	require.NoError(t, m.SetupAuthStateListener(ctx, func(*provider.UserProfile) {}))
	require.NoError(t, m.SetupAuthStateListener(ctx, func(*provider.UserProfile) {}))

	require.Equal(t, 2, google.subscribed)
	require.Equal(t, 1, google.unsubscribed)
}

func TestProvidersListing(t *testing.T) {
	s := newTestStore(t)
	m := New(s, &fakeProvider{name: "google"}, &fakeProvider{name: "email"})

	infos := m.Providers()
	require.Len(t, infos, 2)
	require.Equal(t, "google", infos[0].Name)
	require.Equal(t, "email", infos[1].Name)
}
