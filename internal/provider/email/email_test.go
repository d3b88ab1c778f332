package email

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/recipeclip/agent/internal/provider"
	"github.com/recipeclip/agent/internal/store"
	"github.com/stretchr/testify/require"
)

type stubBridge struct {
	signInCalls  int
	signInResult *provider.SignInResult
	signInErr    error
	signOutErr   error
}

func (b *stubBridge) SignInWithCredential(ctx context.Context, accessToken string) (*provider.SignInResult, error) {
	return nil, errors.New("not implemented")
}

func (b *stubBridge) SignInWithEmail(ctx context.Context, email, password string) (*provider.SignInResult, error) {
	b.signInCalls++
	if b.signInErr != nil {
		return nil, b.signInErr
	}
	return b.signInResult, nil
}

func (b *stubBridge) RefreshIDToken(ctx context.Context) (string, error) {
	return "", errors.New("not implemented")
}

func (b *stubBridge) SignOut(ctx context.Context) error { return b.signOutErr }

func newTestProvider(t *testing.T) (*Provider, *stubBridge, store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	bridge := &stubBridge{
		signInResult: &provider.SignInResult{
			UserID:        "u1",
			Email:         "a@b.com",
			IdentityToken: "tok1",
		},
	}
	return New(s, bridge, nil), bridge, s
}

func TestSignInRequiresCredentials(t *testing.T) {
	p, bridge, s := newTestProvider(t)
	ctx := context.Background()

	cases := []*provider.Credentials{
		nil,
		{Email: "", Password: "pw"},
		{Email: "  ", Password: "pw"},
		{Email: "a@b.com", Password: ""},
	}
	for _, creds := range cases {
		_, err := p.SignIn(ctx, creds)
		require.True(t, errors.Is(err, provider.ErrInvalidCredentials))
	}
	require.Zero(t, bridge.signInCalls)

	values, err := s.Get(ctx, store.KeyUserID)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestSignInPersistsSession(t *testing.T) {
	p, _, s := newTestProvider(t)
	ctx := context.Background()

	result, err := p.SignIn(ctx, &provider.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "tok1", result.IdentityToken)

	values, err := s.Get(ctx, store.KeyUserID, store.KeyEmail, store.KeyIdentityToken, store.KeyLastRefresh)
	require.NoError(t, err)
	require.Equal(t, "u1", values[store.KeyUserID])
	require.Equal(t, "a@b.com", values[store.KeyEmail])
	require.Equal(t, "tok1", values[store.KeyIdentityToken])
	require.NotEmpty(t, values[store.KeyLastRefresh])
}

func TestSignInBridgeFailureLeavesStoreUntouched(t *testing.T) {
	p, bridge, s := newTestProvider(t)
	bridge.signInErr = &provider.AuthError{Reason: provider.ReasonInvalidCredential, Detail: "INVALID_PASSWORD"}
	ctx := context.Background()

	_, err := p.SignIn(ctx, &provider.Credentials{Email: "a@b.com", Password: "nope"})
	require.Error(t, err)
	require.Equal(t, provider.ReasonInvalidCredential, provider.ReasonOf(err))

	values, err := s.Get(ctx, store.KeyUserID, store.KeyIdentityToken)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestSignOutClearsStateEvenWhenBridgeFails(t *testing.T) {
	p, bridge, s := newTestProvider(t)
	ctx := context.Background()

	_, err := p.SignIn(ctx, &provider.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	bridge.signOutErr = errors.New("bridge gone")
	require.NoError(t, p.SignOut(ctx))

	values, err := s.Get(ctx, store.IdentityKeys...)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestSignOutWithNoSessionIsFine(t *testing.T) {
	p, _, _ := newTestProvider(t)
	require.NoError(t, p.SignOut(context.Background()))
}

func TestAuthStateNotifications(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	var observed []*provider.UserProfile
	unsubscribe := p.OnAuthStateChanged(func(profile *provider.UserProfile) {
		observed = append(observed, profile)
	})

	_, err := p.SignIn(ctx, &provider.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))

	require.Len(t, observed, 2)
	require.NotNil(t, observed[0])
	require.Equal(t, "u1", observed[0].UserID)
	require.Nil(t, observed[1])

	unsubscribe()
	_, err = p.SignIn(ctx, &provider.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	require.Len(t, observed, 2)
}
