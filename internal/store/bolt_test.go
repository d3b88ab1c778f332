package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s, path
}

func TestSetGetRemove(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	err := s.Set(ctx, map[string]string{
		KeyUserID: "u1",
		KeyEmail:  "a@b.com",
	})
	require.NoError(t, err)

	values, err := s.Get(ctx, KeyUserID, KeyEmail)
	require.NoError(t, err)
	require.Equal(t, "u1", values[KeyUserID])
	require.Equal(t, "a@b.com", values[KeyEmail])

	require.NoError(t, s.Remove(ctx, KeyUserID, KeyEmail))

	values, err = s.Get(ctx, KeyUserID, KeyEmail)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestGetOmitsAbsentKeys(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]string{KeyEmail: "a@b.com"}))

	values, err := s.Get(ctx, KeyEmail, KeyUserID, KeyIdentityToken)
	require.NoError(t, err)
	require.Equal(t, map[string]string{KeyEmail: "a@b.com"}, values)
}

func TestRemoveAbsentKeyIsNoOp(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.Remove(context.Background(), KeyIdentityToken, KeyGoogleOAuthToken))
}

func TestSchemaVersionStamp(t *testing.T) {
	s, _ := openTestStore(t)

	values, err := s.Get(context.Background(), KeySchemaVersion)
	require.NoError(t, err)
	require.Equal(t, SchemaVersion, values[KeySchemaVersion])
}

func TestUnsupportedSchemaVersionRefusesToOpen(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]string{KeySchemaVersion: "99"}))
	require.NoError(t, s.Close())

	_, err := Open(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported schema version")
}

func TestReopenPersists(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]string{KeyIdentityToken: "tok1"}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() {
		_ = reopened.Close()
	}()

	values, err := reopened.Get(ctx, KeyIdentityToken)
	require.NoError(t, err)
	require.Equal(t, "tok1", values[KeyIdentityToken])
}
