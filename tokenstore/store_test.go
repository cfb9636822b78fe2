package tokenstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenwood-edu/lostfound-auth/tokenstore"
	"github.com/greenwood-edu/lostfound-auth/users"
)

func newFileStore(t *testing.T) (*tokenstore.FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.json")
	return tokenstore.NewFileStore(path), path
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newFileStore(t)

	stored := tokenstore.Stored{
		Token: "opaque-bearer-token",
		Profile: users.User{
			ID:          "user-1",
			Username:    "jdoe",
			Email:       "jdoe@greenwood.edu",
			DisplayName: "Jo Doe",
			Role:        users.RoleStudent,
		},
	}
	require.NoError(t, store.Save(stored))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, stored, *loaded)
}

func TestLoadAbsent(t *testing.T) {
	store, _ := newFileStore(t)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestClearIsIdempotent(t *testing.T) {
	store, _ := newFileStore(t)

	require.NoError(t, store.Save(tokenstore.Stored{Token: "tok"}))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCorruptStateIsClearedAndTreatedAsAbsent(t *testing.T) {
	store, path := newFileStore(t)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// The corrupt entry must be gone from disk.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoredWithoutTokenIsCorrupt(t *testing.T) {
	store, path := newFileStore(t)

	require.NoError(t, os.WriteFile(path, []byte(`{"profile":{"username":"jdoe"}}`), 0o600))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSaveOverwrites(t *testing.T) {
	store, _ := newFileStore(t)

	require.NoError(t, store.Save(tokenstore.Stored{Token: "first"}))
	require.NoError(t, store.Save(tokenstore.Stored{Token: "second"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "second", loaded.Token)
}
