package session_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenwood-edu/lostfound-auth/apiclient"
	"github.com/greenwood-edu/lostfound-auth/internal/config"
	"github.com/greenwood-edu/lostfound-auth/server"
	"github.com/greenwood-edu/lostfound-auth/session"
	"github.com/greenwood-edu/lostfound-auth/token/refresh/repomem"
	"github.com/greenwood-edu/lostfound-auth/tokenstore"
	"github.com/greenwood-edu/lostfound-auth/tokenstore/storefake"
	"github.com/greenwood-edu/lostfound-auth/users"
	"github.com/greenwood-edu/lostfound-auth/users/repofake"
)

const testPassword = "Sufficient1"

// startBackend runs the real auth backend over in-memory repos with one
// seeded student, so the manager is exercised end to end.
func startBackend(t *testing.T) *httptest.Server {
	t.Helper()

	repo := repofake.NewFakeUserRepo()
	hash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(context.Background(), &users.User{
		Username:     "student1",
		Email:        "student1@greenwood.edu",
		DisplayName:  "Student One",
		PasswordHash: hash,
		Role:         users.RoleStudent,
	}))

	ts := httptest.NewServer(server.New(config.New(), repo, repomem.NewMemoryTokenRepo()))
	t.Cleanup(ts.Close)
	return ts
}

func newManager(baseURL string, store tokenstore.Store) *session.Manager {
	return session.NewManager(apiclient.New(baseURL, store), store)
}

func TestLoginThenLogout(t *testing.T) {
	ts := startBackend(t)
	store := storefake.NewFakeStore()
	m := newManager(ts.URL, store)

	assert.Equal(t, session.StateUnknown, m.Current().State)

	sess, err := m.Login(context.Background(), "student1", testPassword, "")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "student1", sess.Username)
	assert.Equal(t, users.RoleStudent, sess.Role)
	assert.NotEmpty(t, sess.Token)

	snap := m.Current()
	assert.True(t, snap.Authenticated())
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)

	// The credentials are persisted for the next start.
	stored, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, sess.Token, stored.Token)
	assert.Equal(t, "student1", stored.Profile.Username)

	m.Logout(context.Background())
	snap = m.Current()
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.Nil(t, snap.Session)
	assert.NoError(t, snap.Err)

	stored, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)

	// Logging out again is a no-op.
	m.Logout(context.Background())
	assert.Equal(t, session.StateAnonymous, m.Current().State)
}

func TestLoginFailureLeavesStateAlone(t *testing.T) {
	ts := startBackend(t)
	store := storefake.NewFakeStore()
	m := newManager(ts.URL, store)

	_, err := m.Login(context.Background(), "student1", "WrongPass1", "")
	assert.ErrorIs(t, err, session.InvalidCredentialsErr)

	snap := m.Current()
	assert.False(t, snap.Authenticated())
	assert.ErrorIs(t, snap.Err, session.InvalidCredentialsErr)

	stored, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Nil(t, stored)

	// A claimed role that does not match reads the same as bad credentials.
	_, err = m.Login(context.Background(), "student1", testPassword, users.RoleAdmin)
	assert.ErrorIs(t, err, session.InvalidCredentialsErr)
}

func TestFailedReloginKeepsExistingSession(t *testing.T) {
	ts := startBackend(t)
	store := storefake.NewFakeStore()
	m := newManager(ts.URL, store)

	sess, err := m.Login(context.Background(), "student1", testPassword, "")
	require.NoError(t, err)

	// Mistyping the password while already signed in is rejected as bad
	// credentials; it must never read as an expired session.
	_, err = m.Login(context.Background(), "student1", "WrongPass1", "")
	assert.ErrorIs(t, err, session.InvalidCredentialsErr)
	assert.NotErrorIs(t, err, session.SessionExpiredErr)

	snap := m.Current()
	assert.True(t, snap.Authenticated())
	assert.Equal(t, "student1", snap.Session.Username)

	// The stored token is neither rotated nor cleared, and still works.
	stored, loadErr := store.Load()
	require.NoError(t, loadErr)
	require.NotNil(t, stored)
	assert.Equal(t, sess.Token, stored.Token)

	resolved := newManager(ts.URL, store).Resolve(context.Background())
	assert.True(t, resolved.Authenticated())
}

func TestRegisterAuthenticatesImmediately(t *testing.T) {
	ts := startBackend(t)
	store := storefake.NewFakeStore()
	m := newManager(ts.URL, store)

	sess, err := m.Register(context.Background(), apiclient.Registration{
		Username: "newcomer",
		Email:    "newcomer@greenwood.edu",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "newcomer", sess.Username)
	assert.Equal(t, users.RoleStudent, sess.Role)
	assert.True(t, m.Current().Authenticated())
}

func TestRegisterValidation(t *testing.T) {
	ts := startBackend(t)
	m := newManager(ts.URL, storefake.NewFakeStore())

	tests := []struct {
		name string
		reg  apiclient.Registration
	}{
		{"missing username", apiclient.Registration{Email: "x@greenwood.edu", Password: testPassword}},
		{"missing email", apiclient.Registration{Username: "x", Password: testPassword}},
		{"weak password", apiclient.Registration{Username: "x", Email: "x@greenwood.edu", Password: "weak"}},
		{"unknown role", apiclient.Registration{Username: "x", Email: "x@greenwood.edu", Password: testPassword, Role: "superuser"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Register(context.Background(), tt.reg)
			assert.ErrorIs(t, err, session.ValidationErr)
		})
	}

	// Conflicts come back from the backend.
	_, err := m.Register(context.Background(), apiclient.Registration{
		Username: "student1", Email: "other@greenwood.edu", Password: testPassword,
	})
	assert.ErrorIs(t, err, session.AlreadyExistsErr)
}

func TestResolveRestoresPersistedSession(t *testing.T) {
	ts := startBackend(t)
	store := storefake.NewFakeStore()

	_, err := newManager(ts.URL, store).Login(context.Background(), "student1", testPassword, "")
	require.NoError(t, err)

	// A fresh process with the same store picks the session back up after
	// revalidating against the backend.
	m := newManager(ts.URL, store)
	snap := m.Resolve(context.Background())
	require.True(t, snap.Authenticated())
	assert.Equal(t, "student1", snap.Session.Username)
	assert.NoError(t, snap.Err)

	// Resolution happens once; subsequent calls report the settled state.
	again := m.Resolve(context.Background())
	assert.Equal(t, snap.State, again.State)
}

func TestResolveWithEmptyStore(t *testing.T) {
	ts := startBackend(t)
	m := newManager(ts.URL, storefake.NewFakeStore())

	snap := m.Resolve(context.Background())
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.NoError(t, snap.Err)
}

func TestResolveWithCorruptStore(t *testing.T) {
	ts := startBackend(t)

	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte("corrupted beyond repair"), 0o600))
	store := tokenstore.NewFileStore(path)

	m := newManager(ts.URL, store)
	snap := m.Resolve(context.Background())
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.NoError(t, snap.Err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestResolveWithRevokedToken(t *testing.T) {
	ts := startBackend(t)
	store := storefake.NewFakeStore()

	// A token the backend has never issued: confirmed invalid, not transient.
	require.NoError(t, store.Save(tokenstore.Stored{
		Token:   "stale-token-from-a-previous-deploy",
		Profile: users.User{Username: "student1", Role: users.RoleStudent},
	}))

	m := newManager(ts.URL, store)
	snap := m.Resolve(context.Background())
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.NoError(t, snap.Err)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestResolveWithUnreachableBackend(t *testing.T) {
	ts := startBackend(t)
	url := ts.URL
	ts.Close()

	store := storefake.NewFakeStore()
	require.NoError(t, store.Save(tokenstore.Stored{
		Token:   "possibly-still-valid",
		Profile: users.User{Username: "student1", Role: users.RoleStudent},
	}))

	m := newManager(url, store)
	snap := m.Resolve(context.Background())
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.ErrorIs(t, snap.Err, session.NetworkErr)

	// The stored session survives a transient failure.
	stored, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "possibly-still-valid", stored.Token)
}

func TestWatchersSeeTransitions(t *testing.T) {
	ts := startBackend(t)
	m := newManager(ts.URL, storefake.NewFakeStore())

	var mu sync.Mutex
	var seen []session.Snapshot
	cancel := m.Watch(func(s session.Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	_, err := m.Login(context.Background(), "student1", testPassword, "")
	require.NoError(t, err)

	mu.Lock()
	require.GreaterOrEqual(t, len(seen), 2)
	assert.True(t, seen[0].Loading)
	last := seen[len(seen)-1]
	assert.True(t, last.Authenticated())
	assert.False(t, last.Loading)
	count := len(seen)
	mu.Unlock()

	cancel()
	m.Logout(context.Background())

	mu.Lock()
	assert.Len(t, seen, count)
	mu.Unlock()
}

func TestExpiredSessionTransitionsToAnonymous(t *testing.T) {
	ts := startBackend(t)
	store := storefake.NewFakeStore()
	client := apiclient.New(ts.URL, store)
	m := session.NewManager(client, store)

	_, err := m.Login(context.Background(), "student1", testPassword, "")
	require.NoError(t, err)

	// Simulate the backend losing the session: replace the stored token with
	// one it will reject, then make any authenticated call.
	stored, err := store.Load()
	require.NoError(t, err)
	stored.Token = "no-longer-honored"
	require.NoError(t, store.Save(*stored))

	_, err = client.CurrentProfile(context.Background())
	assert.ErrorIs(t, err, session.SessionExpiredErr)

	snap := m.Current()
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.ErrorIs(t, snap.Err, session.SessionExpiredErr)

	cleared, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cleared)
}
