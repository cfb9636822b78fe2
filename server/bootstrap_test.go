package server_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenwood-edu/lostfound-auth/server"
	"github.com/greenwood-edu/lostfound-auth/users"
	"github.com/greenwood-edu/lostfound-auth/users/repofake"
)

const seedYAML = `users:
  - username: admin
    email: admin@greenwood.edu
    password: Administrate1
    display_name: Site Admin
    role: admin
  - username: jdoe
    email: jdoe@greenwood.edu
    password: Sufficient1
    role: student
`

func writeSeedFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestSeedUsers(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeUserRepo()

	require.NoError(t, server.SeedUsers(ctx, repo, writeSeedFile(t, seedYAML)))

	admin, err := repo.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, admin.Role)
	assert.Equal(t, "Site Admin", admin.DisplayName)
	assert.True(t, users.CheckPasswordHash("Administrate1", admin.PasswordHash))

	jdoe, err := repo.GetByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, users.RoleStudent, jdoe.Role)
	// Display name falls back to the username.
	assert.Equal(t, "jdoe", jdoe.DisplayName)
}

func TestSeedUsersIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeUserRepo()
	path := writeSeedFile(t, seedYAML)

	require.NoError(t, server.SeedUsers(ctx, repo, path))
	before, err := repo.GetByUsername(ctx, "jdoe")
	require.NoError(t, err)

	require.NoError(t, server.SeedUsers(ctx, repo, path))
	after, err := repo.GetByUsername(ctx, "jdoe")
	require.NoError(t, err)

	// Existing accounts are untouched on a re-seed.
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSeedUsersRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeUserRepo()

	assert.Error(t, server.SeedUsers(ctx, repo, filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, server.SeedUsers(ctx, repo, writeSeedFile(t, "users: [not a mapping")))
	assert.Error(t, server.SeedUsers(ctx, repo, writeSeedFile(t, `users:
  - username: x
    email: x@greenwood.edu
    password: Sufficient1
    role: superuser
`)))
}
