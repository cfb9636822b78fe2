package repojson_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenwood-edu/lostfound-auth/users"
	"github.com/greenwood-edu/lostfound-auth/users/repojson"
)

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "users.json")

	repo, err := repojson.New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, &users.User{
		Username: "jdoe",
		Email:    "jdoe@greenwood.edu",
		Role:     users.RoleStudent,
	}))

	reopened, err := repojson.New(path)
	require.NoError(t, err)

	user, err := reopened.GetByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jdoe@greenwood.edu", user.Email)
	assert.Equal(t, users.RoleStudent, user.Role)
}

func TestDeleteIsWrittenThrough(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")

	repo, err := repojson.New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, &users.User{Username: "jdoe", Email: "jdoe@greenwood.edu"}))
	require.NoError(t, repo.Delete(ctx, "jdoe"))

	reopened, err := repojson.New(path)
	require.NoError(t, err)
	_, err = reopened.GetByUsername(ctx, "jdoe")
	assert.ErrorIs(t, err, users.NotFoundErr)
}

func TestMissingFileBehavesAsEmpty(t *testing.T) {
	repo, err := repojson.New(filepath.Join(t.TempDir(), "never-written.json"))
	require.NoError(t, err)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
