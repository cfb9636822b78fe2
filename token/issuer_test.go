package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenwood-edu/lostfound-auth/token"
	"github.com/greenwood-edu/lostfound-auth/users"
)

const (
	testSecret = "test-signing-secret"
	testIssuer = "http://localhost:8080"
)

var testUser = &users.User{
	ID:          "user-1",
	Username:    "jdoe",
	Email:       "jdoe@greenwood.edu",
	DisplayName: "Jo Doe",
	Role:        users.RoleStaff,
}

func TestMintAndVerify(t *testing.T) {
	issuer := token.NewIssuer([]byte(testSecret), testIssuer, time.Hour)

	signed, claims, err := issuer.Mint(testUser)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.NotEmpty(t, claims.ID)

	parsed, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.Subject)
	assert.Equal(t, "jdoe", parsed.Username)
	assert.Equal(t, users.RoleStaff, parsed.Role)
	assert.Equal(t, claims.ID, parsed.ID)

	user := parsed.User()
	assert.Equal(t, testUser.Email, user.Email)
	assert.Equal(t, testUser.DisplayName, user.DisplayName)
}

func TestVerifyExpiredToken(t *testing.T) {
	now := time.Now()
	issuer := token.NewIssuer([]byte(testSecret), testIssuer, time.Hour,
		token.WithNowTime(func() time.Time { return now }))

	signed, _, err := issuer.Mint(testUser)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)

	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, token.TokenExpiredErr)

	// The refresh path still accepts it while the signature holds.
	claims, err := issuer.VerifyAllowExpired(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	issuer := token.NewIssuer([]byte(testSecret), testIssuer, time.Hour)
	other := token.NewIssuer([]byte("different-secret"), testIssuer, time.Hour)

	signed, _, err := other.Mint(testUser)
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, token.InvalidTokenErr)

	_, err = issuer.VerifyAllowExpired(signed)
	assert.ErrorIs(t, err, token.InvalidTokenErr)

	_, err = issuer.Verify("not-a-token")
	assert.ErrorIs(t, err, token.InvalidTokenErr)
}

func TestEveryTokenGetsAUniqueID(t *testing.T) {
	issuer := token.NewIssuer([]byte(testSecret), testIssuer, time.Hour)

	_, first, err := issuer.Mint(testUser)
	require.NoError(t, err)
	_, second, err := issuer.Mint(testUser)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}
