package refresh

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/greenwood-edu/lostfound-auth/token"
	"github.com/greenwood-edu/lostfound-auth/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Manager handles access-token registration, validation, revocation, and
// refresh rotation. A token may be exchanged for a fresh one while its
// signature verifies, its jti is still live, and its original issue time is
// inside the refresh window.
type Manager struct {
	repo     Repo
	userRepo users.Repo
	issuer   *token.Issuer
	window   time.Duration
}

// NewManager creates a new refresh manager.
func NewManager(repo Repo, userRepo users.Repo, issuer *token.Issuer, window time.Duration) *Manager {
	return &Manager{
		repo:     repo,
		userRepo: userRepo,
		issuer:   issuer,
		window:   window,
	}
}

// Issue mints a token for the user and registers its jti as live.
func (m *Manager) Issue(ctx context.Context, user *users.User) (string, *token.Claims, error) {
	signed, claims, err := m.issuer.Mint(user)
	if err != nil {
		return "", nil, errors.Wrap(err, "[Manager.Issue] mint")
	}
	if err := m.repo.Upsert(ctx, &StoredToken{
		JTI:    claims.ID,
		UserID: user.ID,
		Iat:    claims.IssuedAt.Time,
	}); err != nil {
		return "", nil, errors.Wrap(err, "[Manager.Issue] store")
	}
	return signed, claims, nil
}

// IsLive reports whether the jti has not been revoked or rotated away.
func (m *Manager) IsLive(ctx context.Context, jti string) bool {
	stored, err := m.repo.Get(ctx, jti)
	return err == nil && stored != nil
}

// Refresh exchanges a signature-valid (possibly expired) token for a fresh
// one. The old jti is revoked so each token can be rotated at most once.
func (m *Manager) Refresh(ctx context.Context, raw string) (string, *token.Claims, error) {
	claims, err := m.issuer.VerifyAllowExpired(raw)
	if err != nil {
		return "", nil, err
	}

	stored, err := m.repo.Get(ctx, claims.ID)
	if err != nil || stored == nil {
		return "", nil, token.TokenRevokedErr
	}

	if NowTimeFunc().Sub(stored.Iat) > m.window {
		_ = m.repo.Delete(ctx, claims.ID)
		return "", nil, token.TokenExpiredErr
	}

	// Refetch the user so profile or role changes propagate into the new token.
	user, err := m.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		_ = m.repo.Delete(ctx, claims.ID)
		return "", nil, token.TokenRevokedErr
	}

	signed, newClaims, err := m.issuer.Mint(user)
	if err != nil {
		return "", nil, errors.Wrap(err, "[Manager.Refresh] mint")
	}
	if err := m.repo.Upsert(ctx, &StoredToken{
		JTI:    newClaims.ID,
		UserID: user.ID,
		Iat:    stored.Iat, // the refresh window is anchored to the original login
	}); err != nil {
		return "", nil, errors.Wrap(err, "[Manager.Refresh] store")
	}
	if err := m.repo.Delete(ctx, claims.ID); err != nil {
		return "", nil, errors.Wrap(err, "[Manager.Refresh] rotate")
	}
	return signed, newClaims, nil
}

// Revoke invalidates a single token. Revoking an unknown jti is a no-op.
func (m *Manager) Revoke(ctx context.Context, jti string) error {
	if err := m.repo.Delete(ctx, jti); err != nil && !errors.Is(err, token.TokenRevokedErr) {
		return errors.Wrap(err, "[Manager.Revoke] delete")
	}
	return nil
}

// RevokeAllForUser invalidates every live token belonging to the user.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) error {
	return m.repo.DeleteByUserID(ctx, userID)
}

// CleanupExpired removes records whose refresh window has fully elapsed.
func (m *Manager) CleanupExpired(ctx context.Context) error {
	return m.repo.DeleteExpired(ctx, NowTimeFunc().Add(-m.window))
}
