package refresh

import (
	"context"
	"time"
)

// StoredToken represents the server-side record of a live access token.
// Tokens are opaque to the server apart from their jti; this repo stores the
// metadata needed to decide whether a token may still be refreshed.
type StoredToken struct {
	JTI    string    // Token ID (jwt jti claim)
	UserID string    // Owning user
	Iat    time.Time // Original issue time; preserved across rotations
}

// Repo manages server-side storage of live token metadata. A token whose jti
// is absent from the repo has been revoked (or was never issued here).
type Repo interface {
	Upsert(ctx context.Context, token *StoredToken) error
	Delete(ctx context.Context, jti string) error
	Get(ctx context.Context, jti string) (*StoredToken, error)
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) error
}
