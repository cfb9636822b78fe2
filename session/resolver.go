package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/greenwood-edu/lostfound-auth/apiclient"
	"github.com/greenwood-edu/lostfound-auth/tokenstore"
)

// Resolver reconstructs a session at application start from persisted state.
// A stored token is always revalidated against the backend; a locally cached
// snapshot is never trusted on its own.
type Resolver struct {
	store  tokenstore.Store
	client *apiclient.Client
}

func NewResolver(store tokenstore.Store, client *apiclient.Client) *Resolver {
	return &Resolver{store: store, client: client}
}

// Resolve returns the current session, or nil for anonymous.
//
// Outcomes:
//   - nothing stored (or corrupt state, which the store clears itself):
//     nil session, nil error;
//   - token confirmed invalid by the backend: store cleared, nil session;
//   - transient failure (backend unreachable): nil session plus the error,
//     with the stored state left intact so an explicit re-login or a retry
//     can still recover it.
func (r *Resolver) Resolve(ctx context.Context) (*Session, error) {
	stored, err := r.store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "[Resolver.Resolve] load")
	}
	if stored == nil {
		return nil, nil
	}

	profile, err := r.client.CurrentProfile(ctx)
	if err != nil {
		if errors.Is(err, apiclient.SessionExpiredErr) {
			// Confirmed invalid. The transport already cleared the store on
			// the failed refresh, but clear again in case the backend
			// rejected the request without a refresh attempt.
			_ = r.store.Clear()
			return nil, nil
		}
		// Transient. Do not clear a possibly-valid session.
		return nil, err
	}

	// The validation round-trip may have rotated the token; reload so the
	// session carries whatever is now current.
	if current, loadErr := r.store.Load(); loadErr == nil && current != nil {
		stored = current
	}

	// Persist the authoritative profile alongside the token.
	_ = r.store.Save(tokenstore.Stored{Token: stored.Token, Profile: *profile})

	return sessionFromProfile(*profile, stored.Token, time.Time{}), nil
}
