package apiclient

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/greenwood-edu/lostfound-auth/tokenstore"
)

// Transport is the single interception point for outbound requests. It
// attaches the bearer token from the store at request-build time, and on an
// authorization failure performs exactly one refresh and exactly one replay
// of the original request.
//
// Guarantees:
//   - at most one refresh-and-retry cycle per original request, enforced
//     structurally (the replay result is returned without re-entering the
//     interception path), so repeated 401s can never loop;
//   - concurrent 401s are coalesced into a single refresh call via
//     singleflight, each triggering request still getting its own replay;
//   - on refresh failure the store is cleared, the expiry callback fires,
//     and the caller sees SessionExpiredErr.
type Transport struct {
	base    http.RoundTripper
	store   tokenstore.Store
	refresh func(ctx context.Context, current string) (string, error)

	onSessionExpired func()
	group            singleflight.Group
}

var _ http.RoundTripper = (*Transport)(nil)

func NewTransport(base http.RoundTripper, store tokenstore.Store, refresh func(ctx context.Context, current string) (string, error)) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:    base,
		store:   store,
		refresh: refresh,
	}
}

// OnSessionExpired registers the callback fired when the session is
// terminally lost. The auth session manager uses this to transition to
// anonymous; it is invoked at most once per failed refresh cycle.
func (t *Transport) OnSessionExpired(fn func()) {
	t.onSessionExpired = fn
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	stored, err := t.store.Load()
	if err != nil {
		return nil, err
	}

	attached := req.Clone(req.Context())
	if stored != nil && stored.Token != "" {
		attached.Header.Set("Authorization", "Bearer "+stored.Token)
	}

	resp, err := t.base.RoundTrip(attached)
	if err != nil {
		return nil, err
	}

	// Only an authorization failure on a request that actually carried a
	// token is a refresh trigger. An anonymous 401 (e.g. a failed login)
	// passes through untouched.
	if resp.StatusCode != http.StatusUnauthorized || stored == nil || stored.Token == "" {
		return resp, nil
	}
	// A consumed body without GetBody cannot be rebuilt for the replay;
	// hand the 401 back rather than resend a broken request.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	drain(resp)

	newToken, err := t.refreshToken(req.Context(), stored)
	if err != nil {
		t.expire()
		return nil, SessionExpiredErr
	}

	replay := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+newToken)

	resp, err = t.base.RoundTrip(replay)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// The replayed request failed with the fresh token. Terminal.
		drain(resp)
		t.expire()
		return nil, SessionExpiredErr
	}
	return resp, nil
}

// refreshToken performs the one-shot refresh, persisting the rotated token
// alongside the existing profile snapshot. Simultaneous callers share a
// single refresh round-trip.
func (t *Transport) refreshToken(ctx context.Context, stored *tokenstore.Stored) (string, error) {
	// The refresh outcome is shared by every coalesced caller; detach it from
	// the triggering request so one canceled caller cannot fail the rest.
	ctx = context.WithoutCancel(ctx)

	v, err, _ := t.group.Do("refresh", func() (interface{}, error) {
		// Another request may have already rotated the token while this one
		// was waiting; use whatever is current.
		current, loadErr := t.store.Load()
		if loadErr != nil || current == nil {
			current = stored
		}
		if current.Token != stored.Token {
			return current.Token, nil
		}

		newToken, refreshErr := t.refresh(ctx, current.Token)
		if refreshErr != nil {
			return "", refreshErr
		}
		if saveErr := t.store.Save(tokenstore.Stored{Token: newToken, Profile: current.Profile}); saveErr != nil {
			return "", saveErr
		}
		return newToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (t *Transport) expire() {
	_ = t.store.Clear()
	if t.onSessionExpired != nil {
		t.onSessionExpired()
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
