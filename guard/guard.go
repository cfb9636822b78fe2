// Package guard gates protected views by role. The decision table lives in
// one place; every guarded surface goes through Decide.
package guard

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/pkg/errors"

	"github.com/greenwood-edu/lostfound-auth/session"
	"github.com/greenwood-edu/lostfound-auth/users"
)

// Decision is the outcome of evaluating a guard against a session snapshot.
type Decision int

const (
	// DecisionPending means resolution is still in flight; render a neutral
	// pending state, never a redirect. A momentarily-empty session during
	// resolution is not confirmed anonymity.
	DecisionPending Decision = iota
	// DecisionAllow renders the protected content.
	DecisionAllow
	// DecisionLoginRedirect sends the visitor to the anonymous entry point.
	DecisionLoginRedirect
	// DecisionForbidden sends an authenticated visitor without the required
	// role to the unauthorized page.
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionLoginRedirect:
		return "login-redirect"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "pending"
	}
}

// Decide evaluates the access-control table:
//
//	loading            -> pending
//	anonymous          -> login redirect (regardless of allow-list)
//	authenticated, in  -> allow
//	authenticated, out -> forbidden
func Decide(snap session.Snapshot, allowed []users.Role) Decision {
	if snap.Loading || snap.State == session.StateUnknown {
		return DecisionPending
	}
	if !snap.Authenticated() {
		return DecisionLoginRedirect
	}
	for _, role := range allowed {
		if snap.Session.Role == role {
			return DecisionAllow
		}
	}
	return DecisionForbidden
}

// Guard binds an allow-list to a snapshot source and remembers the location
// that most recently bounced to login, so the application can return there
// after authentication.
type Guard struct {
	source  func() session.Snapshot
	allowed []users.Role

	mu       sync.Mutex
	returnTo string
}

// New creates a Guard. The allow-list must be non-empty.
func New(source func() session.Snapshot, allowed ...users.Role) (*Guard, error) {
	if source == nil {
		return nil, errors.New("[guard.New] snapshot source is required")
	}
	if len(allowed) == 0 {
		return nil, errors.New("[guard.New] allow-list must not be empty")
	}
	for _, role := range allowed {
		if !role.Valid() {
			return nil, errors.Errorf("[guard.New] unknown role %q", role)
		}
	}
	return &Guard{source: source, allowed: allowed}, nil
}

// Check evaluates the guard for a requested location. On a login redirect the
// location is recorded; only the most recent one is kept.
func (g *Guard) Check(location string) Decision {
	d := Decide(g.source(), g.allowed)
	if d == DecisionLoginRedirect && location != "" {
		g.mu.Lock()
		g.returnTo = location
		g.mu.Unlock()
	}
	return d
}

// ReturnTo reports the location captured by the last login redirect.
func (g *Guard) ReturnTo() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.returnTo
}

// Middleware gates an HTTP route by role. The snapshot is derived per request
// (on the server, from verified token claims). Anonymous visitors are bounced
// to loginURL carrying the original location in the "from" parameter;
// authenticated visitors outside the allow-list go to forbiddenURL.
func Middleware(fromRequest func(*http.Request) session.Snapshot, loginURL, forbiddenURL string, allowed ...users.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch Decide(fromRequest(r), allowed) {
			case DecisionAllow:
				next.ServeHTTP(w, r)
			case DecisionLoginRedirect:
				target := loginURL + "?from=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
			case DecisionForbidden:
				http.Redirect(w, r, forbiddenURL, http.StatusSeeOther)
			default:
				// Still resolving: neither content nor a redirect.
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		})
	}
}
