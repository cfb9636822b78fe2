package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/greenwood-edu/lostfound-auth/apiclient"
	"github.com/greenwood-edu/lostfound-auth/tokenstore"
	"github.com/greenwood-edu/lostfound-auth/users"
)

// Manager is the sole owner of the Session. It orchestrates login,
// registration, logout, and startup resolution, persists state through the
// token store, and publishes every transition to its watchers.
//
// Operations are serialized: a login issued while another is in flight waits
// for it to settle instead of racing the token store. The store write and the
// session update always happen inside the same critical section, so readers
// never observe one without the other.
type Manager struct {
	client   *apiclient.Client
	store    tokenstore.Store
	resolver *Resolver

	opMu sync.Mutex // serializes login/register/logout/resolve

	stateMu  sync.Mutex
	snap     Snapshot
	watchers map[int]func(Snapshot)
	nextID   int
}

func NewManager(client *apiclient.Client, store tokenstore.Store) *Manager {
	m := &Manager{
		client:   client,
		store:    store,
		resolver: NewResolver(store, client),
		snap:     Snapshot{State: StateUnknown},
		watchers: make(map[int]func(Snapshot)),
	}
	client.OnSessionExpired(m.sessionExpired)
	return m
}

// Current returns the present snapshot.
func (m *Manager) Current() Snapshot {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.snap
}

// Watch registers fn to be called on every session transition. The returned
// function cancels the registration.
func (m *Manager) Watch(fn func(Snapshot)) (cancel func()) {
	m.stateMu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.stateMu.Unlock()

	return func() {
		m.stateMu.Lock()
		delete(m.watchers, id)
		m.stateMu.Unlock()
	}
}

// Resolve reconstructs the session from persisted state. It runs once: after
// the first resolution the process never returns to StateUnknown, and later
// calls just report the current snapshot.
func (m *Manager) Resolve(ctx context.Context) Snapshot {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.Current().State != StateUnknown {
		return m.Current()
	}

	m.setLoading(true)
	sess, err := m.resolver.Resolve(ctx)
	m.update(func(s *Snapshot) {
		s.Loading = false
		s.Err = err
		if sess != nil {
			s.State = StateAuthenticated
			s.Session = sess
		} else {
			s.State = StateAnonymous
			s.Session = nil
		}
	})
	return m.Current()
}

// Login authenticates the identifier/secret/role combination. On success the
// token and profile snapshot are persisted and the session becomes
// authenticated. On failure the previous session state is untouched.
func (m *Manager) Login(ctx context.Context, identifier, secret string, claimedRole users.Role) (*Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.setLoading(true)
	creds, err := m.client.Login(ctx, identifier, secret, claimedRole)
	if err != nil {
		m.update(func(s *Snapshot) {
			s.Loading = false
			s.Err = err
		})
		return nil, err
	}

	return m.adopt(*creds)
}

// Register creates a new principal and, on success, behaves like an implicit
// login: the new account is authenticated immediately.
func (m *Manager) Register(ctx context.Context, reg apiclient.Registration) (*Session, error) {
	if err := validateRegistration(&reg); err != nil {
		m.update(func(s *Snapshot) { s.Err = err })
		return nil, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.setLoading(true)
	creds, err := m.client.Register(ctx, reg)
	if err != nil {
		m.update(func(s *Snapshot) {
			s.Loading = false
			s.Err = err
		})
		return nil, err
	}

	return m.adopt(*creds)
}

// Logout clears the token store and the session unconditionally. It never
// fails and is idempotent; the backend revocation is best effort.
func (m *Manager) Logout(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.Current().Authenticated() {
		if err := m.client.InvalidateSession(ctx); err != nil {
			log.Debug().Err(err).Msg("backend session invalidation failed")
		}
	}

	if err := m.store.Clear(); err != nil {
		log.Warn().Err(err).Msg("failed clearing token store on logout")
	}
	m.update(func(s *Snapshot) {
		s.State = StateAnonymous
		s.Session = nil
		s.Loading = false
		s.Err = nil
	})
}

// adopt persists fresh credentials and installs the authenticated session.
func (m *Manager) adopt(creds apiclient.Credentials) (*Session, error) {
	if err := m.store.Save(tokenstore.Stored{Token: creds.Token, Profile: creds.User}); err != nil {
		err = errors.Wrap(err, "[Manager.adopt] persist")
		m.update(func(s *Snapshot) {
			s.Loading = false
			s.Err = err
		})
		return nil, err
	}

	// The token is opaque to the client; ExpiresAt stays unset unless the
	// backend starts reporting it.
	sess := sessionFromProfile(creds.User, creds.Token, time.Time{})
	m.update(func(s *Snapshot) {
		s.State = StateAuthenticated
		s.Session = sess
		s.Loading = false
		s.Err = nil
	})
	return sess, nil
}

// sessionExpired is the transport's terminal-failure callback: the refresh
// cycle failed, the store is already cleared, and re-authentication is the
// only way back.
func (m *Manager) sessionExpired() {
	m.update(func(s *Snapshot) {
		if s.State == StateUnknown {
			// Resolution is still settling; Resolve will record the outcome.
			return
		}
		s.State = StateAnonymous
		s.Session = nil
		s.Err = SessionExpiredErr
	})
	log.Info().Msg("session expired, re-authentication required")
}

func (m *Manager) setLoading(v bool) {
	m.update(func(s *Snapshot) {
		s.Loading = v
		if v {
			s.Err = nil
		}
	})
}

func (m *Manager) update(mutate func(*Snapshot)) {
	m.stateMu.Lock()
	mutate(&m.snap)
	snap := m.snap
	fns := make([]func(Snapshot), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.stateMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func validateRegistration(reg *apiclient.Registration) error {
	switch {
	case reg.Username == "":
		return errors.Wrap(ValidationErr, "username is required")
	case reg.Email == "":
		return errors.Wrap(ValidationErr, "email is required")
	case reg.Password == "":
		return errors.Wrap(ValidationErr, "password is required")
	}
	if err := users.ValidatePasswordStrength(reg.Password); err != nil {
		return errors.Wrap(ValidationErr, err.Error())
	}
	if reg.Role == "" {
		reg.Role = users.RoleStudent
	}
	if !reg.Role.Valid() {
		return errors.Wrapf(ValidationErr, "unknown role %q", reg.Role)
	}
	return nil
}
