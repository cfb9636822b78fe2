// Package session owns the authenticated principal for the current process.
// The Manager is the only writer; every other component reads immutable
// snapshots.
package session

import (
	"time"

	"github.com/greenwood-edu/lostfound-auth/users"
)

// State tracks where the process is in its authentication lifecycle.
// StateUnknown exists only before the first resolution completes; once
// resolved a process never returns to it.
type State int

const (
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is the in-memory representation of the authenticated principal.
// It is either fully populated or absent; no partial session ever leaves the
// Manager.
type Session struct {
	UserID      string
	Username    string
	DisplayName string
	Email       string
	Role        users.Role
	Token       string
	ExpiresAt   time.Time
}

// Snapshot is the read-only view handed to consumers. Loading true means an
// operation is in flight and no decision should be made on the session yet.
type Snapshot struct {
	State   State
	Session *Session
	Loading bool
	Err     error
}

// Authenticated reports whether the snapshot holds a resolved, live session.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.Session != nil
}

func sessionFromProfile(user users.User, token string, expiresAt time.Time) *Session {
	return &Session{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		Token:       token,
		ExpiresAt:   expiresAt,
	}
}
