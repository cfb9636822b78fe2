package users

import "context"

// Repo defines the interface for user storage operations.
type Repo interface {
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, username string) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByIdentifier looks a user up by username or email, whichever matches.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)

	List(ctx context.Context, offset, limit int) ([]*User, error)
	Count(ctx context.Context) (int, error)
	SetLastLogin(ctx context.Context, username string) error
}
