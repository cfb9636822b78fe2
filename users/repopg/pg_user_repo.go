// Package repopg provides a Postgres-backed user repository for real
// deployments. Schema:
//
//	CREATE TABLE users (
//	    id           TEXT PRIMARY KEY,
//	    username     TEXT NOT NULL UNIQUE,
//	    email        TEXT NOT NULL UNIQUE,
//	    display_name TEXT NOT NULL DEFAULT '',
//	    password_hash TEXT NOT NULL,
//	    role         TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    last_login   TIMESTAMPTZ
//	);
package repopg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/greenwood-edu/lostfound-auth/users"
)

const uniqueViolation = "23505"

type PGUserRepo struct {
	pool *pgxpool.Pool
}

var _ users.Repo = (*PGUserRepo)(nil)

func New(pool *pgxpool.Pool) *PGUserRepo {
	return &PGUserRepo{pool: pool}
}

func (r *PGUserRepo) Upsert(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, display_name, password_hash, role, created_at, last_login)
		VALUES ($1, lower($2), lower($3), $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			last_login = EXCLUDED.last_login`,
		user.ID, user.Username, user.Email, user.DisplayName,
		user.PasswordHash, string(user.Role), user.CreatedAt, nullable(user.LastLogin))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return users.AlreadyExistsErr
		}
		return errors.Wrap(err, "[PGUserRepo.Upsert] exec")
	}
	return nil
}

func (r *PGUserRepo) Delete(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE username = lower($1)`, username)
	if err != nil {
		return errors.Wrap(err, "[PGUserRepo.Delete] exec")
	}
	if tag.RowsAffected() == 0 {
		return users.NotFoundErr
	}
	return nil
}

func (r *PGUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *PGUserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return r.get(ctx, `WHERE username = lower($1)`, username)
}

func (r *PGUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.get(ctx, `WHERE email = lower($1)`, email)
}

func (r *PGUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*users.User, error) {
	return r.get(ctx, `WHERE username = lower($1) OR email = lower($1)`, identifier)
}

func (r *PGUserRepo) List(ctx context.Context, offset, limit int) ([]*users.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, selectUsers+` ORDER BY id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[PGUserRepo.List] query")
	}
	defer rows.Close()

	var list []*users.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (r *PGUserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "[PGUserRepo.Count] scan")
	}
	return n, nil
}

func (r *PGUserRepo) SetLastLogin(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login = now() WHERE username = lower($1)`, username)
	if err != nil {
		return errors.Wrap(err, "[PGUserRepo.SetLastLogin] exec")
	}
	if tag.RowsAffected() == 0 {
		return users.NotFoundErr
	}
	return nil
}

const selectUsers = `SELECT id, username, email, display_name, password_hash, role, created_at, last_login FROM users`

func (r *PGUserRepo) get(ctx context.Context, where string, args ...any) (*users.User, error) {
	row := r.pool.QueryRow(ctx, selectUsers+` `+where, args...)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.NotFoundErr
	}
	return u, err
}

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		u         users.User
		role      string
		lastLogin *time.Time
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName,
		&u.PasswordHash, &role, &u.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	u.Role = users.Role(role)
	if lastLogin != nil {
		u.LastLogin = *lastLogin
	}
	return &u, nil
}

func nullable(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
