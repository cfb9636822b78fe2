// Package repojson provides a file-backed user repository intended for
// development and small single-node deployments. Every mutation is written
// through to disk so the user database survives process restarts.
package repojson

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/greenwood-edu/lostfound-auth/users"
	"github.com/greenwood-edu/lostfound-auth/users/repofake"
)

var errTableFileIsDir = errors.New("table file is dir")

type data struct {
	Users []*users.User `json:"users"`
}

// JSONUserRepo layers JSON-file persistence over the in-memory repository.
type JSONUserRepo struct {
	path string
	mem  *repofake.FakeUserRepo
	lock sync.Mutex
}

var _ users.Repo = (*JSONUserRepo)(nil)

func New(path string) (*JSONUserRepo, error) {
	r := &JSONUserRepo{
		path: path,
		mem:  repofake.NewFakeUserRepo(),
	}

	if err := r.readfile(); err != nil {
		if !os.IsNotExist(err) {
			// Log only; an unreadable file behaves as an empty database and
			// is overwritten on the next mutation.
			log.Warn().Err(err).Str("path", path).Msg("failed reading user repo data file")
		}
	}
	return r, nil
}

func (r *JSONUserRepo) readfile() error {
	finfo, err := os.Stat(r.path)
	if err != nil {
		return err
	}
	if finfo.IsDir() {
		return errTableFileIsDir
	}

	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	var d data
	if err := json.NewDecoder(f).Decode(&d); err != nil {
		return errors.Wrap(err, "[JSONUserRepo.readfile] decode")
	}
	for _, u := range d.Users {
		if err := r.mem.Upsert(context.Background(), u); err != nil {
			return errors.Wrapf(err, "[JSONUserRepo.readfile] loading user %q", u.Username)
		}
	}
	return nil
}

func (r *JSONUserRepo) writefile() error {
	all, err := r.mem.List(context.Background(), 0, 0)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return errors.Wrap(err, "[JSONUserRepo.writefile] mkdir")
	}

	b, err := json.MarshalIndent(data{Users: all}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[JSONUserRepo.writefile] marshal")
	}
	return os.WriteFile(r.path, b, 0o600)
}

func (r *JSONUserRepo) Upsert(ctx context.Context, user *users.User) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.mem.Upsert(ctx, user); err != nil {
		return err
	}
	return r.writefile()
}

func (r *JSONUserRepo) Delete(ctx context.Context, username string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.mem.Delete(ctx, username); err != nil {
		return err
	}
	return r.writefile()
}

func (r *JSONUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.mem.GetByID(ctx, id)
}

func (r *JSONUserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return r.mem.GetByUsername(ctx, username)
}

func (r *JSONUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.mem.GetByEmail(ctx, email)
}

func (r *JSONUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*users.User, error) {
	return r.mem.GetByIdentifier(ctx, identifier)
}

func (r *JSONUserRepo) List(ctx context.Context, offset, limit int) ([]*users.User, error) {
	return r.mem.List(ctx, offset, limit)
}

func (r *JSONUserRepo) Count(ctx context.Context) (int, error) {
	return r.mem.Count(ctx)
}

func (r *JSONUserRepo) SetLastLogin(ctx context.Context, username string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.mem.SetLastLogin(ctx, username); err != nil {
		return err
	}
	return r.writefile()
}
