// Package tokenstore persists the bearer token and the cached profile
// snapshot across process restarts, scoped to the local device.
package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/greenwood-edu/lostfound-auth/users"
)

// Stored is the persisted authentication state: the opaque bearer token plus
// the profile snapshot that mirrors the session minus the token itself.
type Stored struct {
	Token   string     `json:"token"`
	Profile users.User `json:"profile"`
}

// Store defines durable persistence for authentication state.
//
// Load returns (nil, nil) when nothing is stored. Corrupt or unparsable
// stored data is treated as absent: the entry is cleared and (nil, nil) is
// returned, so a damaged store always fails open to logged-out.
type Store interface {
	Save(stored Stored) error
	Load() (*Stored, error)
	Clear() error
}

// FileStore keeps the authentication state in a single JSON file.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Save(stored Stored) error {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "[FileStore.Save] mkdir")
	}
	b, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] marshal")
	}
	if err := os.WriteFile(fs.path, b, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.Save] write")
	}
	return nil
}

func (fs *FileStore) Load() (*Stored, error) {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[FileStore.Load] read")
	}

	var stored Stored
	if err := json.Unmarshal(b, &stored); err != nil || stored.Token == "" {
		log.Warn().Str("path", fs.path).Msg("clearing corrupt auth state")
		if clearErr := fs.Clear(); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}
	return &stored, nil
}

func (fs *FileStore) Clear() error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] remove")
	}
	return nil
}
