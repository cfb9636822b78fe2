package storefake

import (
	"sync"

	"github.com/greenwood-edu/lostfound-auth/tokenstore"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store for tests.
type FakeStore struct {
	stored *tokenstore.Stored
	lock   sync.Mutex

	SaveCalls  int
	ClearCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Save(stored tokenstore.Stored) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.SaveCalls++
	cp := stored
	fs.stored = &cp
	return nil
}

func (fs *FakeStore) Load() (*tokenstore.Stored, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.stored == nil {
		return nil, nil
	}
	cp := *fs.stored
	return &cp, nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.ClearCalls++
	fs.stored = nil
	return nil
}
