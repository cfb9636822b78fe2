package repomem

import (
	"context"
	"sync"
	"time"

	"github.com/greenwood-edu/lostfound-auth/token"
	"github.com/greenwood-edu/lostfound-auth/token/refresh"
)

var _ refresh.Repo = (*MemoryTokenRepo)(nil)

type MemoryTokenRepo struct {
	tokens map[string]*refresh.StoredToken
	lock   sync.RWMutex
}

func NewMemoryTokenRepo() *MemoryTokenRepo {
	return &MemoryTokenRepo{tokens: make(map[string]*refresh.StoredToken)}
}

func (tr *MemoryTokenRepo) Upsert(_ context.Context, t *refresh.StoredToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.tokens[t.JTI] = t
	return nil
}

func (tr *MemoryTokenRepo) Delete(_ context.Context, jti string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	delete(tr.tokens, jti)
	return nil
}

func (tr *MemoryTokenRepo) Get(_ context.Context, jti string) (*refresh.StoredToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	t, ok := tr.tokens[jti]
	if !ok {
		return nil, token.TokenRevokedErr
	}
	return t, nil
}

func (tr *MemoryTokenRepo) DeleteByUserID(_ context.Context, userID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	for jti, t := range tr.tokens {
		if t.UserID == userID {
			delete(tr.tokens, jti)
		}
	}
	return nil
}

func (tr *MemoryTokenRepo) DeleteExpired(_ context.Context, before time.Time) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	for jti, t := range tr.tokens {
		if t.Iat.Before(before) {
			delete(tr.tokens, jti)
		}
	}
	return nil
}
