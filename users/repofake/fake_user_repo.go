package repofake

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/greenwood-edu/lostfound-auth/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User
	usernameIds map[string]string // username to user id
	emailIds    map[string]string // email to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		usernameIds: make(map[string]string),
		emailIds:    make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if id, ok := ur.usernameIds[strings.ToLower(user.Username)]; ok && id != user.ID {
		return users.AlreadyExistsErr
	}
	if id, ok := ur.emailIds[strings.ToLower(user.Email)]; ok && id != user.ID {
		return users.AlreadyExistsErr
	}

	ur.users[user.ID] = user
	ur.usernameIds[strings.ToLower(user.Username)] = user.ID
	ur.emailIds[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, username string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.usernameIds[strings.ToLower(username)]
	if !ok {
		return users.NotFoundErr
	}
	user := ur.users[userID]
	delete(ur.usernameIds, strings.ToLower(username))
	if user != nil {
		delete(ur.emailIds, strings.ToLower(user.Email))
	}
	delete(ur.users, userID)
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, users.NotFoundErr
	}
	return user, nil
}

func (ur *FakeUserRepo) GetByUsername(_ context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.byIndex(ur.usernameIds, username)
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.byIndex(ur.emailIds, email)
}

func (ur *FakeUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*users.User, error) {
	if user, err := ur.GetByUsername(ctx, identifier); err == nil {
		return user, nil
	}
	return ur.GetByEmail(ctx, identifier)
}

func (ur *FakeUserRepo) List(_ context.Context, offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0, len(ur.users))
	for _, v := range ur.users {
		userList = append(userList, v)
	}

	sort.Slice(userList, func(i, j int) bool {
		return userList[i].ID < userList[j].ID
	})

	if offset >= len(userList) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(userList) {
		end = len(userList)
	}
	return userList[offset:end], nil
}

func (ur *FakeUserRepo) Count(_ context.Context) (int, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users), nil
}

func (ur *FakeUserRepo) SetLastLogin(ctx context.Context, username string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, err := ur.byIndex(ur.usernameIds, username)
	if err != nil {
		return err
	}
	user.LastLogin = time.Now()
	return nil
}

func (ur *FakeUserRepo) byIndex(index map[string]string, key string) (*users.User, error) {
	id, ok := index[strings.ToLower(key)]
	if !ok {
		return nil, users.NotFoundErr
	}
	return ur.users[id], nil
}
