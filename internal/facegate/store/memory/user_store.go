package memory

import (
	"context"
	"sync"
	"time"

	"github.com/facegate/server/internal/facegate/types"
)

// UserStore is an in-memory user table for tests and dev environments.
type UserStore struct {
	mu    sync.RWMutex
	users map[int64]types.User
}

func NewUserStore(users ...types.User) *UserStore {
	m := make(map[int64]types.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &UserStore{users: m}
}

func (s *UserStore) GetUser(_ context.Context, id int64) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	out := u
	return &out, nil
}

func (s *UserStore) CountActive(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if u.Active {
			n++
		}
	}
	return n, nil
}

// TouchLastAccess is a no-op; memory users carry no last-access field.
func (s *UserStore) TouchLastAccess(_ context.Context, _ int64, _ time.Time) error {
	return nil
}

// Put adds or replaces a user.  Test-only helper.
func (s *UserStore) Put(u types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}
