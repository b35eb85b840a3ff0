package memory

import (
	"context"
	"sort"
	"sync"

	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu   sync.RWMutex
	data map[string]*domain.User // keyed by user id
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		data: make(map[string]*domain.User),
	}
}

// GetByID retrieves a user by id. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.data[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	out := *u
	return &out, nil
}

// GetByEmail retrieves a user by email. Returns ErrNotFound if not exists.
func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.data {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

// Upsert inserts or replaces a user record.
func (s *UserStore) Upsert(_ context.Context, u *domain.User) error {
	if u == nil || u.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := *u
	s.data[u.ID] = &out
	return nil
}

// List returns all users ordered by id.
func (s *UserStore) List(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.User, 0, len(s.data))
	for _, u := range s.data {
		out := *u
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ storage.UserStore = (*UserStore)(nil)
