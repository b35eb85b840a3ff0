package memory

import (
	"context"
	"sort"
	"sync"

	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BacktestSession // keyed by session id
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]*domain.BacktestSession),
	}
}

// Save upserts a session snapshot. Last write wins per session id.
func (s *SessionStore) Save(_ context.Context, session *domain.BacktestSession) error {
	if session == nil || session.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[session.ID] = copySession(session)
	return nil
}

// Get retrieves a session by id. Returns ErrNotFound if not exists.
func (s *SessionStore) Get(_ context.Context, sessionID string) (*domain.BacktestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.data[sessionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySession(session), nil
}

// List returns all stored session ids, oldest first.
func (s *SessionStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*domain.BacktestSession, 0, len(s.data))
	for _, session := range s.data {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})

	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}
	return ids, nil
}

// Delete removes a session. Reports whether a record was removed.
func (s *SessionStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sessionID]; !exists {
		return false, nil
	}
	delete(s.data, sessionID)
	return true, nil
}

// copySession makes a deep copy so callers cannot mutate stored state.
func copySession(s *domain.BacktestSession) *domain.BacktestSession {
	out := *s
	out.Trades = append([]domain.Trade(nil), s.Trades...)
	out.EquityCurve = append([]domain.EquityPoint(nil), s.EquityCurve...)
	out.AnalysisLog = append([]string(nil), s.AnalysisLog...)
	out.ErrorLog = append([]string(nil), s.ErrorLog...)
	if s.FinishedAt != nil {
		finished := *s.FinishedAt
		out.FinishedAt = &finished
	}
	return &out
}

var _ storage.SessionStore = (*SessionStore)(nil)
