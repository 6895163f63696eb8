package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/vendor-orders/internal/domains/identity/ports"
)

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStore is an in-memory SessionStore implementation.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]time.Time
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]time.Time{}, now: time.Now}
}

func (s *SessionStore) Save(_ context.Context, session ports.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = session.ExpiresAt
	return nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *SessionStore) Exists(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiresAt, ok := s.sessions[token]
	if !ok {
		return false, nil
	}
	return expiresAt.IsZero() || s.now().Before(expiresAt), nil
}

func (s *SessionStore) PurgeExpired(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for token, expiresAt := range s.sessions {
		if !expiresAt.IsZero() && !now.Before(expiresAt) {
			delete(s.sessions, token)
		}
	}
	return nil
}
