package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

// SessionStore is the in-memory SessionStore used in dev mode and in
// tests. The clock is injectable so expiry is deterministic under
// test.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]entry
	aliases  map[string]string
}

type entry struct {
	session   domain.Session
	expiresAt time.Time
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates an empty store with the given TTL.
func NewSessionStore(ttl time.Duration, baseLogger *zerolog.Logger) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		log:      baseLogger.With().Str("component", "memory_store").Logger(),
		sessions: make(map[string]entry),
		aliases:  make(map[string]string),
	}
}

// SetClock replaces the store's clock. Tests only.
func (s *SessionStore) SetClock(now func() time.Time) { s.now = now }

// Get returns the session, treating an expired record as absent and
// deleting it eagerly. A hit refreshes the TTL.
func (s *SessionStore) Get(ctx context.Context, userID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.sessions, userID)
		s.log.Info().Str("user_id", userID).Msg("Expired session deleted on read")
		return nil, nil
	}

	e.expiresAt = s.now().Add(s.ttl)
	s.sessions[userID] = e

	out := e.session
	return &out, nil
}

// Put stores a full replacement and resets the TTL.
func (s *SessionStore) Put(ctx context.Context, userID string, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = entry{session: *session, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Delete removes the session; absent keys are a no-op.
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// Alias records the identity-provider id as a secondary lookup.
func (s *SessionStore) Alias(ctx context.Context, identityID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[identityID] = userID
	return nil
}

// Resolve returns the aliased user id, or "" when unknown.
func (s *SessionStore) Resolve(ctx context.Context, identityID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aliases[identityID], nil
}
