package postgres

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

type sessionStore struct {
	db  *DB
	ttl time.Duration
	sec ports.SecurityPort
	log zerolog.Logger
}

var _ ports.SessionStore = (*sessionStore)(nil)

// NewSessionStore creates the authoritative session store. Records
// live under namespaced keys `session:<userId>` with a TTL that
// refreshes on every successful read. The identity bearer credential
// is encrypted with sec before it touches the row and decrypted on
// the way out; the rest of the record is not sensitive.
func NewSessionStore(db *DB, ttl time.Duration, sec ports.SecurityPort, baseLogger *zerolog.Logger) ports.SessionStore {
	return &sessionStore{
		db:  db,
		ttl: ttl,
		sec: sec,
		log: baseLogger.With().Str("component", "session_store").Logger(),
	}
}

func sessionKey(userID string) string { return "session:" + userID }

// sealToken replaces the plaintext credential with base64(AES-GCM)
// on a copy of the session, leaving the caller's value untouched.
func (s *sessionStore) sealToken(session *domain.Session) (*domain.Session, error) {
	if session.IdentityToken == nil {
		return session, nil
	}
	ciphertext, err := s.sec.Encrypt([]byte(*session.IdentityToken))
	if err != nil {
		return nil, fmt.Errorf("encrypt identity token: %w", err)
	}
	sealed := base64.StdEncoding.EncodeToString(ciphertext)
	cp := *session
	cp.IdentityToken = &sealed
	return &cp, nil
}

// openToken reverses sealToken in place. A credential that fails to
// decode or decrypt is corruption, not unavailability.
func (s *sessionStore) openToken(session *domain.Session) error {
	if session.IdentityToken == nil {
		return nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(*session.IdentityToken)
	if err != nil {
		return fmt.Errorf("decode identity token: %w", err)
	}
	plaintext, err := s.sec.Decrypt(ciphertext)
	if err != nil {
		return fmt.Errorf("decrypt identity token: %w", err)
	}
	token := string(plaintext)
	session.IdentityToken = &token
	return nil
}

// Get loads and refreshes a session. An expired record is deleted
// eagerly and reported as absent; infrastructure trouble is
// domain.ErrStoreUnavailable, never confused with absence.
func (s *sessionStore) Get(ctx context.Context, userID string) (*domain.Session, error) {
	key := sessionKey(userID)

	var raw []byte
	var expiresAt time.Time
	err := s.db.pool.QueryRow(ctx,
		`SELECT value, expires_at FROM protocol_sessions WHERE key = $1`, key,
	).Scan(&raw, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to read session")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if time.Now().After(expiresAt) {
		if _, err := s.db.pool.Exec(ctx,
			`DELETE FROM protocol_sessions WHERE key = $1`, key); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete expired session")
		}
		s.log.Info().Str("user_id", userID).Msg("Expired session deleted on read")
		return nil, nil
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		// Unreadable payload is corruption, not unavailability; hand
		// the orchestrator an invalid-stage session so it resets.
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to decode session payload")
		return &domain.Session{UserID: userID, Stage: domain.Stage(0)}, nil
	}
	if err := s.openToken(&session); err != nil {
		// An undecryptable credential cannot authorize anything;
		// treat the record as corrupt and let the orchestrator reset.
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to unseal identity token")
		return &domain.Session{UserID: userID, Stage: domain.Stage(0)}, nil
	}

	if _, err := s.db.pool.Exec(ctx,
		`UPDATE protocol_sessions SET expires_at = $2 WHERE key = $1`,
		key, time.Now().Add(s.ttl)); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to refresh session TTL")
	}

	return &session, nil
}

// Put writes a full replacement and resets the TTL. The bearer
// credential never reaches the row in plaintext.
func (s *sessionStore) Put(ctx context.Context, userID string, session *domain.Session) error {
	sealed, err := s.sealToken(session)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.db.pool.Exec(ctx, `
		INSERT INTO protocol_sessions (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, sessionKey(userID), raw, time.Now().Add(s.ttl))
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to write session")
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the session; absent keys are a no-op.
func (s *sessionStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.pool.Exec(ctx,
		`DELETE FROM protocol_sessions WHERE key = $1`, sessionKey(userID))
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete session")
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Alias records the identity-provider id as a secondary lookup key.
func (s *sessionStore) Alias(ctx context.Context, identityID, userID string) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO session_aliases (identity_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (identity_id) DO UPDATE SET user_id = EXCLUDED.user_id
	`, identityID, userID)
	if err != nil {
		s.log.Error().Err(err).Str("identity_id", identityID).Msg("Failed to write alias")
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Resolve returns the aliased user id, or "" when unknown.
func (s *sessionStore) Resolve(ctx context.Context, identityID string) (string, error) {
	var userID string
	err := s.db.pool.QueryRow(ctx,
		`SELECT user_id FROM session_aliases WHERE identity_id = $1`, identityID,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return userID, nil
}
