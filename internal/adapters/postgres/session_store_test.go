package postgres

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nayudayo/terminal-sub000/internal/adapters/security"
	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

func cleanupSession(t *testing.T, userID string) {
	t.Helper()
	if _, err := testDB.pool.Exec(context.Background(),
		"DELETE FROM protocol_sessions WHERE key = $1", sessionKey(userID)); err != nil {
		t.Logf("Warning: failed to cleanup session %s: %v", userID, err)
	}
}

func testSecurity(t *testing.T) ports.SecurityPort {
	t.Helper()
	nopLogger := zerolog.Nop()
	sec, err := security.NewAESService([]byte("0123456789abcdef0123456789abcdef"), &nopLogger)
	require.NoError(t, err)
	return sec
}

func TestSessionStore_RoundTrip(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	store := NewSessionStore(db, time.Hour, testSecurity(t), &nopLogger)

	userID := uuid.NewString()
	defer cleanupSession(t, userID)

	s, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, s, "absent session reads as nil, nil")

	session := domain.NewSession(userID, time.Now())
	session.Stage = domain.StageMandates
	require.NoError(t, store.Put(ctx, userID, session))

	s, err = store.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, domain.StageMandates, s.Stage)
	assert.Equal(t, userID, s.UserID)

	require.NoError(t, store.Delete(ctx, userID))
	s, err = store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionStore_ExpiredRecordReadsAsAbsent(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	store := NewSessionStore(db, time.Hour, testSecurity(t), &nopLogger)

	userID := uuid.NewString()
	defer cleanupSession(t, userID)

	require.NoError(t, store.Put(ctx, userID, domain.NewSession(userID, time.Now())))

	// Force the record past its window.
	_, err := db.pool.Exec(ctx,
		"UPDATE protocol_sessions SET expires_at = now() - interval '1 minute' WHERE key = $1",
		sessionKey(userID))
	require.NoError(t, err)

	s, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, s)

	// The eager delete removed the row entirely.
	var count int
	require.NoError(t, db.pool.QueryRow(ctx,
		"SELECT count(*) FROM protocol_sessions WHERE key = $1", sessionKey(userID)).Scan(&count))
	assert.Zero(t, count)
}

func TestSessionStore_CorruptedPayloadTriggersReset(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	store := NewSessionStore(db, time.Hour, testSecurity(t), &nopLogger)

	userID := uuid.NewString()
	defer cleanupSession(t, userID)

	_, err := db.pool.Exec(ctx, `
		INSERT INTO protocol_sessions (key, value, expires_at)
		VALUES ($1, '"not a session"'::jsonb, now() + interval '1 hour')
	`, sessionKey(userID))
	require.NoError(t, err)

	s, err := store.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, s, "corruption hands back a session, not an error")
	assert.False(t, s.Stage.Valid(), "the invalid stage makes the orchestrator reset")
}

func TestSessionStore_IdentityTokenSealedAtRest(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	store := NewSessionStore(db, time.Hour, testSecurity(t), &nopLogger)

	userID := uuid.NewString()
	defer cleanupSession(t, userID)

	token := "bearer-" + uuid.NewString()
	session := domain.NewSession(userID, time.Now())
	session.Stage = domain.StageAuthenticated
	session.IdentityToken = &token
	require.NoError(t, store.Put(ctx, userID, session))

	// 1. The caller's session keeps the plaintext credential.
	require.NotNil(t, session.IdentityToken)
	assert.Equal(t, token, *session.IdentityToken)

	// 2. The stored row must not carry it.
	var raw []byte
	require.NoError(t, db.pool.QueryRow(ctx,
		"SELECT value FROM protocol_sessions WHERE key = $1", sessionKey(userID)).Scan(&raw))
	assert.NotContains(t, string(raw), token, "the bearer credential must never reach the row in plaintext")

	// 3. A read hands the plaintext back.
	s, err := store.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, s.IdentityToken)
	assert.Equal(t, token, *s.IdentityToken)
}

func TestSessionStore_UndecryptableTokenTriggersReset(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	store := NewSessionStore(db, time.Hour, testSecurity(t), &nopLogger)

	userID := uuid.NewString()
	defer cleanupSession(t, userID)

	token := "bearer-" + uuid.NewString()
	session := domain.NewSession(userID, time.Now())
	session.Stage = domain.StageAuthenticated
	session.IdentityToken = &token
	require.NoError(t, store.Put(ctx, userID, session))

	// Sealed under a key we no longer hold.
	otherKey, err := security.NewAESService([]byte("fedcba9876543210fedcba9876543210"), &nopLogger)
	require.NoError(t, err)
	foreign, err := otherKey.Encrypt([]byte(token))
	require.NoError(t, err)
	_, err = db.pool.Exec(ctx, `
		UPDATE protocol_sessions
		SET value = jsonb_set(value, '{identityToken}', to_jsonb($2::text))
		WHERE key = $1
	`, sessionKey(userID), base64.StdEncoding.EncodeToString(foreign))
	require.NoError(t, err)

	s, err := store.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, s, "an unreadable credential hands back a session, not an error")
	assert.False(t, s.Stage.Valid(), "the invalid stage makes the orchestrator reset")
}

func TestSessionStore_AliasRoundTrip(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	store := NewSessionStore(db, time.Hour, testSecurity(t), &nopLogger)

	identityID := "x-" + uuid.NewString()
	defer func() {
		_, _ = db.pool.Exec(ctx, "DELETE FROM session_aliases WHERE identity_id = $1", identityID)
	}()

	require.NoError(t, store.Alias(ctx, identityID, "user-1"))
	// Re-aliasing overwrites.
	require.NoError(t, store.Alias(ctx, identityID, "user-2"))

	userID, err := store.Resolve(ctx, identityID)
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)

	userID, err = store.Resolve(ctx, "x-missing")
	require.NoError(t, err)
	assert.Empty(t, userID)
}
