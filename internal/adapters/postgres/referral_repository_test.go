package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
)

func cleanupReferral(t *testing.T, code string) {
	t.Helper()
	if _, err := testDB.pool.Exec(context.Background(),
		"DELETE FROM referral_redemptions WHERE code = $1", code); err != nil {
		t.Logf("Warning: failed to cleanup redemptions for %s: %v", code, err)
	}
	if _, err := testDB.pool.Exec(context.Background(),
		"DELETE FROM referral_codes WHERE code = $1", code); err != nil {
		t.Logf("Warning: failed to cleanup code %s: %v", code, err)
	}
}

func TestReferralRepository_UniqueConstraints(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	repo := NewReferralRepository(db, &nopLogger)

	code := "TST-" + uuid.NewString()
	owner := "owner-" + uuid.NewString()
	defer cleanupReferral(t, code)

	require.NoError(t, repo.Create(ctx, &domain.ReferralCode{Code: code, OwnerID: owner, CreatedAt: time.Now()}))

	// Same code, different owner.
	err := repo.Create(ctx, &domain.ReferralCode{Code: code, OwnerID: "owner-other", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrCodeExists)

	// Different code, same owner.
	other := "TST-" + uuid.NewString()
	defer cleanupReferral(t, other)
	err = repo.Create(ctx, &domain.ReferralCode{Code: other, OwnerID: owner, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrCodeExists)
}

func TestReferralRepository_RedemptionFlow(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	repo := NewReferralRepository(db, &nopLogger)

	code := "TST-" + uuid.NewString()
	owner := "owner-" + uuid.NewString()
	redeemer := "redeemer-" + uuid.NewString()
	defer cleanupReferral(t, code)

	require.NoError(t, repo.Create(ctx, &domain.ReferralCode{Code: code, OwnerID: owner, CreatedAt: time.Now()}))

	redeemed, err := repo.RedeemedCode(ctx, redeemer)
	require.NoError(t, err)
	assert.Empty(t, redeemed)

	require.NoError(t, repo.MarkRedeemed(ctx, code, redeemer))

	redeemed, err = repo.RedeemedCode(ctx, redeemer)
	require.NoError(t, err)
	assert.Equal(t, code, redeemed)

	// Replaying the same pair is a no-op; a different code for the
	// same redeemer is a conflict.
	require.NoError(t, repo.MarkRedeemed(ctx, code, redeemer))
	other := "TST-" + uuid.NewString()
	defer cleanupReferral(t, other)
	require.NoError(t, repo.Create(ctx, &domain.ReferralCode{Code: other, OwnerID: "owner-" + uuid.NewString(), CreatedAt: time.Now()}))
	assert.ErrorIs(t, repo.MarkRedeemed(ctx, other, redeemer), domain.ErrAlreadyRedeemed)

	rec, err := repo.GetByCode(ctx, code)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.UsedCount, "the replay must not count twice")

	rec, err = repo.GetByOwner(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, code, rec.Code)
}

func TestChannelCodeRepository_Claim(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	nopLogger := zerolog.Nop()
	repo := NewChannelCodeRepository(db, &nopLogger)

	code := "CHN-" + uuid.NewString()
	defer func() {
		_, _ = db.pool.Exec(ctx, "DELETE FROM channel_codes WHERE code = $1", code)
	}()
	_, err := db.pool.Exec(ctx,
		"INSERT INTO channel_codes (code, telegram_id) VALUES ($1, $2)", code, int64(789))
	require.NoError(t, err)

	rec, err := repo.Claim(ctx, code, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(789), rec.TelegramID)

	// Idempotent for the claimant, spent for everyone else.
	_, err = repo.Claim(ctx, code, "user-1")
	require.NoError(t, err)
	_, err = repo.Claim(ctx, code, "user-2")
	assert.ErrorIs(t, err, domain.ErrCodeClaimed)

	_, err = repo.Claim(ctx, "CHN-missing", "user-1")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}
