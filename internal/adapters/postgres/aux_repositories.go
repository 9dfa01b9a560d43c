package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

type completionRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.CompletionRepository = (*completionRepository)(nil)

// NewCompletionRepository persists the derived per-mandate view.
func NewCompletionRepository(db *DB, baseLogger *zerolog.Logger) ports.CompletionRepository {
	return &completionRepository{
		db:  db,
		log: baseLogger.With().Str("component", "completion_repo").Logger(),
	}
}

func (r *completionRepository) Get(ctx context.Context, userID string) (*domain.CompletionStatus, error) {
	var status domain.CompletionStatus
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, followed, liked, reposted, current_step
		FROM completion_status WHERE user_id = $1
	`, userID).Scan(&status.UserID, &status.Followed, &status.Liked, &status.Reposted, &status.CurrentStep)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &status, nil
}

func (r *completionRepository) Set(ctx context.Context, status *domain.CompletionStatus) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO completion_status (user_id, followed, liked, reposted, current_step)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			followed = EXCLUDED.followed,
			liked = EXCLUDED.liked,
			reposted = EXCLUDED.reposted,
			current_step = EXCLUDED.current_step
	`, status.UserID, status.Followed, status.Liked, status.Reposted, status.CurrentStep)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", status.UserID).Msg("Failed to write completion status")
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

type channelCodeRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.ChannelCodeRepository = (*channelCodeRepository)(nil)

// NewChannelCodeRepository reads the bot-managed channel code table.
func NewChannelCodeRepository(db *DB, baseLogger *zerolog.Logger) ports.ChannelCodeRepository {
	return &channelCodeRepository{
		db:  db,
		log: baseLogger.With().Str("component", "channel_code_repo").Logger(),
	}
}

// Claim marks the code as used by userID. The conditional UPDATE
// keeps racing claimants from both succeeding; re-claiming by the
// same user stays a no-op.
func (r *channelCodeRepository) Claim(ctx context.Context, code, userID string) (*domain.ChannelCode, error) {
	var rec domain.ChannelCode
	err := r.db.pool.QueryRow(ctx, `
		UPDATE channel_codes
		SET claimed_by = $2
		WHERE code = $1 AND (claimed_by IS NULL OR claimed_by = $2)
		RETURNING code, telegram_id, claimed_by, issued_at
	`, code, userID).Scan(&rec.Code, &rec.TelegramID, &rec.ClaimedBy, &rec.IssuedAt)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.Error().Err(err).Msg("Failed to claim channel code")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	// No row updated: either the code is unknown or someone else
	// claimed it.
	var exists bool
	if err := r.db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM channel_codes WHERE code = $1)`, code,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, domain.ErrCodeNotFound
	}
	return nil, domain.ErrCodeClaimed
}
