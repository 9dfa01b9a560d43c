package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

const pgUniqueViolation = "23505"

type referralRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.ReferralRepository = (*referralRepository)(nil)

// NewReferralRepository creates the referral code store. Global code
// uniqueness and one-code-per-owner both rest on database
// constraints, so racing writers collapse to a clean collision error.
func NewReferralRepository(db *DB, baseLogger *zerolog.Logger) ports.ReferralRepository {
	return &referralRepository{
		db:  db,
		log: baseLogger.With().Str("component", "referral_repo").Logger(),
	}
}

func (r *referralRepository) Create(ctx context.Context, code *domain.ReferralCode) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO referral_codes (code, owner_id, created_at, used_count)
		VALUES ($1, $2, $3, $4)
	`, code.Code, code.OwnerID, code.CreatedAt, code.UsedCount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrCodeExists
		}
		r.log.Error().Err(err).Str("owner_id", code.OwnerID).Msg("Failed to insert referral code")
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *referralRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.ReferralCode, error) {
	return r.scanOne(ctx,
		`SELECT code, owner_id, created_at, used_count FROM referral_codes WHERE owner_id = $1`, ownerID)
}

func (r *referralRepository) GetByCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	return r.scanOne(ctx,
		`SELECT code, owner_id, created_at, used_count FROM referral_codes WHERE code = $1`, code)
}

func (r *referralRepository) scanOne(ctx context.Context, query string, arg any) (*domain.ReferralCode, error) {
	var rec domain.ReferralCode
	err := r.db.pool.QueryRow(ctx, query, arg).Scan(&rec.Code, &rec.OwnerID, &rec.CreatedAt, &rec.UsedCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error().Err(err).Msg("Failed to scan referral code")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &rec, nil
}

func (r *referralRepository) RedeemedCode(ctx context.Context, redeemerID string) (string, error) {
	var code string
	err := r.db.pool.QueryRow(ctx,
		`SELECT code FROM referral_redemptions WHERE redeemer_id = $1`, redeemerID,
	).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return code, nil
}

func (r *referralRepository) MarkRedeemed(ctx context.Context, code, redeemerID string) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	// The redeemer_id primary key makes the insert first-write-wins;
	// a replay of the same pair lands on the conflict path and must
	// not bump used_count again.
	tag, err := tx.Exec(ctx, `
		INSERT INTO referral_redemptions (redeemer_id, code) VALUES ($1, $2)
		ON CONFLICT (redeemer_id) DO NOTHING
	`, redeemerID, code)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		var existing string
		if err := tx.QueryRow(ctx,
			`SELECT code FROM referral_redemptions WHERE redeemer_id = $1`, redeemerID,
		).Scan(&existing); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		if existing != code {
			return domain.ErrAlreadyRedeemed
		}
		return nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE referral_codes SET used_count = used_count + 1 WHERE code = $1
	`, code); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	r.log.Info().Str("redeemer_id", redeemerID).Msg("Redemption recorded")
	return nil
}
