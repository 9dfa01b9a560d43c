package ports

import (
	"context"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
)

// ReferralRepository defines persistence for referral codes and
// redemptions.
type ReferralRepository interface {
	// Create inserts a new code. A code collision returns
	// domain.ErrCodeExists so the issuer can retry with a fresh
	// candidate.
	Create(ctx context.Context, code *domain.ReferralCode) error

	// GetByOwner returns the owner's code, or (nil, nil) when absent.
	GetByOwner(ctx context.Context, ownerID string) (*domain.ReferralCode, error)

	// GetByCode returns the code record, or (nil, nil) when unknown.
	GetByCode(ctx context.Context, code string) (*domain.ReferralCode, error)

	// RedeemedCode returns the code redeemerID has redeemed, or ""
	// when they have never redeemed one.
	RedeemedCode(ctx context.Context, redeemerID string) (string, error)

	// MarkRedeemed records the redemption and increments the code's
	// use count. Recording the same (code, redeemer) pair again is a
	// no-op, so a caller that lost its acknowledgement can replay;
	// a redeemer already holding a different code gets
	// domain.ErrAlreadyRedeemed.
	MarkRedeemed(ctx context.Context, code, redeemerID string) error
}

// CompletionRepository persists the derived per-mandate view. It is a
// cache for UI affordances only; Session.Stage stays authoritative.
type CompletionRepository interface {
	Get(ctx context.Context, userID string) (*domain.CompletionStatus, error)
	Set(ctx context.Context, status *domain.CompletionStatus) error
}

// ChannelCodeRepository is the narrow interface to the bot-managed
// code database behind the external channel.
type ChannelCodeRepository interface {
	// Claim marks the code as used by userID and returns its record.
	// Unknown codes return domain.ErrCodeNotFound; codes claimed by a
	// different user return domain.ErrCodeClaimed. Re-claiming by the
	// same user is a no-op (idempotent re-entry).
	Claim(ctx context.Context, code, userID string) (*domain.ChannelCode, error)
}
