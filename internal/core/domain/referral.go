package domain

import "time"

// ReferralCode is the unique token issued once per user near protocol
// completion. Exactly one code exists per owner; a code is never
// redeemable by its own owner, and each redeemer may redeem at most
// one code ever.
type ReferralCode struct {
	Code      string    `json:"code"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UsedCount int       `json:"usedCount"`
}

// ChannelCode is a one-shot verification code issued by the external
// channel's bot. TelegramID is zero when the issuing side did not
// record one.
type ChannelCode struct {
	Code       string
	TelegramID int64
	ClaimedBy  *string
	IssuedAt   time.Time
}
