package referral

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

const uniquenessAttempts = 3

// Issuer generates and validates referral codes. Generation is
// rate-limited per owner and idempotent: an owner who already holds a
// code gets the same code back.
type Issuer struct {
	repo    ports.ReferralRepository
	log     zerolog.Logger
	now     func() time.Time
	perHour int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewIssuer creates a referral issuer. perHour bounds generations per
// rolling hour per owner.
func NewIssuer(repo ports.ReferralRepository, perHour int, baseLogger *zerolog.Logger) *Issuer {
	return &Issuer{
		repo:     repo,
		log:      baseLogger.With().Str("component", "referral_issuer").Logger(),
		now:      time.Now,
		perHour:  perHour,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (i *Issuer) limiter(ownerID string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	lim, ok := i.limiters[ownerID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Hour/time.Duration(i.perHour)), i.perHour)
		i.limiters[ownerID] = lim
	}
	return lim
}

// Get returns the owner's existing code, or "" when none exists.
func (i *Issuer) Get(ctx context.Context, ownerID string) (string, error) {
	rec, err := i.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("referral lookup: %w", err)
	}
	if rec == nil {
		return "", nil
	}
	return rec.Code, nil
}

// Generate returns the owner's code, creating one if needed. The
// existing-code check runs first so a repeat call never issues two
// codes for one owner.
func (i *Issuer) Generate(ctx context.Context, ownerID, displayName string) (string, error) {
	if existing, err := i.Get(ctx, ownerID); err != nil {
		return "", err
	} else if existing != "" {
		return existing, nil
	}

	if !i.limiter(ownerID).Allow() {
		i.log.Warn().Str("owner_id", ownerID).Msg("Referral generation rate limited")
		return "", domain.ErrRateLimited
	}

	for attempt := 1; attempt <= uniquenessAttempts; attempt++ {
		code, err := i.buildCandidate(displayName)
		if err != nil {
			return "", err
		}

		rec := &domain.ReferralCode{
			Code:      code,
			OwnerID:   ownerID,
			CreatedAt: i.now(),
		}
		err = i.repo.Create(ctx, rec)
		if err == nil {
			i.log.Info().Str("owner_id", ownerID).Int("attempt", attempt).Msg("Referral code issued")
			return code, nil
		}
		if errors.Is(err, domain.ErrCodeExists) {
			i.log.Warn().Str("owner_id", ownerID).Int("attempt", attempt).Msg("Referral code collision, retrying")
			continue
		}
		return "", fmt.Errorf("referral insert: %w", err)
	}

	i.log.Error().Str("owner_id", ownerID).Msg("Referral generation exhausted retry budget")
	return "", domain.ErrCodeSpaceExhausted
}

// buildCandidate assembles prefix-entropy-timestamp. The prefix is a
// sanitized 3-character slice of the display name, the middle is
// crypto-random, and the tail is an obfuscated creation time.
func (i *Issuer) buildCandidate(displayName string) (string, error) {
	prefix := sanitizePrefix(displayName)

	raw := make([]byte, 5)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("referral entropy: %w", err)
	}
	entropy := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)

	ts := strings.ToUpper(strconv.FormatInt(i.now().UnixMilli()^0x5AA5A55A, 36))

	return fmt.Sprintf("%s-%s-%s", prefix, entropy, ts), nil
}

// sanitizePrefix keeps the first three alphanumeric runes of the
// display name, uppercased, padded with 'X'.
func sanitizePrefix(displayName string) string {
	var b strings.Builder
	for _, r := range displayName {
		if unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() == 3 {
				break
			}
		}
	}
	for b.Len() < 3 {
		b.WriteByte('X')
	}
	return b.String()
}

// Validate checks whether redeemerID may redeem code. It fails when
// the code is unknown, owned by the redeemer, or the redeemer has
// redeemed a different code before. Re-validating the code a redeemer
// already holds passes, so a redemption whose acknowledgement was lost
// can be replayed.
func (i *Issuer) Validate(ctx context.Context, code, redeemerID string) error {
	rec, err := i.repo.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("referral lookup: %w", err)
	}
	if rec == nil {
		return domain.ErrCodeNotFound
	}
	if rec.OwnerID == redeemerID {
		return domain.ErrSelfRedemption
	}
	redeemed, err := i.repo.RedeemedCode(ctx, redeemerID)
	if err != nil {
		return fmt.Errorf("redemption lookup: %w", err)
	}
	if redeemed != "" && redeemed != code {
		return domain.ErrAlreadyRedeemed
	}
	return nil
}

// Redeem validates and records the redemption. Replaying the same
// (code, redeemer) pair succeeds without counting twice.
func (i *Issuer) Redeem(ctx context.Context, code, redeemerID string) error {
	if err := i.Validate(ctx, code, redeemerID); err != nil {
		return err
	}
	if err := i.repo.MarkRedeemed(ctx, code, redeemerID); err != nil {
		return fmt.Errorf("mark redeemed: %w", err)
	}
	i.log.Info().Str("redeemer_id", redeemerID).Msg("Referral code redeemed")
	return nil
}
