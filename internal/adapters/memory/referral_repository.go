package memory

import (
	"context"
	"sync"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

// ReferralRepository is the in-memory referral store for dev mode and
// tests. Uniqueness is enforced the same way the Postgres adapter's
// unique constraint does, by rejecting duplicate codes with
// domain.ErrCodeExists.
type ReferralRepository struct {
	mu          sync.RWMutex
	byCode      map[string]*domain.ReferralCode
	byOwner     map[string]*domain.ReferralCode
	redemptions map[string]string
}

var _ ports.ReferralRepository = (*ReferralRepository)(nil)

func NewReferralRepository() *ReferralRepository {
	return &ReferralRepository{
		byCode:      make(map[string]*domain.ReferralCode),
		byOwner:     make(map[string]*domain.ReferralCode),
		redemptions: make(map[string]string),
	}
}

func (r *ReferralRepository) Create(ctx context.Context, code *domain.ReferralCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byCode[code.Code]; taken {
		return domain.ErrCodeExists
	}
	if _, taken := r.byOwner[code.OwnerID]; taken {
		return domain.ErrCodeExists
	}
	cp := *code
	r.byCode[cp.Code] = &cp
	r.byOwner[cp.OwnerID] = &cp
	return nil
}

func (r *ReferralRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.ReferralCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byOwner[ownerID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *ReferralRepository) GetByCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *ReferralRepository) RedeemedCode(ctx context.Context, redeemerID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.redemptions[redeemerID], nil
}

func (r *ReferralRepository) MarkRedeemed(ctx context.Context, code, redeemerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byCode[code]
	if !ok {
		return domain.ErrCodeNotFound
	}
	if done, taken := r.redemptions[redeemerID]; taken {
		if done == code {
			// Replay of an already-recorded redemption; do not count twice.
			return nil
		}
		return domain.ErrAlreadyRedeemed
	}
	r.redemptions[redeemerID] = code
	rec.UsedCount++
	return nil
}
