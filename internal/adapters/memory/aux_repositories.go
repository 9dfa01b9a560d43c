package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

// CompletionRepository caches the derived per-mandate view in memory.
type CompletionRepository struct {
	mu       sync.RWMutex
	statuses map[string]domain.CompletionStatus
}

var _ ports.CompletionRepository = (*CompletionRepository)(nil)

func NewCompletionRepository() *CompletionRepository {
	return &CompletionRepository{statuses: make(map[string]domain.CompletionStatus)}
}

func (r *CompletionRepository) Get(ctx context.Context, userID string) (*domain.CompletionStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.statuses[userID]
	if !ok {
		return nil, nil
	}
	return &status, nil
}

func (r *CompletionRepository) Set(ctx context.Context, status *domain.CompletionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[status.UserID] = *status
	return nil
}

// ChannelCodeRepository is the in-memory bot-managed code database.
// Seed codes through Issue; claims are idempotent per user.
type ChannelCodeRepository struct {
	mu    sync.Mutex
	codes map[string]*domain.ChannelCode
}

var _ ports.ChannelCodeRepository = (*ChannelCodeRepository)(nil)

func NewChannelCodeRepository() *ChannelCodeRepository {
	return &ChannelCodeRepository{codes: make(map[string]*domain.ChannelCode)}
}

// Issue registers a code as claimable.
func (r *ChannelCodeRepository) Issue(code string, telegramID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code] = &domain.ChannelCode{Code: code, TelegramID: telegramID, IssuedAt: time.Now()}
}

func (r *ChannelCodeRepository) Claim(ctx context.Context, code, userID string) (*domain.ChannelCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.codes[code]
	if !ok {
		return nil, domain.ErrCodeNotFound
	}
	if rec.ClaimedBy != nil && *rec.ClaimedBy != userID {
		return nil, domain.ErrCodeClaimed
	}
	claimant := userID
	rec.ClaimedBy = &claimant
	cp := *rec
	return &cp, nil
}
