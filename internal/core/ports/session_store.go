package ports

import (
	"context"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
)

// SessionStore defines durable key-value persistence of one session
// record per user identifier, with expiry and refresh-on-read.
//
// Implementations do not serialize writers; callers tolerate
// last-writer-wins and keep transitions idempotent at the
// current-stage check instead of locking.
type SessionStore interface {
	// Get returns the session for userID, or (nil, nil) when absent.
	// A record older than the expiry window is treated as absent and
	// deleted eagerly; a successful read refreshes the TTL. Store
	// unavailability is reported as domain.ErrStoreUnavailable, never
	// as absence.
	Get(ctx context.Context, userID string) (*domain.Session, error)

	// Put writes the session as a full replacement and resets its TTL.
	Put(ctx context.Context, userID string, session *domain.Session) error

	// Delete removes the session. Deleting an absent key is a no-op.
	Delete(ctx context.Context, userID string) error

	// Alias records a secondary lookup from the identity-provider's id
	// to the session's user identifier.
	Alias(ctx context.Context, identityID, userID string) error

	// Resolve returns the user identifier aliased under identityID, or
	// "" when no alias exists.
	Resolve(ctx context.Context, identityID string) (string, error)
}
