package chain

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

// Confirmer runs both family checks concurrently and reports verified
// only when both individually verify. A single-family failure
// surfaces that family's specific error, not a generic one.
type Confirmer struct {
	solana ports.LedgerClient
	near   ports.LedgerClient
}

var _ ports.TransferConfirmer = (*Confirmer)(nil)

// NewConfirmer combines the two ledger clients.
func NewConfirmer(solana, near ports.LedgerClient) *Confirmer {
	return &Confirmer{solana: solana, near: near}
}

// ConfirmTransfer issues both ledger queries concurrently and awaits
// them jointly. The first family error wins; a caller that gives up
// via ctx simply never persists a result.
func (c *Confirmer) ConfirmTransfer(ctx context.Context, sourceA, sourceB string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.solana.ConfirmTransfer(gctx, sourceA) })
	g.Go(func() error { return c.near.ConfirmTransfer(gctx, sourceB) })
	return g.Wait()
}
