package ports

import "context"

// Identity is the verified result of an identity-provider session
// check: a stable provider id, a display handle, and an opaque bearer
// credential. The credential is never parsed locally.
type Identity struct {
	ID     string
	Handle string
	Token  string
}

// IdentityVerifier checks an opaque provider session handle.
// An absent session is an expected outcome, not an error: it returns
// (nil, nil). Any ambiguity fails closed as not verified.
type IdentityVerifier interface {
	Verify(ctx context.Context, sessionHandle string) (*Identity, error)
}

// LedgerClient confirms a transfer from the claimed source address to
// the configured destination on one address family's ledger. A nil
// return means verified; a non-nil error carries that family's
// specific failure text.
type LedgerClient interface {
	ConfirmTransfer(ctx context.Context, source string) error
}

// TransferConfirmer runs both family checks concurrently and is
// verified only if both individually verify.
type TransferConfirmer interface {
	ConfirmTransfer(ctx context.Context, sourceA, sourceB string) error
}

// ChannelVerifier validates a code issued by the external messaging
// channel. A nil return means verified.
type ChannelVerifier interface {
	VerifyCode(ctx context.Context, userID, code string) error
}

// TextGenerator produces free-form replies for the terminal stage.
type TextGenerator interface {
	Reply(ctx context.Context, userID, message string) (string, error)
}
