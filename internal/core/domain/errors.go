package domain

import "errors"

// Sentinel errors shared across ports and adapters. Callers match
// with errors.Is; adapters wrap these with context via fmt.Errorf.
var (
	// ErrStoreUnavailable marks infrastructure failure of the session
	// or referral store. It is distinct from "not found" so the
	// orchestrator can tell "no session yet" from "store down".
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrVerifierUnavailable marks an external verifier (identity
	// provider, ledger, channel) that could not be reached or answered
	// ambiguously. Distinct from a verification failure, which is a
	// definite "not verified".
	ErrVerifierUnavailable = errors.New("verifier unavailable")

	// ErrUnauthorized marks a caller-supplied user identifier that
	// does not match the authenticated identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited marks a referral generation attempt over the
	// rolling per-owner budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrCodeSpaceExhausted marks a referral generation that failed
	// uniqueness after its full retry budget.
	ErrCodeSpaceExhausted = errors.New("referral code generation exhausted")

	// ErrCodeExists marks a uniqueness collision on referral insert.
	ErrCodeExists = errors.New("referral code already exists")

	// ErrCodeNotFound marks an unknown referral or channel code.
	ErrCodeNotFound = errors.New("code not found")

	// ErrSelfRedemption marks an owner redeeming their own code.
	ErrSelfRedemption = errors.New("cannot redeem own code")

	// ErrAlreadyRedeemed marks a redeemer who has already redeemed a
	// code before.
	ErrAlreadyRedeemed = errors.New("already redeemed a code")

	// ErrCodeClaimed marks a channel code that was already used.
	ErrCodeClaimed = errors.New("code already claimed")
)
