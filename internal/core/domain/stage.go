package domain

import "fmt"

// Stage is one position in the fixed, ordered onboarding sequence.
// Values are persisted as their integer form; anything outside the
// enumeration read back from the store is treated as corruption.
type Stage int

const (
	StageIntro Stage = iota + 1
	StagePostTrigger
	StageConnectingIdentity
	StageAuthenticated
	StageMandates
	StageChannelRedirect
	StageChannelCode
	StageWalletSubmit
	StageReferenceCode
	StageComplete
)

// InitialStage is where every new (or reset) session starts.
func InitialStage() Stage { return StageIntro }

// TerminalStage is the free-form stage with no further gating.
func TerminalStage() Stage { return StageComplete }

// Valid reports whether s is a member of the enumeration.
func (s Stage) Valid() bool {
	return s >= StageIntro && s <= StageComplete
}

// Next returns the stage one position forward. The terminal stage
// returns itself.
func (s Stage) Next() Stage {
	if s >= StageComplete {
		return StageComplete
	}
	return s + 1
}

// AtLeast reports whether s is at or past other in protocol order.
func (s Stage) AtLeast(other Stage) bool { return s >= other }

func (s Stage) String() string {
	switch s {
	case StageIntro:
		return "intro"
	case StagePostTrigger:
		return "post_trigger"
	case StageConnectingIdentity:
		return "connecting_identity"
	case StageAuthenticated:
		return "authenticated"
	case StageMandates:
		return "mandates"
	case StageChannelRedirect:
		return "channel_redirect"
	case StageChannelCode:
		return "channel_code"
	case StageWalletSubmit:
		return "wallet_submit"
	case StageReferenceCode:
		return "reference_code"
	case StageComplete:
		return "complete"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}
