package engine

import (
	"errors"
	"fmt"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
)

// Verification carries the results of any external checks the
// orchestrator ran for the current message. The engine itself never
// performs I/O; it only judges the results.
type Verification struct {
	// AlreadyAuthenticated is set when the session carries an identity.
	AlreadyAuthenticated bool

	// Channel code check (verify <code>).
	CodeChecked bool
	CodeErr     error

	// Wallet submission: local syntax results first, then the joint
	// on-chain confirmation.
	AddrAErr        error
	AddrBErr        error
	TransferChecked bool
	TransferErr     error

	// Referral issuance/redemption results.
	ReferralCode string
	ReferralErr  error
	RedeemErr    error

	// GeneratedReply is the text generator's output at the terminal
	// stage.
	GeneratedReply string
}

// EffectKind enumerates side effects the orchestrator applies after a
// decision.
type EffectKind int

const (
	EffectRedeemCode EffectKind = iota + 1
	EffectMarkMandates
)

// Effect is one side effect with its argument.
type Effect struct {
	Kind EffectKind
	Arg  string
}

// Decision is the engine's verdict on one message: an optional next
// stage, the outward response, and side effects to apply. A nil Next
// means the stage is unchanged.
type Decision struct {
	Next       *domain.Stage
	Response   string
	AutoScroll bool
	Event      string
	Effects    []Effect
}

func advance(to domain.Stage, response string) Decision {
	return Decision{Next: &to, Response: response, AutoScroll: true}
}

func stay(response string) Decision {
	return Decision{Response: response}
}

// Decide is the pure transition function. Re-applying an advancing
// command after its transition has been committed falls through to
// the next stage's table and cannot double-advance: legality is
// judged against the current stage, not message history.
func Decide(current domain.Stage, cmd Command, v Verification) Decision {
	switch current {
	case domain.StageIntro:
		if cmd.Kind == CmdTrigger {
			return advance(domain.StagePostTrigger, Prompt(domain.StagePostTrigger))
		}

	case domain.StagePostTrigger:
		if cmd.Kind == CmdConnect {
			if v.AlreadyAuthenticated {
				return advance(domain.StageAuthenticated, Prompt(domain.StageAuthenticated))
			}
			// The stage holds until the provider callback confirms;
			// the client is signalled to begin the handshake.
			return Decision{
				Response: "Opening identity connection. Complete the handshake in the popup window.",
				Event:    "identity_connect",
			}
		}

	case domain.StageConnectingIdentity:
		// No input-driven transition; only the out-of-band identity
		// confirmation moves this stage. Re-sending the connect
		// command re-issues the handshake signal.
		if cmd.Kind == CmdConnect {
			return Decision{
				Response: "Opening identity connection. Complete the handshake in the popup window.",
				Event:    "identity_connect",
			}
		}
		return stay(filler(domain.StageConnectingIdentity))

	case domain.StageAuthenticated:
		if cmd.Kind == CmdMandates {
			return advance(domain.StageMandates, Prompt(domain.StageMandates))
		}

	case domain.StageMandates:
		switch cmd.Kind {
		case CmdMandatesComplete:
			d := advance(domain.StageChannelRedirect, "Mandates recorded. "+Prompt(domain.StageChannelRedirect))
			d.Effects = append(d.Effects, Effect{Kind: EffectMarkMandates})
			return d
		case CmdSkip:
			return advance(domain.StageChannelRedirect, "Mandates skipped. "+Prompt(domain.StageChannelRedirect))
		}

	case domain.StageChannelRedirect:
		switch cmd.Kind {
		case CmdJoinChannel:
			d := advance(domain.StageChannelCode, "Channel door opened. "+Prompt(domain.StageChannelCode))
			d.Event = "open_channel"
			return d
		case CmdSkip:
			return advance(domain.StageChannelCode, "Channel skipped. "+Prompt(domain.StageChannelCode))
		}

	case domain.StageChannelCode:
		switch cmd.Kind {
		case CmdVerifyCode:
			if !v.CodeChecked {
				break
			}
			if v.CodeErr == nil {
				return advance(domain.StageWalletSubmit, "Code verified. "+Prompt(domain.StageWalletSubmit))
			}
			switch {
			case errors.Is(v.CodeErr, domain.ErrCodeNotFound):
				return stay("That code is not recognized. Check it and try again.")
			case errors.Is(v.CodeErr, domain.ErrCodeClaimed):
				return stay("That code has already been used by someone else.")
			default:
				return stay("Code verification failed. Try again.")
			}
		case CmdSkip:
			return advance(domain.StageWalletSubmit, "Verification skipped. "+Prompt(domain.StageWalletSubmit))
		}

	case domain.StageWalletSubmit:
		switch cmd.Kind {
		case CmdWallet:
			if v.AddrAErr != nil {
				return stay(v.AddrAErr.Error())
			}
			if v.AddrBErr != nil {
				return stay(v.AddrBErr.Error())
			}
			if !v.TransferChecked {
				break
			}
			if v.TransferErr != nil {
				return stay(v.TransferErr.Error())
			}
			return advance(domain.StageReferenceCode, "Transfers confirmed. "+Prompt(domain.StageReferenceCode))
		case CmdSkip:
			return advance(domain.StageReferenceCode, "Wallet skipped. "+Prompt(domain.StageReferenceCode))
		}

	case domain.StageReferenceCode:
		switch cmd.Kind {
		case CmdGenerateCode:
			if errors.Is(v.ReferralErr, domain.ErrRateLimited) {
				return stay("Too many code requests. Wait a while and try again.")
			}
			if v.ReferralCode != "" {
				return advance(domain.StageComplete,
					fmt.Sprintf("Your referral code: %s. Guard it. %s", v.ReferralCode, Prompt(domain.StageComplete)))
			}
		case CmdSubmitCode:
			switch {
			case v.RedeemErr == nil:
				d := advance(domain.StageComplete, "Code accepted. "+Prompt(domain.StageComplete))
				if len(cmd.Args) > 0 {
					d.Effects = append(d.Effects, Effect{Kind: EffectRedeemCode, Arg: cmd.Args[0]})
				}
				return d
			case errors.Is(v.RedeemErr, domain.ErrSelfRedemption):
				return stay("You cannot redeem your own code.")
			case errors.Is(v.RedeemErr, domain.ErrAlreadyRedeemed):
				return stay("You have already redeemed a code.")
			case errors.Is(v.RedeemErr, domain.ErrCodeNotFound):
				return stay("That referral code does not exist.")
			default:
				return stay("Code submission failed. Try again.")
			}
		case CmdSkip:
			return advance(domain.StageComplete, "Code skipped. "+Prompt(domain.StageComplete))
		}

	case domain.StageComplete:
		// Terminal: everything routes to the text generator.
		return stay(v.GeneratedReply)
	}

	return stay(filler(current))
}
