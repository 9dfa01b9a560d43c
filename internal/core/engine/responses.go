package engine

import (
	"math/rand"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
)

// prompts are the canonical per-stage instructions, returned on load
// and after a reset.
var prompts = map[domain.Stage]string{
	domain.StageIntro:              "SIGNAL DETECTED. Type 'join protocol' to begin.",
	domain.StagePostTrigger:        "Protocol engaged. Type 'connect x' to link your identity.",
	domain.StageConnectingIdentity: "Identity link in flight. Complete the connection in the popup window.",
	domain.StageAuthenticated:      "Identity confirmed. Type 'mandates' to receive your mandates.",
	domain.StageMandates:           "Complete your mandates, then type 'mandates complete'. Type 'skip' to pass.",
	domain.StageChannelRedirect:    "Type 'join telegram' to join the channel, or 'skip' to pass.",
	domain.StageChannelCode:        "Type 'verify <code>' with the code the channel issued, or 'skip' to pass.",
	domain.StageWalletSubmit:       "Type 'wallet <solana-address> <near-address>', or 'skip' to pass.",
	domain.StageReferenceCode:      "Type 'generate code' for your referral code, 'submit code <code>' to redeem one, or 'skip'.",
	domain.StageComplete:           "Protocol complete. The terminal is yours.",
}

// fillers are the fixed per-stage response sets for unrecognized
// input. Selection is uniformly random; this is presentation only,
// never protocol state.
var fillers = map[domain.Stage][]string{
	domain.StageIntro: {
		"The signal does not answer to that. Type 'join protocol'.",
		"Static. Only 'join protocol' cuts through.",
		"Unrecognized transmission. The protocol waits for 'join protocol'.",
	},
	domain.StagePostTrigger: {
		"The protocol requires an identity. Type 'connect x'.",
		"No identity, no passage. Type 'connect x'.",
		"You are engaged but unlinked. Type 'connect x'.",
	},
	domain.StageConnectingIdentity: {
		"Handshake in progress. Finish the connection in the popup.",
		"The link is still forming. Complete the identity connection first.",
	},
	domain.StageAuthenticated: {
		"Your identity is known. Type 'mandates' to proceed.",
		"The protocol recognizes you. 'mandates' is the word.",
	},
	domain.StageMandates: {
		"The mandates remain. Type 'mandates complete' when done, or 'skip'.",
		"Unfinished business. 'mandates complete' or 'skip'.",
	},
	domain.StageChannelRedirect: {
		"The channel awaits. 'join telegram' or 'skip'.",
		"One door remains here. 'join telegram' or 'skip'.",
	},
	domain.StageChannelCode: {
		"The channel issued you a code. 'verify <code>' or 'skip'.",
		"No code, no proof. 'verify <code>' or 'skip'.",
	},
	domain.StageWalletSubmit: {
		"Two addresses, one command: 'wallet <solana-address> <near-address>'. Or 'skip'.",
		"The ledgers are listening. 'wallet <solana-address> <near-address>', or 'skip'.",
	},
	domain.StageReferenceCode: {
		"Almost through. 'generate code', 'submit code <code>', or 'skip'.",
		"One token left. 'generate code', 'submit code <code>', or 'skip'.",
	},
}

// Prompt returns the canonical instruction for a stage.
func Prompt(stage domain.Stage) string {
	if p, ok := prompts[stage]; ok {
		return p
	}
	return prompts[domain.StageIntro]
}

// filler picks one stage-appropriate response for unrecognized input.
func filler(stage domain.Stage) string {
	set, ok := fillers[stage]
	if !ok || len(set) == 0 {
		return Prompt(stage)
	}
	return set[rand.Intn(len(set))]
}
