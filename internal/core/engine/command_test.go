package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_Keywords(t *testing.T) {
	testCases := []struct {
		input    string
		expected CommandKind
	}{
		{"join protocol", CmdTrigger},
		{"JOIN PROTOCOL", CmdTrigger},
		{"  join   protocol  ", CmdTrigger},
		{"connect x", CmdConnect},
		{"Connect X", CmdConnect},
		{"mandates", CmdMandates},
		{"mandates complete", CmdMandatesComplete},
		{"join telegram", CmdJoinChannel},
		{"generate code", CmdGenerateCode},
		{"skip", CmdSkip},
		{"status", CmdStatus},
		{"engage", CmdEngage},
		{"disengage", CmdDisengage},
		{"", CmdUnknown},
		{"join", CmdUnknown},
		{"protocol join", CmdUnknown},
		{"wallet onlyone", CmdUnknown},
		{"verify", CmdUnknown},
		{"verify a b", CmdUnknown},
	}

	for _, tc := range testCases {
		cmd := Parse(tc.input)
		assert.Equal(t, tc.expected, cmd.Kind, "input %q", tc.input)
		assert.Equal(t, tc.input, cmd.Raw)
	}
}

func TestParse_ArgsKeepCasing(t *testing.T) {
	// Keywords are case-insensitive but codes and addresses are not.
	cmd := Parse("VERIFY AbC123")
	assert.Equal(t, CmdVerifyCode, cmd.Kind)
	assert.Equal(t, []string{"AbC123"}, cmd.Args)

	cmd = Parse("Wallet 11111111111111111111111111111111 alice.near")
	assert.Equal(t, CmdWallet, cmd.Kind)
	assert.Equal(t, []string{"11111111111111111111111111111111", "alice.near"}, cmd.Args)

	cmd = Parse("submit code ABC-DEF-GHI")
	assert.Equal(t, CmdSubmitCode, cmd.Kind)
	assert.Equal(t, []string{"ABC-DEF-GHI"}, cmd.Args)
}

func TestCommandKind_String(t *testing.T) {
	assert.Equal(t, "trigger", CmdTrigger.String())
	assert.Equal(t, "unknown", CmdUnknown.String())
	assert.Equal(t, "unknown", CommandKind(99).String())
}
