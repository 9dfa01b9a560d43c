package engine

import "strings"

// CommandKind identifies one recognized user command.
type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdTrigger
	CmdConnect
	CmdMandates
	CmdMandatesComplete
	CmdJoinChannel
	CmdVerifyCode
	CmdWallet
	CmdGenerateCode
	CmdSubmitCode
	CmdSkip
	CmdStatus
	CmdEngage
	CmdDisengage
)

var commandNames = map[CommandKind]string{
	CmdUnknown:          "unknown",
	CmdTrigger:          "trigger",
	CmdConnect:          "connect",
	CmdMandates:         "mandates",
	CmdMandatesComplete: "mandates_complete",
	CmdJoinChannel:      "join_channel",
	CmdVerifyCode:       "verify_code",
	CmdWallet:           "wallet",
	CmdGenerateCode:     "generate_code",
	CmdSubmitCode:       "submit_code",
	CmdSkip:             "skip",
	CmdStatus:           "status",
	CmdEngage:           "engage",
	CmdDisengage:        "disengage",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is the normalized form of one inbound message. Keyword
// matching is case-insensitive; Args keep the original casing because
// addresses and codes are case-sensitive.
type Command struct {
	Kind CommandKind
	Args []string
	Raw  string
}

// Parse normalizes raw input into a Command. Whitespace is collapsed;
// unrecognized input yields CmdUnknown.
func Parse(raw string) Command {
	fields := strings.Fields(raw)
	lower := make([]string, len(fields))
	for i, f := range fields {
		lower[i] = strings.ToLower(f)
	}

	switch strings.Join(lower, " ") {
	case "join protocol":
		return Command{Kind: CmdTrigger, Raw: raw}
	case "connect x":
		return Command{Kind: CmdConnect, Raw: raw}
	case "mandates":
		return Command{Kind: CmdMandates, Raw: raw}
	case "mandates complete":
		return Command{Kind: CmdMandatesComplete, Raw: raw}
	case "join telegram":
		return Command{Kind: CmdJoinChannel, Raw: raw}
	case "generate code":
		return Command{Kind: CmdGenerateCode, Raw: raw}
	case "skip":
		return Command{Kind: CmdSkip, Raw: raw}
	case "status":
		return Command{Kind: CmdStatus, Raw: raw}
	case "engage":
		return Command{Kind: CmdEngage, Raw: raw}
	case "disengage":
		return Command{Kind: CmdDisengage, Raw: raw}
	}

	switch {
	case len(fields) == 2 && lower[0] == "verify":
		return Command{Kind: CmdVerifyCode, Args: fields[1:], Raw: raw}
	case len(fields) == 3 && lower[0] == "wallet":
		return Command{Kind: CmdWallet, Args: fields[1:], Raw: raw}
	case len(fields) == 3 && lower[0] == "submit" && lower[1] == "code":
		return Command{Kind: CmdSubmitCode, Args: fields[2:], Raw: raw}
	}

	return Command{Kind: CmdUnknown, Raw: raw}
}
