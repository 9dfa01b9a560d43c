package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// Address syntax is validated locally before any on-chain check.
// Each rule failure carries its own corrective message because the
// engine surfaces these texts verbatim to the user.

var nearSuffixes = []string{".near", ".testnet"}

// ValidateSolanaAddress checks family-A syntax: 32-44 characters of
// the base58 alphabet (which excludes the ambiguous 0, O, I and l).
func ValidateSolanaAddress(addr string) error {
	if len(addr) < 32 || len(addr) > 44 {
		return fmt.Errorf("invalid Solana address: must be 32-44 characters, got %d", len(addr))
	}
	if len(base58.Decode(addr)) == 0 {
		return errors.New("invalid Solana address: contains characters outside the base58 alphabet")
	}
	return nil
}

// ValidateNearAddress checks family-B syntax: a recognized network
// suffix and a 2-64 character username of lowercase letters, digits
// and interior hyphens.
func ValidateNearAddress(addr string) error {
	var username string
	for _, suffix := range nearSuffixes {
		if strings.HasSuffix(addr, suffix) {
			username = strings.TrimSuffix(addr, suffix)
			break
		}
	}
	if username == "" && !hasNearSuffix(addr) {
		return fmt.Errorf("invalid NEAR address: must end with one of %s", strings.Join(nearSuffixes, ", "))
	}

	if len(username) < 2 || len(username) > 64 {
		return fmt.Errorf("invalid NEAR address: username must be 2-64 characters, got %d", len(username))
	}
	if strings.HasPrefix(username, "-") || strings.HasSuffix(username, "-") {
		return errors.New("invalid NEAR address: username cannot start or end with a hyphen")
	}
	if strings.Contains(username, "--") {
		return errors.New("invalid NEAR address: username cannot contain consecutive hyphens")
	}
	for _, r := range username {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return fmt.Errorf("invalid NEAR address: username contains illegal character %q", r)
		}
	}
	return nil
}

func hasNearSuffix(addr string) bool {
	for _, suffix := range nearSuffixes {
		if strings.HasSuffix(addr, suffix) {
			return true
		}
	}
	return false
}
