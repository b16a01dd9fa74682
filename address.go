package greenroom

import (
	"fmt"
	"strings"
)

// NormalizeAddress trims and lowercases a wallet address and checks its
// shape. The canonical form is "0x" followed by 40 hex digits.
func NormalizeAddress(address string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(address))
	if !ValidAddress(a) {
		return "", fmt.Errorf("normalize address %q: %w", address, ErrInvalidAddress)
	}
	return a, nil
}

// ValidAddress reports whether address already has the canonical wallet
// shape, ignoring case.
func ValidAddress(address string) bool {
	if len(address) != 42 {
		return false
	}
	if address[0] != '0' || (address[1] != 'x' && address[1] != 'X') {
		return false
	}
	for i := 2; i < len(address); i++ {
		c := address[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// SameAddress compares two wallet addresses, ignoring case and surrounding
// whitespace.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// normalizeAddressList canonicalizes a caller-supplied address roster:
// trim, lowercase, drop malformed entries, dedupe. First-appearance order
// is preserved.
func normalizeAddressList(addresses []string) []string {
	out := make([]string, 0, len(addresses))
	seen := make(map[string]bool, len(addresses))
	for _, raw := range addresses {
		a, err := NormalizeAddress(raw)
		if err != nil || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
