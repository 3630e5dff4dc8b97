package domain

import (
	"encoding/hex"
	"strings"

	dErrors "smartid/pkg/domain-errors"
)

// AccountSize is the byte length of an account address.
const AccountSize = 20

// AccountID is a ledger account address in canonical form: "0x" followed by
// forty lowercase hex digits. The zero value is the absent account.
type AccountID string

// ParseAccountID validates and canonicalizes an account address.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account is required")
	}
	raw, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account must be 0x-prefixed")
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "account must be hex")
	}
	if len(b) != AccountSize {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account must be 20 bytes")
	}
	if isZero(b) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account cannot be the zero address")
	}
	return AccountID("0x" + raw), nil
}

// MustAccount parses s and panics on error. Intended for tests and fixtures.
func MustAccount(s string) AccountID {
	a, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a AccountID) String() string { return string(a) }

func (a AccountID) IsZero() bool { return a == "" }

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
