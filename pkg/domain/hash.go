package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "smartid/pkg/domain-errors"
)

// HashSize is the byte length of claim, endorsement and contract hashes.
const HashSize = 32

// Hash is a fixed-width content hash. Attributes, endorsements and registry
// entries are all identified solely by a Hash.
type Hash [HashSize]byte

// HashOf returns the Keccak-256 digest of data, the same digest the hosting
// ledger uses for content addressing.
func HashOf(data []byte) Hash {
	var h Hash
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	d.Sum(h[:0])
	return h
}

// ParseHash parses a 0x-prefixed 64-digit hex string.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	raw, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok {
		return Hash{}, dErrors.New(dErrors.CodeInvalidInput, "hash must be 0x-prefixed")
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return Hash{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "hash must be hex")
	}
	if len(b) != HashSize {
		return Hash{}, dErrors.New(dErrors.CodeInvalidInput, "hash must be 32 bytes")
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// HashFromBytes copies a 32-byte slice into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	if len(b) != HashSize {
		return Hash{}, dErrors.New(dErrors.CodeInvalidInput, "hash must be 32 bytes")
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
