package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "smartid/pkg/domain-errors"
)

// TestParseIdentityID_Invariants validates the parsing invariant:
// "record IDs must be valid, non-empty, non-nil UUIDs"
func TestParseIdentityID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseIdentityID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseIdentityID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseRegistryID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		u := uuid.New()
		got, err := ParseIdentityID(u.String())
		require.NoError(t, err)
		assert.Equal(t, IdentityID(u), got)
	})
}

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    AccountID
		wantErr bool
	}{
		{"lowercase address", "0x627306090abab3a6e1400e9345bc60c78a8bef57", "0x627306090abab3a6e1400e9345bc60c78a8bef57", false},
		{"mixed case is canonicalized", "0x627306090ABaB3A6e1400e9345bC60c78a8BEf57", "0x627306090abab3a6e1400e9345bc60c78a8bef57", false},
		{"surrounding whitespace", "  0xf17f52151ebef6c7334fad080c5704d77216b732 ", "0xf17f52151ebef6c7334fad080c5704d77216b732", false},
		{"empty", "", "", true},
		{"missing prefix", "627306090abab3a6e1400e9345bc60c78a8bef57", "", true},
		{"too short", "0x1234", "", true},
		{"not hex", "0xzz7306090abab3a6e1400e9345bc60c78a8bef57", "", true},
		{"zero address", "0x" + strings.Repeat("0", 40), "", true},
		{"SQL injection attempt", "'; DROP TABLE identities;--", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAccountID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHash(t *testing.T) {
	t.Run("round-trips through its string form", func(t *testing.T) {
		h := HashOf([]byte("employment:acme"))
		parsed, err := ParseHash(h.String())
		require.NoError(t, err)
		assert.Equal(t, h, parsed)
	})

	t.Run("keccak of empty input", func(t *testing.T) {
		assert.Equal(t,
			"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
			HashOf(nil).String())
	})

	t.Run("rejects wrong width", func(t *testing.T) {
		_, err := ParseHash("0x1234")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unmarshals from JSON text", func(t *testing.T) {
		var h Hash
		require.NoError(t, h.UnmarshalText([]byte("0xca02b2202ffaacbd499438ef6d594a48f7a7631b60405ec8f30a0d7c096d54d5")))
		assert.False(t, h.IsZero())
	})
}

func TestHeightSince(t *testing.T) {
	assert.Equal(t, uint64(20), Height(120).Since(100))
	assert.Equal(t, uint64(0), Height(100).Since(100))
	assert.Equal(t, uint64(0), Height(5).Since(9))
}
