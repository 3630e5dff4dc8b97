package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

var (
	tokens  = NewService("test-signing-key", "test-issuer", "test-audience")
	account = domain.MustAccount("0x00000000000000000000000000000000000000a1")
)

func TestMint(t *testing.T) {
	signed, err := tokens.Mint(account, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := tokens.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, account.String(), claims.Subject)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestMint_RejectsZeroAccount(t *testing.T) {
	_, err := tokens.Mint("", time.Hour)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestValidate(t *testing.T) {
	t.Run("garbage token", func(t *testing.T) {
		_, err := tokens.Validate("invalid-token-string")
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	t.Run("expired token", func(t *testing.T) {
		signed, err := tokens.Mint(account, -time.Hour)
		require.NoError(t, err)

		_, err = tokens.Validate(signed)
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewService("another-key", "test-issuer", "test-audience")
		signed, err := other.Mint(account, time.Hour)
		require.NoError(t, err)

		_, err = tokens.Validate(signed)
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := NewService("test-signing-key", "test-issuer", "elsewhere")
		signed, err := other.Mint(account, time.Hour)
		require.NoError(t, err)

		_, err = tokens.Validate(signed)
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})
}

func TestCaller(t *testing.T) {
	signed, err := tokens.Mint(account, time.Hour)
	require.NoError(t, err)

	caller, err := tokens.Caller(signed)
	require.NoError(t, err)
	assert.Equal(t, account, caller)
}
