// Package token issues and verifies the bearer tokens that bind an HTTP
// request to a ledger account. The token subject is the account address.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

// Claims are the JWT claims carried by a caller token.
type Claims struct {
	jwt.RegisteredClaims
}

// Service handles token creation and validation with a shared HMAC key.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for issuing tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(signingKey, issuer, audience string, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mint signs a token asserting that the bearer controls account.
func (s *Service) Mint(account domain.AccountID, expiresIn time.Duration) (string, error) {
	if account.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account is required")
	}
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// Validate parses and verifies a token.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid token claims")
	}
	return claims, nil
}

// Caller validates a token and returns the account it speaks for.
func (s *Service) Caller(tokenString string) (domain.AccountID, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return "", err
	}
	account, err := domain.ParseAccountID(claims.Subject)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthenticated, "token subject is not an account")
	}
	return account, nil
}
