package llm

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerSigner mints short-lived bearer tokens for providers that
// authenticate with a signed JWT instead of a static API key (several
// enterprise gateways in front of an OpenAI-compatible endpoint do
// this). It keeps a refresh buffer so a token is never handed to an
// outbound call within refreshBefore of expiring.
type BearerSigner struct {
	secret        []byte
	issuer        string
	ttl           time.Duration
	refreshBefore time.Duration

	cached    string
	expiresAt time.Time
}

// NewBearerSigner builds a signer for the given issuer/secret/ttl,
// refreshing tokens refreshBefore their expiry.
func NewBearerSigner(issuer string, secret []byte, ttl, refreshBefore time.Duration) *BearerSigner {
	return &BearerSigner{secret: secret, issuer: issuer, ttl: ttl, refreshBefore: refreshBefore}
}

// Token returns a valid bearer token, minting a new one if the cached
// one is within refreshBefore of expiring.
func (s *BearerSigner) Token() (string, error) {
	if s.cached != "" && time.Until(s.expiresAt) > s.refreshBefore {
		return s.cached, nil
	}
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign bearer token: %w", err)
	}
	s.cached = signed
	s.expiresAt = expiresAt
	return signed, nil
}
