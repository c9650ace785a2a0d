// Package statetoken issues and verifies the signed state tokens that bind
// a tenant to one OAuth authorization attempt.
//
// Tokens are HS256 JWTs carrying provider, account key, connect mode and a
// random nonce, valid for a short redirect round-trip window. They are
// never persisted; expiry is the only server-side lifecycle. Verification
// is constant-shape: any failure (malformed token, wrong signature,
// expiry, provider mismatch) yields nil, so the redirect target never
// learns which check failed.
package statetoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// TTL is the validity window for one authorization round-trip.
const TTL = 10 * time.Minute

// Payload is the verified content of a state token.
type Payload struct {
	Provider   domain.Provider
	AccountKey string
	Mode       domain.ConnectMode
	IssuedAt   time.Time
}

// VerifyOptions narrows verification.
type VerifyOptions struct {
	// ExpectedProvider, when set, must match the token's provider.
	ExpectedProvider domain.Provider
}

type stateClaims struct {
	Provider   string `json:"provider"`
	AccountKey string `json:"account_key"`
	Mode       string `json:"mode"`
	Nonce      string `json:"nonce"`
	jwt.RegisteredClaims
}

// Signer signs and verifies state tokens under a rotating key list.
type Signer struct {
	keys [][]byte // newest first
	now  func() time.Time
}

// NewSigner creates a Signer over the configured state keys, newest first.
func NewSigner(keys [][]byte) (*Signer, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no oauth state keys", domain.ErrConfiguration)
	}
	return &Signer{keys: keys, now: time.Now}, nil
}

// Sign issues a state token for one authorization attempt, signed with the
// newest key.
func (s *Signer) Sign(provider domain.Provider, accountKey string, mode domain.ConnectMode) (string, error) {
	now := s.now()
	claims := stateClaims{
		Provider:   string(provider),
		AccountKey: accountKey,
		Mode:       string(mode),
		Nonce:      uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.keys[0])
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return signed, nil
}

// Verify checks a state token against every configured key and returns its
// payload, or nil for any failure.
func (s *Signer) Verify(token string, opts VerifyOptions) *Payload {
	claims := s.parse(token)
	if claims == nil {
		return nil
	}

	provider, err := domain.ParseProvider(claims.Provider)
	if err != nil {
		return nil
	}
	if opts.ExpectedProvider != "" && provider != opts.ExpectedProvider {
		return nil
	}

	mode, err := domain.ParseConnectMode(claims.Mode)
	if err != nil {
		return nil
	}

	payload := &Payload{
		Provider:   provider,
		AccountKey: claims.AccountKey,
		Mode:       mode,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	return payload
}

// ProviderFromState peeks at a token's provider when the callback URL
// carries no explicit provider parameter. The full signature check applies:
// a tampered token resolves no provider.
func (s *Signer) ProviderFromState(token string) (domain.Provider, bool) {
	payload := s.Verify(token, VerifyOptions{})
	if payload == nil {
		return "", false
	}
	return payload.Provider, true
}

// parse tries each key in order. jwt.ParseWithClaims enforces the HS256
// method, signature and expiry; timing leaks between keys are acceptable
// since keys are server-side only.
func (s *Signer) parse(token string) *stateClaims {
	for _, key := range s.keys {
		parsed, err := jwt.ParseWithClaims(token, &stateClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		}, jwt.WithTimeFunc(s.now))
		if err != nil {
			continue
		}
		if claims, ok := parsed.Claims.(*stateClaims); ok && parsed.Valid {
			return claims
		}
	}
	return nil
}
