// Package secrets resolves the ordered key lists used for credential
// encryption and OAuth state signing.
//
// Operators configure comma-separated passphrases, newest first. Each
// passphrase is expanded to a 32-byte AES key with HKDF-SHA256 under a
// purpose-specific info label, so the token and state key spaces never
// overlap even when an operator reuses a passphrase. Rotation is adding a
// new passphrase at the front; old ones stay until every stored value has
// been re-encrypted.
package secrets

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/crypto"
)

const (
	// EnvTokenSecrets configures credential encryption passphrases.
	EnvTokenSecrets = "ESP_TOKEN_SECRETS"

	// EnvOAuthStateSecrets configures OAuth state signing passphrases.
	EnvOAuthStateSecrets = "ESP_OAUTH_STATE_SECRETS"

	tokenKeyInfo = "espbridge/token-encryption/v1"
	stateKeyInfo = "espbridge/oauth-state/v1"
)

// Source resolves key lists from the environment. The zero value reads the
// real process environment; tests substitute Lookup.
type Source struct {
	// Lookup overrides os.LookupEnv when set.
	Lookup func(key string) (string, bool)
}

// TokenKeys returns the ordered credential-encryption keys, newest first.
// Fails with ErrConfiguration when no passphrase is configured; callers
// must never proceed with zero keys.
func (s *Source) TokenKeys() ([][]byte, error) {
	return s.derive(EnvTokenSecrets, tokenKeyInfo)
}

// OAuthStateKeys returns the ordered OAuth state signing keys, newest first.
func (s *Source) OAuthStateKeys() ([][]byte, error) {
	return s.derive(EnvOAuthStateSecrets, stateKeyInfo)
}

func (s *Source) derive(envKey, info string) ([][]byte, error) {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	raw, ok := lookup(envKey)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: %s is not set", domain.ErrConfiguration, envKey)
	}

	var keys [][]byte
	for _, part := range strings.Split(raw, ",") {
		passphrase := strings.TrimSpace(part)
		if passphrase == "" {
			continue
		}
		key, err := deriveKey(passphrase, info)
		if err != nil {
			return nil, fmt.Errorf("derive key from %s: %w", envKey, err)
		}
		keys = append(keys, key)
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s resolves to zero keys", domain.ErrConfiguration, envKey)
	}
	return keys, nil
}

// deriveKey expands one passphrase to a 32-byte key via HKDF-SHA256.
func deriveKey(passphrase, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(info))
	key := make([]byte, crypto.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return key, nil
}
