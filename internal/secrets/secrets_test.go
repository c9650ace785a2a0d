package secrets

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/crypto"
)

func sourceWith(env map[string]string) *Source {
	return &Source{Lookup: func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}}
}

func TestTokenKeysOrderAndSize(t *testing.T) {
	src := sourceWith(map[string]string{
		EnvTokenSecrets: "newest-passphrase, older-passphrase",
	})

	keys, err := src.TokenKeys()
	if err != nil {
		t.Fatalf("TokenKeys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("TokenKeys() len = %d, want 2", len(keys))
	}
	for i, key := range keys {
		if len(key) != crypto.KeySize {
			t.Errorf("key %d size = %d, want %d", i, len(key), crypto.KeySize)
		}
	}
	if bytes.Equal(keys[0], keys[1]) {
		t.Error("distinct passphrases derived the same key")
	}
}

func TestTokenKeysDeterministic(t *testing.T) {
	src := sourceWith(map[string]string{EnvTokenSecrets: "p1"})

	a, err := src.TokenKeys()
	if err != nil {
		t.Fatalf("TokenKeys() error = %v", err)
	}
	b, _ := src.TokenKeys()
	if !bytes.Equal(a[0], b[0]) {
		t.Error("same passphrase derived different keys")
	}
}

func TestTokenAndStateKeySpacesDiffer(t *testing.T) {
	src := sourceWith(map[string]string{
		EnvTokenSecrets:      "shared-passphrase",
		EnvOAuthStateSecrets: "shared-passphrase",
	})

	tokenKeys, err := src.TokenKeys()
	if err != nil {
		t.Fatalf("TokenKeys() error = %v", err)
	}
	stateKeys, err := src.OAuthStateKeys()
	if err != nil {
		t.Fatalf("OAuthStateKeys() error = %v", err)
	}
	if bytes.Equal(tokenKeys[0], stateKeys[0]) {
		t.Error("token and state keys collide for a shared passphrase")
	}
}

func TestZeroKeysFailsFast(t *testing.T) {
	cases := map[string]map[string]string{
		"unset": {},
		"empty": {EnvTokenSecrets: ""},
		"blank": {EnvTokenSecrets: " , , "},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := sourceWith(env).TokenKeys()
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("TokenKeys() error = %v, want ErrConfiguration", err)
			}
		})
	}
}
