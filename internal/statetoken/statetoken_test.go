package statetoken

import (
	"strings"
	"testing"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

func testKeys(bs ...byte) [][]byte {
	keys := make([][]byte, len(bs))
	for i, b := range bs {
		key := make([]byte, 32)
		for j := range key {
			key[j] = b
		}
		keys[i] = key
	}
	return keys
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer, err := NewSigner(testKeys(0x01))
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	token, err := signer.Sign(domain.ProviderGHL, "acct_123", domain.ConnectModeAccount)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	payload := signer.Verify(token, VerifyOptions{})
	if payload == nil {
		t.Fatal("Verify() = nil for a freshly signed token")
	}
	if payload.Provider != domain.ProviderGHL {
		t.Errorf("Provider = %q, want %q", payload.Provider, domain.ProviderGHL)
	}
	if payload.AccountKey != "acct_123" {
		t.Errorf("AccountKey = %q, want acct_123", payload.AccountKey)
	}
	if payload.Mode != domain.ConnectModeAccount {
		t.Errorf("Mode = %q, want account", payload.Mode)
	}
}

func TestVerifyWithRotatedKeys(t *testing.T) {
	oldSigner, _ := NewSigner(testKeys(0x01))
	token, err := oldSigner.Sign(domain.ProviderKlaviyo, "acct_9", domain.ConnectModeAccount)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	// A new key was rotated in; the old key is still in the list, so a
	// token issued before rotation stays valid.
	rotated, _ := NewSigner(testKeys(0x02, 0x01))
	if rotated.Verify(token, VerifyOptions{}) == nil {
		t.Error("Verify() = nil for token signed under a still-configured older key")
	}

	// Key fully retired: the token must no longer verify.
	retired, _ := NewSigner(testKeys(0x02))
	if retired.Verify(token, VerifyOptions{}) != nil {
		t.Error("Verify() accepted a token signed under a retired key")
	}
}

func TestTamperedSignatureFailsEverywhere(t *testing.T) {
	signer, _ := NewSigner(testKeys(0x01))
	token, err := signer.Sign(domain.ProviderGHL, "acct_123", domain.ConnectModeAccount)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}

	// Flip one character in the middle of the signature segment.
	sig := []byte(parts[2])
	mid := len(sig) / 2
	if sig[mid] == 'A' {
		sig[mid] = 'B'
	} else {
		sig[mid] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if signer.Verify(tampered, VerifyOptions{}) != nil {
		t.Error("Verify() accepted a tampered signature")
	}
	if _, ok := signer.ProviderFromState(tampered); ok {
		t.Error("ProviderFromState() resolved a provider from a tampered token")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	signer, _ := NewSigner(testKeys(0x01))
	token, err := signer.Sign(domain.ProviderGHL, "acct_123", domain.ConnectModeAccount)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	signer.now = func() time.Time { return time.Now().Add(TTL + time.Minute) }
	if signer.Verify(token, VerifyOptions{}) != nil {
		t.Error("Verify() accepted an expired token")
	}
}

func TestVerifyProviderMismatch(t *testing.T) {
	signer, _ := NewSigner(testKeys(0x01))
	token, _ := signer.Sign(domain.ProviderGHL, "acct_123", domain.ConnectModeAccount)

	if signer.Verify(token, VerifyOptions{ExpectedProvider: domain.ProviderKlaviyo}) != nil {
		t.Error("Verify() accepted a token for the wrong expected provider")
	}
	if signer.Verify(token, VerifyOptions{ExpectedProvider: domain.ProviderGHL}) == nil {
		t.Error("Verify() rejected the matching expected provider")
	}
}

func TestVerifyGarbage(t *testing.T) {
	signer, _ := NewSigner(testKeys(0x01))
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if signer.Verify(token, VerifyOptions{}) != nil {
			t.Errorf("Verify(%q) != nil", token)
		}
	}
}

func TestProviderFromState(t *testing.T) {
	signer, _ := NewSigner(testKeys(0x01))
	token, _ := signer.Sign(domain.ProviderKlaviyo, "acct_7", domain.ConnectModeAgency)

	provider, ok := signer.ProviderFromState(token)
	if !ok || provider != domain.ProviderKlaviyo {
		t.Errorf("ProviderFromState() = %q, %v, want klaviyo, true", provider, ok)
	}
}
