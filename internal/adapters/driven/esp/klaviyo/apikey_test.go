package klaviyo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

func TestValidateKeyReturnsAccount(t *testing.T) {
	var gotAuth, gotRevision string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/accounts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotRevision = r.Header.Get("revision")
		w.Header().Set("Content-Type", "application/vnd.api+json")
		w.Write([]byte(`{"data":[{"id":"org-1","attributes":{"contact_information":{"organization_name":"Acme Stores"}}}]}`))
	}))
	defer srv.Close()

	m := NewAPIKeyModule(Config{BaseURL: srv.URL})
	account, err := m.ValidateKey(context.Background(), "pk_test_123")
	if err != nil {
		t.Fatalf("ValidateKey() error = %v", err)
	}
	if account.ID != "org-1" || account.Name != "Acme Stores" {
		t.Errorf("account = %+v", account)
	}
	if gotAuth != "Klaviyo-API-Key pk_test_123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotRevision != revision {
		t.Errorf("revision = %q", gotRevision)
	}
}

func TestValidateKeyRejectedPreservesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"detail":"Missing or invalid private key."}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewAPIKeyModule(Config{BaseURL: srv.URL})
	_, err := m.ValidateKey(context.Background(), "bad-key")

	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if upstream.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", upstream.StatusCode)
	}
}

func TestValidateKeyEmptyAccountList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	m := NewAPIKeyModule(Config{BaseURL: srv.URL})
	if _, err := m.ValidateKey(context.Background(), "pk_orphan"); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}
