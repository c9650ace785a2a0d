package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
	"github.com/bridgeworks/espbridge/internal/core/ports/driving"
)

func newConnService(env *testEnv) *connectionService {
	return newConnectionService(ConnectionServiceConfig{
		Registry:    env.registry,
		Connections: env.connections,
		Settings:    env.settings,
		Logger:      env.logger,
	})
}

func TestConnectAPIKeyStoresValidatedKey(t *testing.T) {
	module := &stubAPIKeyModule{account: &domain.ExternalAccount{ID: "org-1", Name: "Acme"}}
	env := newTestEnv(t, apiKeyAdapter(module))
	svc := newConnService(env)

	resp, err := svc.ConnectAPIKey(context.Background(), driving.ConnectAPIKeyRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderKlaviyo,
		APIKey:     "pk_test_123",
	})
	if err != nil {
		t.Fatalf("ConnectAPIKey() error = %v", err)
	}
	if resp.Mode != domain.ConnectionTypeAPIKey {
		t.Errorf("Mode = %q", resp.Mode)
	}
	if resp.Account == nil || resp.Account.Name != "Acme" {
		t.Errorf("Account = %+v", resp.Account)
	}

	conn, err := env.connections.GetAPIKey(context.Background(), "acct-1", domain.ProviderKlaviyo)
	if err != nil {
		t.Fatalf("GetAPIKey() error = %v", err)
	}
	if conn == nil || conn.APIKey != "pk_test_123" {
		t.Fatalf("stored connection = %+v", conn)
	}
	if conn.ExternalAccountName != "Acme" {
		t.Errorf("ExternalAccountName = %q", conn.ExternalAccountName)
	}
}

func TestConnectAPIKeyRejectedUpstreamStoresNothing(t *testing.T) {
	module := &stubAPIKeyModule{
		validateErr: &domain.UpstreamError{Provider: domain.ProviderKlaviyo, StatusCode: 401, Body: "invalid key"},
	}
	env := newTestEnv(t, apiKeyAdapter(module))
	svc := newConnService(env)

	_, err := svc.ConnectAPIKey(context.Background(), driving.ConnectAPIKeyRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderKlaviyo,
		APIKey:     "bad-key",
	})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != 401 {
		t.Fatalf("error = %v, want 401 UpstreamError", err)
	}

	if conn, _ := env.connections.GetAPIKey(context.Background(), "acct-1", domain.ProviderKlaviyo); conn != nil {
		t.Error("rejected key must not be stored")
	}
}

func TestConnectAPIKeyProviderWithoutKeys(t *testing.T) {
	env := newTestEnv(t, oauthAdapter(&stubOAuthModule{}))
	svc := newConnService(env)

	_, err := svc.ConnectAPIKey(context.Background(), driving.ConnectAPIKeyRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderGHL,
		APIKey:     "key",
	})
	if !errors.Is(err, domain.ErrMissingCapability) {
		t.Errorf("error = %v, want ErrMissingCapability", err)
	}
}

func TestValidateRawKeyDoesNotPersist(t *testing.T) {
	module := &stubAPIKeyModule{account: &domain.ExternalAccount{ID: "org-1", Name: "Acme"}}
	env := newTestEnv(t, apiKeyAdapter(module))
	svc := newConnService(env)

	resp, err := svc.Validate(context.Background(), driving.ValidateRequest{
		Provider: domain.ProviderKlaviyo,
		APIKey:   "pk_probe",
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if resp.Account == nil || resp.Account.ID != "org-1" {
		t.Errorf("Account = %+v", resp.Account)
	}

	if rows, _ := env.connections.ListAPIKeys(context.Background(), driven.ConnectionFilter{}); len(rows) != 0 {
		t.Error("Validate must not persist anything")
	}
}

func TestValidateStoredOAuthConnection(t *testing.T) {
	env := newTestEnv(t, oauthAdapter(&stubOAuthModule{}))
	svc := newConnService(env)

	seedOAuth(t, env, "acct-1", domain.ProviderGHL, time.Now())

	resp, err := svc.Validate(context.Background(), driving.ValidateRequest{
		Provider:   domain.ProviderGHL,
		AccountKey: "acct-1",
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if resp.Mode != domain.ConnectionTypeOAuth {
		t.Errorf("Mode = %q, want oauth", resp.Mode)
	}
	if resp.Location == nil || resp.Location.ID != "loc-1" {
		t.Errorf("Location = %+v", resp.Location)
	}
}

func TestValidateNotConnected(t *testing.T) {
	env := newTestEnv(t, apiKeyAdapter(&stubAPIKeyModule{}))
	svc := newConnService(env)

	_, err := svc.Validate(context.Background(), driving.ValidateRequest{
		Provider:   domain.ProviderKlaviyo,
		AccountKey: "acct-1",
	})
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectRemovesRowsAndStaleSetting(t *testing.T) {
	env := newTestEnv(t, oauthAdapter(&stubOAuthModule{}), apiKeyAdapter(&stubAPIKeyModule{}))
	svc := newConnService(env)
	ctx := context.Background()

	seedOAuth(t, env, "acct-1", domain.ProviderGHL, time.Now())
	if err := env.settings.SetProvider(ctx, "acct-1", domain.ProviderGHL); err != nil {
		t.Fatalf("SetProvider() error = %v", err)
	}

	if err := svc.Disconnect(ctx, "acct-1", domain.ProviderGHL); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	if conn, _ := env.connections.GetOAuth(ctx, "acct-1", domain.ProviderGHL); conn != nil {
		t.Error("oauth row survived disconnect")
	}
	settings, _ := env.settings.Get(ctx, "acct-1")
	if settings != nil && settings.ESPProvider == domain.ProviderGHL {
		t.Error("stale explicit provider setting survived disconnect")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	env := newTestEnv(t, oauthAdapter(&stubOAuthModule{}))
	svc := newConnService(env)

	if err := svc.Disconnect(context.Background(), "acct-1", domain.ProviderGHL); err != nil {
		t.Fatalf("Disconnect() of absent connection error = %v", err)
	}
}

func TestStatusSummary(t *testing.T) {
	env := newTestEnv(t, oauthAdapter(&stubOAuthModule{}), apiKeyAdapter(&stubAPIKeyModule{}))
	svc := newConnService(env)
	ctx := context.Background()

	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()
	seedAPIKey(t, env, "acct-1", domain.ProviderKlaviyo, t1)
	seedOAuth(t, env, "acct-1", domain.ProviderGHL, t2)

	summary, statuses, err := svc.Status(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if len(summary.ConnectedProviders) != 2 {
		t.Errorf("ConnectedProviders = %v", summary.ConnectedProviders)
	}
	// Most recent install wins with no explicit setting.
	if summary.ActiveProvider != domain.ProviderGHL {
		t.Errorf("ActiveProvider = %q, want ghl", summary.ActiveProvider)
	}
	if summary.ActiveConnection == nil || summary.ActiveConnection.ConnectionType != domain.ConnectionTypeOAuth {
		t.Errorf("ActiveConnection = %+v", summary.ActiveConnection)
	}

	byProvider := map[domain.Provider]*domain.ConnectionStatus{}
	for _, st := range statuses {
		byProvider[st.Provider] = st
	}
	if st := byProvider[domain.ProviderKlaviyo]; st == nil || st.ConnectionType != domain.ConnectionTypeAPIKey {
		t.Errorf("klaviyo status = %+v", st)
	}
}

func TestStatusDisconnectedTenant(t *testing.T) {
	env := newTestEnv(t, oauthAdapter(&stubOAuthModule{}))
	svc := newConnService(env)

	summary, statuses, err := svc.Status(context.Background(), "acct-unknown")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(summary.ConnectedProviders) != 0 {
		t.Errorf("ConnectedProviders = %v, want none", summary.ConnectedProviders)
	}
	// Default provider still resolves so the tenant is never providerless.
	if summary.ActiveProvider != domain.ProviderGHL {
		t.Errorf("ActiveProvider = %q, want default ghl", summary.ActiveProvider)
	}
	for _, st := range statuses {
		if st.Connected || st.ConnectionType != domain.ConnectionTypeNone {
			t.Errorf("status = %+v, want disconnected", st)
		}
	}
}

func TestCustomValueReadiness(t *testing.T) {
	module := &stubOAuthModule{scopes: []string{"locations.readonly", "locations/customValues.write"}}
	env := newTestEnv(t, oauthAdapter(module))
	svc := newConnService(env)
	ctx := context.Background()

	// Connected with all required scopes.
	conn := &domain.OAuthConnection{
		AccountKey:  "acct-full",
		Provider:    domain.ProviderGHL,
		AccessToken: "a",
		Scopes:      []string{"locations.readonly", "locations/customValues.write"},
		InstalledAt: time.Now(),
	}
	if err := env.connections.UpsertOAuth(ctx, conn); err != nil {
		t.Fatal(err)
	}

	readiness, err := svc.CustomValueReadiness(ctx, "acct-full", domain.ProviderGHL)
	if err != nil {
		t.Fatalf("CustomValueReadiness() error = %v", err)
	}
	if !readiness.HasRequiredScopes || readiness.NeedsReauthorization || !readiness.ReadyForSync {
		t.Errorf("full-scope readiness = %+v", readiness)
	}

	// Connected with a scope missing.
	partial := &domain.OAuthConnection{
		AccountKey:  "acct-partial",
		Provider:    domain.ProviderGHL,
		AccessToken: "a",
		Scopes:      []string{"locations.readonly"},
		InstalledAt: time.Now(),
	}
	if err := env.connections.UpsertOAuth(ctx, partial); err != nil {
		t.Fatal(err)
	}

	readiness, err = svc.CustomValueReadiness(ctx, "acct-partial", domain.ProviderGHL)
	if err != nil {
		t.Fatalf("CustomValueReadiness() error = %v", err)
	}
	if readiness.HasRequiredScopes || !readiness.NeedsReauthorization || readiness.ReadyForSync {
		t.Errorf("partial-scope readiness = %+v", readiness)
	}

	// Not connected at all: no reauthorization prompt, not ready.
	readiness, err = svc.CustomValueReadiness(ctx, "acct-none", domain.ProviderGHL)
	if err != nil {
		t.Fatalf("CustomValueReadiness() error = %v", err)
	}
	if readiness.NeedsReauthorization || readiness.ReadyForSync {
		t.Errorf("disconnected readiness = %+v", readiness)
	}
}

func TestCatalogWithAndWithoutTenant(t *testing.T) {
	env := newTestEnv(t, oauthAdapter(&stubOAuthModule{}), apiKeyAdapter(&stubAPIKeyModule{}))
	svc := newConnService(env)
	ctx := context.Background()

	seedAPIKey(t, env, "acct-1", domain.ProviderKlaviyo, time.Now())

	entries, err := svc.Catalog(ctx, "")
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d", len(entries))
	}
	for _, e := range entries {
		if e.Status != nil {
			t.Errorf("%s: status set without tenant", e.Provider)
		}
	}

	entries, err = svc.Catalog(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Catalog(acct-1) error = %v", err)
	}
	for _, e := range entries {
		if e.Status == nil {
			t.Fatalf("%s: missing status for tenant", e.Provider)
		}
		if e.Provider == domain.ProviderKlaviyo && !e.Status.Connected {
			t.Error("klaviyo should report connected")
		}
		if e.Provider == domain.ProviderGHL && e.Status.Connected {
			t.Error("ghl should report disconnected")
		}
	}
}

func seedOAuth(t *testing.T, env *testEnv, accountKey string, provider domain.Provider, installedAt time.Time) {
	t.Helper()
	err := env.connections.UpsertOAuth(context.Background(), &domain.OAuthConnection{
		AccountKey:   accountKey,
		Provider:     provider,
		AccessToken:  "access",
		RefreshToken: "refresh",
		LocationID:   "loc-1",
		LocationName: "Main Office",
		InstalledAt:  installedAt,
	})
	if err != nil {
		t.Fatalf("seed oauth connection: %v", err)
	}
}

func seedAPIKey(t *testing.T, env *testEnv, accountKey string, provider domain.Provider, installedAt time.Time) {
	t.Helper()
	err := env.connections.UpsertAPIKey(context.Background(), &domain.APIKeyConnection{
		AccountKey:  accountKey,
		Provider:    provider,
		APIKey:      "stored-key",
		InstalledAt: installedAt,
	})
	if err != nil {
		t.Fatalf("seed api key connection: %v", err)
	}
}
