package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven/mocks"
	"github.com/bridgeworks/espbridge/internal/registry"
	"github.com/bridgeworks/espbridge/internal/statetoken"
)

// stubOAuthModule is a canned OAuthModule for service tests.
type stubOAuthModule struct {
	scopes       []string
	tokens       *domain.OAuthTokens
	location     *domain.LocationDetails
	exchangeErr  error
	locationErr  error
	refreshed    *domain.OAuthTokens
	refreshErr   error
	refreshCalls int
}

func (m *stubOAuthModule) RequiredScopes() []string { return m.scopes }

func (m *stubOAuthModule) AuthorizationURL(state string, mode domain.ConnectMode) (string, error) {
	return "https://esp.example.com/authorize?state=" + state + "&mode=" + string(mode), nil
}

func (m *stubOAuthModule) ExchangeCode(ctx context.Context, code string) (*domain.OAuthTokens, error) {
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return m.tokens, nil
}

func (m *stubOAuthModule) RefreshTokens(ctx context.Context, refreshToken string) (*domain.OAuthTokens, error) {
	m.refreshCalls++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.refreshed, nil
}

func (m *stubOAuthModule) FetchLocationDetails(ctx context.Context, tokens *domain.OAuthTokens) (*domain.LocationDetails, error) {
	if m.locationErr != nil {
		return nil, m.locationErr
	}
	return m.location, nil
}

// stubAPIKeyModule is a canned APIKeyModule for service tests.
type stubAPIKeyModule struct {
	account     *domain.ExternalAccount
	validateErr error
	seenKeys    []string
}

func (m *stubAPIKeyModule) ValidateKey(ctx context.Context, apiKey string) (*domain.ExternalAccount, error) {
	m.seenKeys = append(m.seenKeys, apiKey)
	if m.validateErr != nil {
		return nil, m.validateErr
	}
	return m.account, nil
}

// testEnv bundles the stores and registry most service tests need.
type testEnv struct {
	connections *mocks.MockConnectionStore
	settings    *mocks.MockAccountSettingsStore
	registry    *registry.Registry
	signer      *statetoken.Signer
	logger      *slog.Logger
}

func newTestEnv(t *testing.T, adapters ...*domain.Adapter) *testEnv {
	t.Helper()

	connections := mocks.NewMockConnectionStore()
	settings := mocks.NewMockAccountSettingsStore()

	reg, err := registry.New(registry.Config{
		Settings:    settings,
		Connections: connections,
	}, adapters...)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}

	key := make([]byte, 32)
	copy(key, "0123456789abcdef0123456789abcdef")
	signer, err := statetoken.NewSigner([][]byte{key})
	if err != nil {
		t.Fatalf("statetoken.NewSigner() error = %v", err)
	}

	return &testEnv{
		connections: connections,
		settings:    settings,
		registry:    reg,
		signer:      signer,
		logger:      slog.New(slog.DiscardHandler),
	}
}

func oauthAdapter(module *stubOAuthModule) *domain.Adapter {
	return &domain.Adapter{
		Provider: domain.ProviderGHL,
		Name:     "GoHighLevel",
		Capabilities: domain.Capabilities{
			Auth:         domain.AuthSupportOAuth,
			Contacts:     true,
			Campaigns:    true,
			Webhooks:     true,
			CustomValues: true,
		},
		OAuth: module,
	}
}

func apiKeyAdapter(module *stubAPIKeyModule) *domain.Adapter {
	return &domain.Adapter{
		Provider: domain.ProviderKlaviyo,
		Name:     "Klaviyo",
		Capabilities: domain.Capabilities{
			Auth:      domain.AuthSupportAPIKey,
			Contacts:  true,
			Campaigns: true,
			Webhooks:  true,
		},
		APIKey: module,
	}
}

func futureTime(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}
