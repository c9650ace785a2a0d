package services

import (
	"context"
	"fmt"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
	"github.com/bridgeworks/espbridge/internal/registry"
)

// StatusResolver merges explicit tenant configuration, stored connection
// rows, and the registered catalog into one coherent answer per tenant.
// A tenant may carry a stale explicit
// provider, a live connection row and a catalog entry simultaneously; this
// is the single place that reconciles them, and it recomputes from the
// stores on every call.
type StatusResolver struct {
	registry    *registry.Registry
	connections driven.ConnectionStore
}

// NewStatusResolver creates a StatusResolver.
func NewStatusResolver(reg *registry.Registry, connections driven.ConnectionStore) *StatusResolver {
	return &StatusResolver{registry: reg, connections: connections}
}

// ProviderStatus resolves the derived view for one (tenant, provider).
func (r *StatusResolver) ProviderStatus(ctx context.Context, accountKey string, provider domain.Provider) (*domain.ConnectionStatus, error) {
	oauth, err := r.connections.GetOAuth(ctx, accountKey, provider)
	if err != nil {
		return nil, fmt.Errorf("get oauth connection: %w", err)
	}
	apiKey, err := r.connections.GetAPIKey(ctx, accountKey, provider)
	if err != nil {
		return nil, fmt.Errorf("get api key connection: %w", err)
	}
	return buildStatus(provider, oauth, apiKey), nil
}

// buildStatus classifies one provider's connection: oauth wins over
// api-key when both rows exist.
func buildStatus(provider domain.Provider, oauth *domain.OAuthConnection, apiKey *domain.APIKeyConnection) *domain.ConnectionStatus {
	status := &domain.ConnectionStatus{
		Provider:       provider,
		ConnectionType: domain.ConnectionTypeNone,
	}

	switch {
	case oauth != nil:
		status.Connected = true
		status.ConnectionType = domain.ConnectionTypeOAuth
		status.OAuthConnected = true
		status.LocationID = oauth.LocationID
		status.LocationName = oauth.LocationName
		status.Scopes = oauth.Scopes
		if !oauth.InstalledAt.IsZero() {
			t := oauth.InstalledAt
			status.InstalledAt = &t
		}
	case apiKey != nil:
		status.Connected = true
		status.ConnectionType = domain.ConnectionTypeAPIKey
		status.AccountID = apiKey.ExternalAccountID
		status.AccountName = apiKey.ExternalAccountName
		if !apiKey.InstalledAt.IsZero() {
			t := apiKey.InstalledAt
			status.InstalledAt = &t
		}
	}
	return status
}

// AccountSummary resolves the tenant-level view: connected providers, the
// active provider and its connection status.
func (r *StatusResolver) AccountSummary(ctx context.Context, accountKey string) (*domain.AccountConnectionSummary, []*domain.ConnectionStatus, error) {
	filter := driven.ConnectionFilter{AccountKeys: []string{accountKey}}

	oauthRows, err := r.connections.ListOAuth(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("list oauth connections: %w", err)
	}
	apiKeyRows, err := r.connections.ListAPIKeys(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("list api key connections: %w", err)
	}

	oauthByProvider := make(map[domain.Provider]*domain.OAuthConnection)
	for _, row := range oauthRows {
		oauthByProvider[row.Provider] = row
	}
	apiKeyByProvider := make(map[domain.Provider]*domain.APIKeyConnection)
	for _, row := range apiKeyRows {
		apiKeyByProvider[row.Provider] = row
	}

	var statuses []*domain.ConnectionStatus
	var connected []domain.Provider
	statusByProvider := make(map[domain.Provider]*domain.ConnectionStatus)
	for _, provider := range r.registry.Providers() {
		status := buildStatus(provider, oauthByProvider[provider], apiKeyByProvider[provider])
		statuses = append(statuses, status)
		statusByProvider[provider] = status
		if status.Connected {
			connected = append(connected, provider)
		}
	}

	active, err := r.registry.AccountProvider(ctx, accountKey)
	if err != nil {
		return nil, nil, err
	}

	summary := &domain.AccountConnectionSummary{
		AccountKey:         accountKey,
		ConnectedProviders: connected,
		ActiveProvider:     active,
		ActiveConnection:   statusByProvider[active],
	}
	return summary, statuses, nil
}

// CustomValueReadiness computes scope readiness for custom-value sync.
// Reauthorization is needed only when the provider supports custom
// values, is OAuth-connected, requires at least one scope and is missing
// at least one of them. API-key providers carry no scopes and are always
// scope-ready.
func (r *StatusResolver) CustomValueReadiness(ctx context.Context, accountKey string, provider domain.Provider) (*domain.CustomValueSyncReadiness, error) {
	adapter, err := r.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	readiness := &domain.CustomValueSyncReadiness{
		Provider:       provider,
		RequiredScopes: []string{},
	}
	if adapter.OAuth != nil {
		readiness.RequiredScopes = adapter.OAuth.RequiredScopes()
	}

	status, err := r.ProviderStatus(ctx, accountKey, provider)
	if err != nil {
		return nil, err
	}

	missing := false
	for _, scope := range readiness.RequiredScopes {
		if !containsScope(status.Scopes, scope) {
			missing = true
			break
		}
	}

	readiness.HasRequiredScopes = !status.OAuthConnected || !missing
	readiness.NeedsReauthorization = adapter.Capabilities.CustomValues &&
		status.OAuthConnected &&
		len(readiness.RequiredScopes) > 0 &&
		missing
	readiness.ReadyForSync = adapter.Capabilities.CustomValues &&
		status.Connected &&
		!readiness.NeedsReauthorization
	return readiness, nil
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
