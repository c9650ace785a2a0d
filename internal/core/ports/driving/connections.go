package driving

import (
	"context"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// ConnectionService manages direct (API-key) connections and answers
// connection-status questions for tenants.
type ConnectionService interface {
	// ConnectAPIKey validates an API key upstream and persists it
	// encrypted for the tenant.
	ConnectAPIKey(ctx context.Context, req ConnectAPIKeyRequest) (*ValidateResponse, error)

	// Validate checks a credential without persisting anything: either a
	// stored connection (accountKey) or a raw API key.
	Validate(ctx context.Context, req ValidateRequest) (*ValidateResponse, error)

	// Disconnect removes the tenant's connection to one provider.
	Disconnect(ctx context.Context, accountKey string, provider domain.Provider) error

	// Status resolves the per-provider and tenant-level connection view.
	Status(ctx context.Context, accountKey string) (*domain.AccountConnectionSummary, []*domain.ConnectionStatus, error)

	// CustomValueReadiness reports per-provider custom-value sync readiness
	// for the tenant.
	CustomValueReadiness(ctx context.Context, accountKey string, provider domain.Provider) (*domain.CustomValueSyncReadiness, error)
}

// ConnectAPIKeyRequest connects a tenant to an API-key provider.
// @Description Request to connect a tenant with a provider API key
type ConnectAPIKeyRequest struct {
	AccountKey string          `json:"account_key" example:"acct_8f2k1"`
	Provider   domain.Provider `json:"provider" example:"klaviyo"`
	APIKey     string          `json:"api_key"`
}

// ValidateRequest checks a credential. Exactly one of AccountKey or APIKey
// is expected.
// @Description Request to validate a stored connection or a raw API key
type ValidateRequest struct {
	Provider   domain.Provider `json:"provider" example:"klaviyo"`
	AccountKey string          `json:"account_key,omitempty"`
	APIKey     string          `json:"api_key,omitempty"`
}

// ValidateResponse reports the credential's provider-side identity.
// @Description Result of validating a credential
type ValidateResponse struct {
	Provider domain.Provider       `json:"provider"`
	Mode     domain.ConnectionType `json:"mode"`

	// Location is set for OAuth (agency-style) providers.
	Location *domain.LocationDetails `json:"location,omitempty"`

	// Account is set for API-key providers.
	Account *domain.ExternalAccount `json:"account,omitempty"`
}

// ProviderCatalogEntry is one row of the provider catalog: static
// capabilities plus, when a tenant is given, its connection status.
// @Description Registered provider with capabilities and optional tenant status
type ProviderCatalogEntry struct {
	Provider     domain.Provider          `json:"provider"`
	Name         string                   `json:"name"`
	Capabilities domain.Capabilities      `json:"capabilities"`
	Status       *domain.ConnectionStatus `json:"status,omitempty"`
}

// ProviderService exposes the registered provider catalog.
type ProviderService interface {
	// Catalog lists registered providers; accountKey may be empty, in
	// which case statuses are omitted.
	Catalog(ctx context.Context, accountKey string) ([]*ProviderCatalogEntry, error)
}
