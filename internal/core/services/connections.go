package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
	"github.com/bridgeworks/espbridge/internal/core/ports/driving"
	"github.com/bridgeworks/espbridge/internal/registry"
)

// Ensure connectionService implements ConnectionService and ProviderService
var _ driving.ConnectionService = (*connectionService)(nil)
var _ driving.ProviderService = (*connectionService)(nil)

// ConnectionServiceConfig holds configuration for the connection service.
type ConnectionServiceConfig struct {
	Registry    *registry.Registry
	Connections driven.ConnectionStore
	Settings    driven.AccountSettingsStore
	Resolver    *StatusResolver
	Logger      *slog.Logger
}

// connectionService implements ConnectionService and ProviderService.
type connectionService struct {
	registry    *registry.Registry
	connections driven.ConnectionStore
	settings    driven.AccountSettingsStore
	resolver    *StatusResolver
	logger      *slog.Logger
}

// NewConnectionService creates a new connection service.
func NewConnectionService(cfg ConnectionServiceConfig) driving.ConnectionService {
	return newConnectionService(cfg)
}

// NewProviderService creates the provider catalog service. It shares its
// implementation with the connection service.
func NewProviderService(cfg ConnectionServiceConfig) driving.ProviderService {
	return newConnectionService(cfg)
}

func newConnectionService(cfg ConnectionServiceConfig) *connectionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = NewStatusResolver(cfg.Registry, cfg.Connections)
	}
	return &connectionService{
		registry:    cfg.Registry,
		connections: cfg.Connections,
		settings:    cfg.Settings,
		resolver:    resolver,
		logger:      logger,
	}
}

// ConnectAPIKey validates the key against the provider's API and persists it
// encrypted. An invalid key is rejected upstream and nothing is stored.
func (s *connectionService) ConnectAPIKey(ctx context.Context, req driving.ConnectAPIKeyRequest) (*driving.ValidateResponse, error) {
	if req.AccountKey == "" || req.APIKey == "" {
		return nil, fmt.Errorf("%w: account key and api key are required", domain.ErrInvalidInput)
	}

	adapter, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	if adapter.APIKey == nil {
		return nil, fmt.Errorf("%w: %s does not support api keys", domain.ErrMissingCapability, req.Provider)
	}

	account, err := adapter.APIKey.ValidateKey(ctx, req.APIKey)
	if err != nil {
		return nil, fmt.Errorf("validate api key: %w", err)
	}

	conn := &domain.APIKeyConnection{
		AccountKey:  req.AccountKey,
		Provider:    req.Provider,
		APIKey:      req.APIKey,
		InstalledAt: time.Now(),
	}
	if account != nil {
		conn.ExternalAccountID = account.ID
		conn.ExternalAccountName = account.Name
	}
	if err := s.connections.UpsertAPIKey(ctx, conn); err != nil {
		return nil, fmt.Errorf("save api key connection: %w", err)
	}

	s.logger.Info("api key connection established",
		"provider", req.Provider,
		"account_key", req.AccountKey)

	return &driving.ValidateResponse{
		Provider: req.Provider,
		Mode:     domain.ConnectionTypeAPIKey,
		Account:  account,
	}, nil
}

// Validate checks a credential without persisting anything. With a raw API
// key it asks the provider directly; with an account key it revalidates the
// stored connection.
func (s *connectionService) Validate(ctx context.Context, req driving.ValidateRequest) (*driving.ValidateResponse, error) {
	adapter, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	if req.APIKey != "" {
		if adapter.APIKey == nil {
			return nil, fmt.Errorf("%w: %s does not support api keys", domain.ErrMissingCapability, req.Provider)
		}
		account, err := adapter.APIKey.ValidateKey(ctx, req.APIKey)
		if err != nil {
			return nil, fmt.Errorf("validate api key: %w", err)
		}
		return &driving.ValidateResponse{
			Provider: req.Provider,
			Mode:     domain.ConnectionTypeAPIKey,
			Account:  account,
		}, nil
	}

	if req.AccountKey == "" {
		return nil, fmt.Errorf("%w: account key or api key is required", domain.ErrInvalidInput)
	}
	return s.validateStored(ctx, adapter, req.AccountKey)
}

// validateStored revalidates whatever connection the tenant holds for the
// provider, oauth first.
func (s *connectionService) validateStored(ctx context.Context, adapter *domain.Adapter, accountKey string) (*driving.ValidateResponse, error) {
	oauth, err := s.connections.GetOAuth(ctx, accountKey, adapter.Provider)
	if err != nil {
		return nil, fmt.Errorf("get oauth connection: %w", err)
	}
	if oauth != nil {
		resp := &driving.ValidateResponse{
			Provider: adapter.Provider,
			Mode:     domain.ConnectionTypeOAuth,
		}
		if oauth.LocationID != "" {
			resp.Location = &domain.LocationDetails{ID: oauth.LocationID, Name: oauth.LocationName}
		}
		return resp, nil
	}

	apiKey, err := s.connections.GetAPIKey(ctx, accountKey, adapter.Provider)
	if err != nil {
		return nil, fmt.Errorf("get api key connection: %w", err)
	}
	if apiKey == nil {
		return nil, fmt.Errorf("%w: %s for account %s", domain.ErrNotConnected, adapter.Provider, accountKey)
	}
	if adapter.APIKey == nil {
		return nil, fmt.Errorf("%w: %s does not support api keys", domain.ErrMissingCapability, adapter.Provider)
	}

	account, err := adapter.APIKey.ValidateKey(ctx, apiKey.APIKey)
	if err != nil {
		return nil, fmt.Errorf("validate stored api key: %w", err)
	}
	return &driving.ValidateResponse{
		Provider: adapter.Provider,
		Mode:     domain.ConnectionTypeAPIKey,
		Account:  account,
	}, nil
}

// Disconnect removes the tenant's connection rows for one provider. Removing
// a connection that does not exist is not an error.
func (s *connectionService) Disconnect(ctx context.Context, accountKey string, provider domain.Provider) error {
	if accountKey == "" {
		return fmt.Errorf("%w: account key is required", domain.ErrInvalidInput)
	}
	if _, err := s.registry.Get(provider); err != nil {
		return err
	}

	removedOAuth, err := s.connections.RemoveOAuth(ctx, accountKey, provider)
	if err != nil {
		return fmt.Errorf("remove oauth connection: %w", err)
	}
	removedKey, err := s.connections.RemoveAPIKey(ctx, accountKey, provider)
	if err != nil {
		return fmt.Errorf("remove api key connection: %w", err)
	}

	// Drop a stale explicit choice pointing at the provider just removed so
	// resolution falls back to install order or the default.
	settings, err := s.settings.Get(ctx, accountKey)
	if err != nil {
		return fmt.Errorf("get account settings: %w", err)
	}
	if settings != nil && settings.ESPProvider == provider {
		if err := s.settings.ClearProvider(ctx, accountKey); err != nil {
			return fmt.Errorf("clear provider setting: %w", err)
		}
	}

	s.logger.Info("provider disconnected",
		"provider", provider,
		"account_key", accountKey,
		"had_oauth", removedOAuth,
		"had_api_key", removedKey)
	return nil
}

// Status resolves the tenant-level and per-provider connection view.
func (s *connectionService) Status(ctx context.Context, accountKey string) (*domain.AccountConnectionSummary, []*domain.ConnectionStatus, error) {
	if accountKey == "" {
		return nil, nil, fmt.Errorf("%w: account key is required", domain.ErrInvalidInput)
	}
	return s.resolver.AccountSummary(ctx, accountKey)
}

// CustomValueReadiness reports custom-value sync readiness for one provider.
func (s *connectionService) CustomValueReadiness(ctx context.Context, accountKey string, provider domain.Provider) (*domain.CustomValueSyncReadiness, error) {
	if accountKey == "" {
		return nil, fmt.Errorf("%w: account key is required", domain.ErrInvalidInput)
	}
	return s.resolver.CustomValueReadiness(ctx, accountKey, provider)
}

// Catalog lists registered providers with capabilities. With a tenant key,
// each entry also carries that tenant's connection status.
func (s *connectionService) Catalog(ctx context.Context, accountKey string) ([]*driving.ProviderCatalogEntry, error) {
	providers := s.registry.Providers()
	entries := make([]*driving.ProviderCatalogEntry, 0, len(providers))
	for _, provider := range providers {
		adapter, err := s.registry.Get(provider)
		if err != nil {
			return nil, err
		}
		entry := &driving.ProviderCatalogEntry{
			Provider:     provider,
			Name:         adapter.Name,
			Capabilities: adapter.Capabilities,
		}
		if accountKey != "" {
			status, err := s.resolver.ProviderStatus(ctx, accountKey, provider)
			if err != nil {
				return nil, err
			}
			entry.Status = status
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
