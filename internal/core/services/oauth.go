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
	"github.com/bridgeworks/espbridge/internal/statetoken"
)

// Ensure oauthService implements OAuthService
var _ driving.OAuthService = (*oauthService)(nil)

// OAuthServiceConfig holds configuration for the OAuth service.
type OAuthServiceConfig struct {
	// Registry resolves provider adapters.
	Registry *registry.Registry

	// Signer issues and verifies the signed state tokens binding a tenant
	// to one authorization attempt.
	Signer *statetoken.Signer

	// Connections persists completed grants.
	Connections driven.ConnectionStore

	Logger *slog.Logger
}

// oauthService implements the OAuthService interface.
type oauthService struct {
	registry    *registry.Registry
	signer      *statetoken.Signer
	connections driven.ConnectionStore
	logger      *slog.Logger
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(cfg OAuthServiceConfig) driving.OAuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &oauthService{
		registry:    cfg.Registry,
		signer:      cfg.Signer,
		connections: cfg.Connections,
		logger:      logger,
	}
}

// Authorize starts an OAuth authorization flow.
// It signs a state token and returns the provider consent URL.
func (s *oauthService) Authorize(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
	if req.AccountKey == "" {
		return nil, fmt.Errorf("%w: account key is required", domain.ErrInvalidInput)
	}

	adapter, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	if adapter.OAuth == nil {
		return nil, fmt.Errorf("%w: %s does not support oauth", domain.ErrMissingCapability, req.Provider)
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ConnectModeAccount
	}

	state, err := s.signer.Sign(req.Provider, req.AccountKey, mode)
	if err != nil {
		return nil, err
	}

	authURL, err := adapter.OAuth.AuthorizationURL(state, mode)
	if err != nil {
		return nil, fmt.Errorf("build authorization url: %w", err)
	}

	s.logger.Info("oauth flow started",
		"provider", req.Provider,
		"account_key", req.AccountKey,
		"mode", mode)

	return &driving.AuthorizeResponse{
		AuthorizationURL: authURL,
		State:            state,
	}, nil
}

// Callback completes an OAuth flow: verifies the state token, exchanges the
// code and persists the encrypted connection.
func (s *oauthService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	if req.Code == "" || req.State == "" {
		return nil, fmt.Errorf("%w: code and state are required", domain.ErrInvalidInput)
	}

	payload, err := s.verifyState(req)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Get(payload.Provider)
	if err != nil {
		return nil, err
	}
	if adapter.OAuth == nil {
		return nil, fmt.Errorf("%w: %s does not support oauth", domain.ErrMissingCapability, payload.Provider)
	}

	tokens, err := adapter.OAuth.ExchangeCode(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	// Location lookup is best effort: a grant without display metadata is
	// still a working grant.
	location, err := adapter.OAuth.FetchLocationDetails(ctx, tokens)
	if err != nil {
		s.logger.Warn("fetch location details failed",
			"provider", payload.Provider,
			"account_key", payload.AccountKey,
			"error", err)
		location = nil
	}

	if payload.Mode == domain.ConnectModeAgency {
		if err := s.saveAgencyConnection(ctx, payload.Provider, tokens); err != nil {
			return nil, err
		}
	} else {
		if err := s.saveAccountConnection(ctx, payload, tokens, location); err != nil {
			return nil, err
		}
	}

	s.logger.Info("oauth connection established",
		"provider", payload.Provider,
		"account_key", payload.AccountKey,
		"mode", payload.Mode)

	return &driving.CallbackResponse{
		Provider:   payload.Provider,
		AccountKey: payload.AccountKey,
		Mode:       payload.Mode,
		Location:   location,
	}, nil
}

// verifyState resolves and checks the state token. When the redirect carried
// an explicit provider parameter, the token must agree with it; otherwise the
// token alone names the provider. Every failure maps to the same
// authorization error so the redirect target cannot distinguish causes.
func (s *oauthService) verifyState(req driving.CallbackRequest) (*statetoken.Payload, error) {
	opts := statetoken.VerifyOptions{}
	if req.RawProvider != "" {
		provider, err := domain.ParseProvider(req.RawProvider)
		if err != nil {
			return nil, fmt.Errorf("%w: oauth state rejected", domain.ErrAuthorization)
		}
		opts.ExpectedProvider = provider
	}

	payload := s.signer.Verify(req.State, opts)
	if payload == nil {
		return nil, fmt.Errorf("%w: oauth state rejected", domain.ErrAuthorization)
	}
	return payload, nil
}

func (s *oauthService) saveAccountConnection(ctx context.Context, payload *statetoken.Payload, tokens *domain.OAuthTokens, location *domain.LocationDetails) error {
	conn := &domain.OAuthConnection{
		AccountKey:     payload.AccountKey,
		Provider:       payload.Provider,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: tokens.TokenExpiresAt,
		Scopes:         tokens.Scopes,
		LocationID:     tokens.LocationID,
		InstalledAt:    time.Now(),
	}
	if location != nil {
		conn.LocationID = location.ID
		conn.LocationName = location.Name
	}
	if err := s.connections.UpsertOAuth(ctx, conn); err != nil {
		return fmt.Errorf("save oauth connection: %w", err)
	}
	return nil
}

func (s *oauthService) saveAgencyConnection(ctx context.Context, provider domain.Provider, tokens *domain.OAuthTokens) error {
	conn := &domain.AgencyOAuthConnection{
		Provider:       provider,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: tokens.TokenExpiresAt,
		Scopes:         tokens.Scopes,
		CompanyID:      tokens.CompanyID,
		InstalledAt:    time.Now(),
	}
	if err := s.connections.UpsertAgency(ctx, conn); err != nil {
		return fmt.Errorf("save agency oauth connection: %w", err)
	}
	return nil
}
