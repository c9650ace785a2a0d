package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
	"github.com/bridgeworks/espbridge/internal/registry"
	"github.com/bridgeworks/espbridge/internal/worker"
)

// hygieneLockName guards the singleton hygiene scan across instances.
const hygieneLockName = "hygiene-scan"

// HygieneReport summarizes one scan.
type HygieneReport struct {
	OAuthScanned   int
	OAuthRefreshed int
	APIKeysScanned int
	APIKeysValid   int
	APIKeysInvalid int
	Errors         int
}

// HygieneServiceConfig holds configuration for the hygiene scan.
type HygieneServiceConfig struct {
	Registry    *registry.Registry
	Connections driven.ConnectionStore

	// Lock, when set, makes the scan a cross-instance singleton.
	Lock driven.DistributedLock

	// Concurrency bounds parallel tenant work. Defaults to 8.
	Concurrency int

	LockTTL time.Duration
	Logger  *slog.Logger
}

// HygieneService sweeps stored connections: OAuth grants nearing expiry are
// refreshed, API keys are revalidated against the provider. Every tenant is
// handled independently; failures are logged and counted, never fatal to
// the sweep.
type HygieneService struct {
	registry    *registry.Registry
	connections driven.ConnectionStore
	lock        driven.DistributedLock
	concurrency int
	lockTTL     time.Duration
	logger      *slog.Logger
}

// NewHygieneService creates a new hygiene scan.
func NewHygieneService(cfg HygieneServiceConfig) *HygieneService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &HygieneService{
		registry:    cfg.Registry,
		connections: cfg.Connections,
		lock:        cfg.Lock,
		concurrency: concurrency,
		lockTTL:     ttl,
		logger:      logger,
	}
}

// Run executes one sweep. Returns ErrLockHeld when another instance is
// already scanning.
func (s *HygieneService) Run(ctx context.Context) (*HygieneReport, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, hygieneLockName, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire hygiene lock: %w", err)
		}
		if !acquired {
			return nil, ErrLockHeld
		}
		defer func() {
			if err := s.lock.Release(ctx, hygieneLockName); err != nil {
				s.logger.Warn("release hygiene lock failed", "error", err)
			}
		}()
	}

	oauthRows, err := s.connections.ListOAuth(ctx, driven.ConnectionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list oauth connections: %w", err)
	}
	apiKeyRows, err := s.connections.ListAPIKeys(ctx, driven.ConnectionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list api key connections: %w", err)
	}

	report := &HygieneReport{
		OAuthScanned:   len(oauthRows),
		APIKeysScanned: len(apiKeyRows),
	}
	var mu sync.Mutex

	var tasks []worker.Task
	for _, conn := range oauthRows {
		tasks = append(tasks, func(ctx context.Context) error {
			refreshed, err := s.sweepOAuth(ctx, conn)
			mu.Lock()
			defer mu.Unlock()
			if refreshed {
				report.OAuthRefreshed++
			}
			return err
		})
	}
	for _, conn := range apiKeyRows {
		tasks = append(tasks, func(ctx context.Context) error {
			valid, err := s.sweepAPIKey(ctx, conn)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				// counted below via the task error
			case valid:
				report.APIKeysValid++
			default:
				report.APIKeysInvalid++
			}
			return err
		})
	}

	for _, err := range worker.Run(ctx, tasks, s.concurrency) {
		if err != nil {
			report.Errors++
		}
	}

	s.logger.Info("hygiene scan finished",
		"oauth_scanned", report.OAuthScanned,
		"oauth_refreshed", report.OAuthRefreshed,
		"api_keys_scanned", report.APIKeysScanned,
		"api_keys_invalid", report.APIKeysInvalid,
		"errors", report.Errors)
	return report, nil
}

// sweepOAuth refreshes one grant when it is expiring and the adapter can.
func (s *HygieneService) sweepOAuth(ctx context.Context, conn *domain.OAuthConnection) (bool, error) {
	if !conn.NeedsRefresh() || conn.RefreshToken == "" {
		return false, nil
	}

	adapter, err := s.registry.Get(conn.Provider)
	if err != nil || adapter.OAuth == nil {
		// A stored row for an unregistered or oauth-less provider is stale
		// data, not a scan failure.
		return false, nil
	}

	tokens, err := adapter.OAuth.RefreshTokens(ctx, conn.RefreshToken)
	if err != nil {
		s.logger.Warn("oauth token refresh failed",
			"provider", conn.Provider,
			"account_key", conn.AccountKey,
			"error", err)
		return false, err
	}

	conn.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		conn.RefreshToken = tokens.RefreshToken
	}
	conn.TokenExpiresAt = tokens.TokenExpiresAt
	if len(tokens.Scopes) > 0 {
		conn.Scopes = tokens.Scopes
	}
	if err := s.connections.UpsertOAuth(ctx, conn); err != nil {
		return false, fmt.Errorf("save refreshed tokens: %w", err)
	}
	return true, nil
}

// sweepAPIKey revalidates one stored key. A provider-side rejection marks
// the key invalid without removing it; transport failures are scan errors.
func (s *HygieneService) sweepAPIKey(ctx context.Context, conn *domain.APIKeyConnection) (bool, error) {
	adapter, err := s.registry.Get(conn.Provider)
	if err != nil || adapter.APIKey == nil {
		return true, nil
	}

	account, err := adapter.APIKey.ValidateKey(ctx, conn.APIKey)
	if err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) && (upstream.StatusCode == 401 || upstream.StatusCode == 403) {
			s.logger.Warn("stored api key rejected by provider",
				"provider", conn.Provider,
				"account_key", conn.AccountKey,
				"status", upstream.StatusCode)
			return false, nil
		}
		return false, err
	}

	// Keep display metadata current.
	if account != nil && (account.ID != conn.ExternalAccountID || account.Name != conn.ExternalAccountName) {
		conn.ExternalAccountID = account.ID
		conn.ExternalAccountName = account.Name
		if err := s.connections.UpsertAPIKey(ctx, conn); err != nil {
			return true, fmt.Errorf("save account metadata: %w", err)
		}
	}
	return true, nil
}
