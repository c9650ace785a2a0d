package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// Ensure AccountSettingsStore implements the interface.
var _ driven.AccountSettingsStore = (*AccountSettingsStore)(nil)

// AccountSettingsStore implements driven.AccountSettingsStore using
// PostgreSQL. It holds only the explicit ESP provider choice per tenant;
// the full tenant record lives elsewhere.
type AccountSettingsStore struct {
	db *sql.DB
}

// NewAccountSettingsStore creates a new PostgreSQL-backed settings store.
func NewAccountSettingsStore(db *sql.DB) *AccountSettingsStore {
	return &AccountSettingsStore{db: db}
}

// Get returns the tenant's settings, or nil, nil when unset.
func (s *AccountSettingsStore) Get(ctx context.Context, accountKey string) (*domain.AccountSettings, error) {
	var settings domain.AccountSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT account_key, esp_provider FROM account_settings WHERE account_key = $1`,
		accountKey,
	).Scan(&settings.AccountKey, &settings.ESPProvider)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account settings: %w", err)
	}
	return &settings, nil
}

// SetProvider records the tenant's explicit provider choice.
func (s *AccountSettingsStore) SetProvider(ctx context.Context, accountKey string, provider domain.Provider) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_settings (account_key, esp_provider, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account_key) DO UPDATE SET
			esp_provider = EXCLUDED.esp_provider,
			updated_at = NOW()
	`, accountKey, provider)
	if err != nil {
		return fmt.Errorf("set account provider: %w", err)
	}
	return nil
}

// ClearProvider removes the explicit choice.
func (s *AccountSettingsStore) ClearProvider(ctx context.Context, accountKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM account_settings WHERE account_key = $1`,
		accountKey,
	)
	if err != nil {
		return fmt.Errorf("clear account provider: %w", err)
	}
	return nil
}
