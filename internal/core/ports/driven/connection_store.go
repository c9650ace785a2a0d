package driven

import (
	"context"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// ConnectionFilter narrows connection listings.
type ConnectionFilter struct {
	// Provider limits the listing to one provider when set.
	Provider domain.Provider

	// AccountKeys limits the listing to the given tenants when non-empty.
	AccountKeys []string
}

// ConnectionStore persists tenant↔provider credentials. Implementations
// encrypt secret fields before writing and decrypt them on read; a row
// whose ciphertext no candidate key opens surfaces
// domain.ErrDecryptionFailed for that row.
//
// All mutations are single-row upserts or deletes scoped by primary key;
// read-after-write consistency is required within one tenant.
type ConnectionStore interface {
	// UpsertOAuth inserts or replaces the (accountKey, provider) OAuth row.
	UpsertOAuth(ctx context.Context, conn *domain.OAuthConnection) error

	// GetOAuth returns the row, or nil, nil when absent.
	GetOAuth(ctx context.Context, accountKey string, provider domain.Provider) (*domain.OAuthConnection, error)

	// ListOAuth returns matching rows, newest install first.
	ListOAuth(ctx context.Context, filter ConnectionFilter) ([]*domain.OAuthConnection, error)

	// RemoveOAuth deletes the row, reporting whether it existed.
	RemoveOAuth(ctx context.Context, accountKey string, provider domain.Provider) (bool, error)

	// UpsertAPIKey inserts or replaces the (accountKey, provider) API-key row.
	UpsertAPIKey(ctx context.Context, conn *domain.APIKeyConnection) error

	// GetAPIKey returns the row, or nil, nil when absent.
	GetAPIKey(ctx context.Context, accountKey string, provider domain.Provider) (*domain.APIKeyConnection, error)

	// ListAPIKeys returns matching rows, newest install first.
	ListAPIKeys(ctx context.Context, filter ConnectionFilter) ([]*domain.APIKeyConnection, error)

	// RemoveAPIKey deletes the row, reporting whether it existed.
	RemoveAPIKey(ctx context.Context, accountKey string, provider domain.Provider) (bool, error)

	// UpsertAgency inserts or replaces the provider's org-level grant.
	UpsertAgency(ctx context.Context, conn *domain.AgencyOAuthConnection) error

	// GetAgency returns the org-level grant, or nil, nil when absent.
	GetAgency(ctx context.Context, provider domain.Provider) (*domain.AgencyOAuthConnection, error)

	// RemoveAgency deletes the org-level grant, reporting whether it existed.
	RemoveAgency(ctx context.Context, provider domain.Provider) (bool, error)
}

// RotationResult counts one credential kind's re-encryption outcome.
type RotationResult struct {
	Updated int
	Failed  int
}

// Total returns the number of rows visited.
func (r RotationResult) Total() int { return r.Updated + r.Failed }

// CredentialRotator re-encrypts stored credentials under the newest key.
// Each row is handled independently: a row that fails to decrypt under any
// configured key is counted and skipped, never fatal to the batch. Dry-run
// performs the decrypt/encrypt round-trip without writing.
type CredentialRotator interface {
	ReencryptOAuth(ctx context.Context, dryRun bool) (RotationResult, error)
	ReencryptAPIKeys(ctx context.Context, dryRun bool) (RotationResult, error)
	ReencryptAgency(ctx context.Context, dryRun bool) (RotationResult, error)
}
