package driven

import (
	"context"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// AccountSettingsStore reads the slice of tenant configuration this
// subsystem cares about: the explicitly chosen ESP provider. The full
// tenant record lives with an external persistence collaborator.
type AccountSettingsStore interface {
	// Get returns the tenant's settings, or nil, nil when the tenant has
	// no explicit provider configured.
	Get(ctx context.Context, accountKey string) (*domain.AccountSettings, error)

	// SetProvider records the tenant's explicit provider choice.
	SetProvider(ctx context.Context, accountKey string, provider domain.Provider) error

	// ClearProvider removes the explicit choice, reverting the tenant to
	// install-order resolution.
	ClearProvider(ctx context.Context, accountKey string) error
}
