package driven

import (
	"context"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// EmailStatsStore persists per-campaign delivery counters.
//
// Increment must be one atomic upsert (insert-or-increment), never a
// read-modify-write, so concurrent webhook deliveries for the same key
// cannot lose an increment. The first delivered event for a key also
// records FirstDeliveredAt; later delivered events leave it untouched.
type EmailStatsStore interface {
	// Increment bumps the counter for one event kind by one.
	Increment(ctx context.Context, key domain.EmailStatsKey, kind domain.EmailEventKind) error

	// Get returns the counter row, or nil, nil when absent.
	Get(ctx context.Context, key domain.EmailStatsKey) (*domain.EmailStats, error)

	// ListByAccount returns all counter rows for one tenant.
	ListByAccount(ctx context.Context, provider domain.Provider, accountKey string) ([]*domain.EmailStats, error)
}
