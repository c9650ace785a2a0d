package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// MockEmailStatsStore is an in-memory EmailStatsStore for testing. Its
// Increment holds one lock for the whole upsert, mirroring the atomicity
// the real store gets from a single SQL statement.
type MockEmailStatsStore struct {
	mu    sync.Mutex
	stats map[domain.EmailStatsKey]*domain.EmailStats
}

// NewMockEmailStatsStore creates a new MockEmailStatsStore.
func NewMockEmailStatsStore() *MockEmailStatsStore {
	return &MockEmailStatsStore{
		stats: make(map[domain.EmailStatsKey]*domain.EmailStats),
	}
}

func (m *MockEmailStatsStore) Increment(ctx context.Context, key domain.EmailStatsKey, kind domain.EmailEventKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.stats[key]
	if !ok {
		row = &domain.EmailStats{EmailStatsKey: key}
		m.stats[key] = row
	}

	now := time.Now()
	row.UpdatedAt = now

	switch kind {
	case domain.EmailEventDelivered:
		row.DeliveredCount++
		if row.FirstDeliveredAt == nil {
			t := now
			row.FirstDeliveredAt = &t
		}
	case domain.EmailEventOpened:
		row.OpenedCount++
	case domain.EmailEventClicked:
		row.ClickedCount++
	case domain.EmailEventBounced:
		row.BouncedCount++
	case domain.EmailEventComplained:
		row.ComplainedCount++
	case domain.EmailEventUnsubscribed:
		row.UnsubscribedCount++
	default:
		return domain.ErrInvalidInput
	}
	return nil
}

func (m *MockEmailStatsStore) Get(ctx context.Context, key domain.EmailStatsKey) (*domain.EmailStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.stats[key]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (m *MockEmailStatsStore) ListByAccount(ctx context.Context, provider domain.Provider, accountKey string) ([]*domain.EmailStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.EmailStats
	for key, row := range m.stats {
		if key.Provider == provider && key.AccountKey == accountKey {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}
