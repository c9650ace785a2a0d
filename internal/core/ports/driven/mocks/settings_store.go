package mocks

import (
	"context"
	"sync"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// MockAccountSettingsStore is an in-memory AccountSettingsStore for testing.
type MockAccountSettingsStore struct {
	mu       sync.RWMutex
	settings map[string]*domain.AccountSettings
}

// NewMockAccountSettingsStore creates a new MockAccountSettingsStore.
func NewMockAccountSettingsStore() *MockAccountSettingsStore {
	return &MockAccountSettingsStore{
		settings: make(map[string]*domain.AccountSettings),
	}
}

func (m *MockAccountSettingsStore) Get(ctx context.Context, accountKey string) (*domain.AccountSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settings[accountKey]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *MockAccountSettingsStore) SetProvider(ctx context.Context, accountKey string, provider domain.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[accountKey] = &domain.AccountSettings{
		AccountKey:  accountKey,
		ESPProvider: provider,
	}
	return nil
}

func (m *MockAccountSettingsStore) ClearProvider(ctx context.Context, accountKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.settings, accountKey)
	return nil
}
