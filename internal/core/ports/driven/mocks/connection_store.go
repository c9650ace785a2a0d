package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// MockConnectionStore is an in-memory ConnectionStore for testing.
type MockConnectionStore struct {
	mu     sync.RWMutex
	oauth  map[string]*domain.OAuthConnection     // key: accountKey:provider
	apiKey map[string]*domain.APIKeyConnection    // key: accountKey:provider
	agency map[domain.Provider]*domain.AgencyOAuthConnection
}

// NewMockConnectionStore creates a new MockConnectionStore.
func NewMockConnectionStore() *MockConnectionStore {
	return &MockConnectionStore{
		oauth:  make(map[string]*domain.OAuthConnection),
		apiKey: make(map[string]*domain.APIKeyConnection),
		agency: make(map[domain.Provider]*domain.AgencyOAuthConnection),
	}
}

func connKey(accountKey string, provider domain.Provider) string {
	return accountKey + ":" + string(provider)
}

func (m *MockConnectionStore) UpsertOAuth(ctx context.Context, conn *domain.OAuthConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *conn
	if c.InstalledAt.IsZero() {
		if existing, ok := m.oauth[connKey(c.AccountKey, c.Provider)]; ok {
			c.InstalledAt = existing.InstalledAt
		} else {
			c.InstalledAt = time.Now()
		}
	}
	c.UpdatedAt = time.Now()
	m.oauth[connKey(c.AccountKey, c.Provider)] = &c
	return nil
}

func (m *MockConnectionStore) GetOAuth(ctx context.Context, accountKey string, provider domain.Provider) (*domain.OAuthConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.oauth[connKey(accountKey, provider)]
	if !ok {
		return nil, nil
	}
	c := *conn
	return &c, nil
}

func (m *MockConnectionStore) ListOAuth(ctx context.Context, filter driven.ConnectionFilter) ([]*domain.OAuthConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.OAuthConnection
	for _, conn := range m.oauth {
		if !matchesFilter(conn.AccountKey, conn.Provider, filter) {
			continue
		}
		c := *conn
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InstalledAt.After(out[j].InstalledAt)
	})
	return out, nil
}

func (m *MockConnectionStore) RemoveOAuth(ctx context.Context, accountKey string, provider domain.Provider) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := connKey(accountKey, provider)
	_, ok := m.oauth[key]
	delete(m.oauth, key)
	return ok, nil
}

func (m *MockConnectionStore) UpsertAPIKey(ctx context.Context, conn *domain.APIKeyConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *conn
	if c.InstalledAt.IsZero() {
		if existing, ok := m.apiKey[connKey(c.AccountKey, c.Provider)]; ok {
			c.InstalledAt = existing.InstalledAt
		} else {
			c.InstalledAt = time.Now()
		}
	}
	c.UpdatedAt = time.Now()
	m.apiKey[connKey(c.AccountKey, c.Provider)] = &c
	return nil
}

func (m *MockConnectionStore) GetAPIKey(ctx context.Context, accountKey string, provider domain.Provider) (*domain.APIKeyConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.apiKey[connKey(accountKey, provider)]
	if !ok {
		return nil, nil
	}
	c := *conn
	return &c, nil
}

func (m *MockConnectionStore) ListAPIKeys(ctx context.Context, filter driven.ConnectionFilter) ([]*domain.APIKeyConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.APIKeyConnection
	for _, conn := range m.apiKey {
		if !matchesFilter(conn.AccountKey, conn.Provider, filter) {
			continue
		}
		c := *conn
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InstalledAt.After(out[j].InstalledAt)
	})
	return out, nil
}

func (m *MockConnectionStore) RemoveAPIKey(ctx context.Context, accountKey string, provider domain.Provider) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := connKey(accountKey, provider)
	_, ok := m.apiKey[key]
	delete(m.apiKey, key)
	return ok, nil
}

func (m *MockConnectionStore) UpsertAgency(ctx context.Context, conn *domain.AgencyOAuthConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *conn
	if c.InstalledAt.IsZero() {
		c.InstalledAt = time.Now()
	}
	c.UpdatedAt = time.Now()
	m.agency[c.Provider] = &c
	return nil
}

func (m *MockConnectionStore) GetAgency(ctx context.Context, provider domain.Provider) (*domain.AgencyOAuthConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.agency[provider]
	if !ok {
		return nil, nil
	}
	c := *conn
	return &c, nil
}

func (m *MockConnectionStore) RemoveAgency(ctx context.Context, provider domain.Provider) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.agency[provider]
	delete(m.agency, provider)
	return ok, nil
}

func matchesFilter(accountKey string, provider domain.Provider, filter driven.ConnectionFilter) bool {
	if filter.Provider != "" && provider != filter.Provider {
		return false
	}
	if len(filter.AccountKeys) > 0 {
		for _, k := range filter.AccountKeys {
			if k == accountKey {
				return true
			}
		}
		return false
	}
	return true
}
