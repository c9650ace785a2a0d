// Package registry holds the process-wide table of ESP adapters and
// resolves which provider is active for a tenant.
//
// The registry is built once during process initialization and never
// mutated afterwards; concurrent reads need no locking.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// Config holds construction inputs for the registry.
type Config struct {
	// DefaultProvider is the configured platform-wide default; empty means
	// "first registered".
	DefaultProvider string

	// Settings reads tenant explicit provider choices.
	Settings driven.AccountSettingsStore

	// Connections reads stored tenant connections for install-order
	// resolution.
	Connections driven.ConnectionStore
}

// Registry is the immutable adapter table.
type Registry struct {
	adapters        map[domain.Provider]*domain.Adapter
	order           []domain.Provider
	defaultProvider domain.Provider
	settings        driven.AccountSettingsStore
	connections     driven.ConnectionStore
}

// New builds the registry from the adapters wired in at startup. Later
// registrations for the same provider replace earlier ones. A configured
// default naming an unregistered provider is a startup-fatal
// configuration error.
func New(cfg Config, adapters ...*domain.Adapter) (*Registry, error) {
	r := &Registry{
		adapters:    make(map[domain.Provider]*domain.Adapter, len(adapters)),
		settings:    cfg.Settings,
		connections: cfg.Connections,
	}

	for _, a := range adapters {
		if a == nil || a.Provider == "" {
			return nil, fmt.Errorf("%w: adapter without provider identifier", domain.ErrConfiguration)
		}
		if _, seen := r.adapters[a.Provider]; !seen {
			r.order = append(r.order, a.Provider)
		}
		r.adapters[a.Provider] = a
	}

	if cfg.DefaultProvider != "" {
		p, err := domain.ParseProvider(cfg.DefaultProvider)
		if err != nil {
			return nil, fmt.Errorf("%w: default provider %q is not a known provider", domain.ErrConfiguration, cfg.DefaultProvider)
		}
		if _, ok := r.adapters[p]; !ok {
			return nil, fmt.Errorf("%w: default provider %q is not registered", domain.ErrConfiguration, p)
		}
		r.defaultProvider = p
	}

	return r, nil
}

// Get returns the adapter for a provider.
func (r *Registry) Get(provider domain.Provider) (*domain.Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnregisteredProvider, provider)
	}
	return a, nil
}

// Has reports whether a provider is registered.
func (r *Registry) Has(provider domain.Provider) bool {
	_, ok := r.adapters[provider]
	return ok
}

// Providers returns registered providers in registration order.
func (r *Registry) Providers() []domain.Provider {
	out := make([]domain.Provider, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultProvider returns the platform default: the configured provider if
// set, else the first registered provider.
func (r *Registry) DefaultProvider() (domain.Provider, error) {
	if r.defaultProvider != "" {
		// Registration was checked at construction; re-check so a caller
		// holding a stale registry cannot observe an unregistered default.
		if _, ok := r.adapters[r.defaultProvider]; !ok {
			return "", fmt.Errorf("%w: default provider %q is not registered", domain.ErrConfiguration, r.defaultProvider)
		}
		return r.defaultProvider, nil
	}
	if len(r.order) == 0 {
		return "", domain.ErrNoProvidersRegistered
	}
	return r.order[0], nil
}

// AccountProvider resolves which provider is active for a tenant:
//
//  1. the tenant's explicit provider setting, which must be registered;
//  2. the most-recently-installed connected provider across OAuth and
//     API-key rows, by install timestamp descending (rows with no install
//     timestamp always lose ties);
//  3. the platform default.
//
// Tenants may connect a provider before explicitly configuring one; this
// fallback chain ensures they are never providerless.
func (r *Registry) AccountProvider(ctx context.Context, accountKey string) (domain.Provider, error) {
	settings, err := r.settings.Get(ctx, accountKey)
	if err != nil {
		return "", fmt.Errorf("get account settings: %w", err)
	}
	if settings != nil && settings.ESPProvider != "" {
		if !r.Has(settings.ESPProvider) {
			return "", fmt.Errorf("%w: account %s configured provider %q", domain.ErrUnregisteredProvider, accountKey, settings.ESPProvider)
		}
		return settings.ESPProvider, nil
	}

	if p, ok, err := r.latestInstalledProvider(ctx, accountKey); err != nil {
		return "", err
	} else if ok {
		return p, nil
	}

	return r.DefaultProvider()
}

// latestInstalledProvider scans the tenant's connection rows for the most
// recent install among registered providers.
func (r *Registry) latestInstalledProvider(ctx context.Context, accountKey string) (domain.Provider, bool, error) {
	filter := driven.ConnectionFilter{AccountKeys: []string{accountKey}}

	oauth, err := r.connections.ListOAuth(ctx, filter)
	if err != nil {
		return "", false, fmt.Errorf("list oauth connections: %w", err)
	}
	apiKeys, err := r.connections.ListAPIKeys(ctx, filter)
	if err != nil {
		return "", false, fmt.Errorf("list api key connections: %w", err)
	}

	var (
		best   domain.Provider
		bestAt time.Time
		found  bool
	)
	consider := func(provider domain.Provider, installedAt time.Time) {
		if !r.Has(provider) {
			return
		}
		// A zero installedAt always loses: it sorts before any real
		// timestamp, and a zero-vs-zero tie keeps the first candidate.
		if !found || installedAt.After(bestAt) {
			best, bestAt, found = provider, installedAt, true
		}
	}
	for _, c := range oauth {
		consider(c.Provider, c.InstalledAt)
	}
	for _, c := range apiKeys {
		consider(c.Provider, c.InstalledAt)
	}

	return best, found, nil
}

// AdapterForAccount resolves the tenant's active provider and returns its
// adapter.
func (r *Registry) AdapterForAccount(ctx context.Context, accountKey string) (*domain.Adapter, error) {
	provider, err := r.AccountProvider(ctx, accountKey)
	if err != nil {
		return nil, err
	}
	return r.Get(provider)
}

// ResolveCredentials returns the tenant's usable credentials for its
// active provider, delegating to the adapter's contacts capability.
func (r *Registry) ResolveCredentials(ctx context.Context, accountKey string) (*domain.ResolvedCredentials, error) {
	adapter, err := r.AdapterForAccount(ctx, accountKey)
	if err != nil {
		return nil, err
	}
	if adapter.Contacts == nil {
		return nil, fmt.Errorf("%w: %s has no contacts capability", domain.ErrMissingCapability, adapter.Provider)
	}
	return adapter.Contacts.ResolveCredentials(ctx, accountKey)
}
