// Package ghl implements the GoHighLevel-style ESP adapter: OAuth
// connections (per-tenant location grants and agency-level company
// grants), contacts, campaigns, templates and custom values.
package ghl

import (
	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// NewAdapter assembles the GHL adapter descriptor.
func NewAdapter(cfg Config, connections driven.ConnectionStore) (*domain.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &domain.Adapter{
		Provider: domain.ProviderGHL,
		Name:     "GoHighLevel",
		Capabilities: domain.Capabilities{
			Auth:         domain.AuthSupportOAuth,
			Contacts:     true,
			Campaigns:    true,
			Webhooks:     true,
			CustomValues: true,
		},
		OAuth:      NewOAuthModule(cfg),
		Contacts:   NewContactsModule(connections, cfg),
		Campaigns:  NewCampaignsModule(cfg),
		Templates:  NewTemplatesModule(cfg),
		CustomVals: NewCustomValuesModule(cfg),
	}, nil
}
