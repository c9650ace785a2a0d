package klaviyo

import (
	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// NewAdapter assembles the Klaviyo adapter descriptor. No OAuth module:
// Klaviyo connects by API key, and custom values carry no scope
// requirements.
func NewAdapter(cfg Config, connections driven.ConnectionStore) *domain.Adapter {
	return &domain.Adapter{
		Provider: domain.ProviderKlaviyo,
		Name:     "Klaviyo",
		Capabilities: domain.Capabilities{
			Auth:         domain.AuthSupportAPIKey,
			Contacts:     true,
			Campaigns:    true,
			Webhooks:     true,
			CustomValues: true,
		},
		APIKey:     NewAPIKeyModule(cfg),
		Contacts:   NewContactsModule(connections, cfg),
		Campaigns:  NewCampaignsModule(cfg),
		CustomVals: NewCustomValuesModule(cfg),
	}
}
