package klaviyo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// Ensure CampaignsModule implements the interface.
var _ domain.CampaignsModule = (*CampaignsModule)(nil)

// CampaignsModule performs Klaviyo campaign operations.
type CampaignsModule struct {
	client *Client
}

// NewCampaignsModule creates the Klaviyo campaigns module.
func NewCampaignsModule(cfg Config) *CampaignsModule {
	return &CampaignsModule{client: NewClient(cfg.baseURL())}
}

type campaignResource struct {
	ID         string `json:"id,omitempty"`
	Type       string `json:"type"`
	Attributes struct {
		Name string `json:"name"`
	} `json:"attributes"`
}

type campaignDocument struct {
	Data campaignResource `json:"data"`
}

type campaignListDocument struct {
	Data []campaignResource `json:"data"`
}

// CreateCampaign creates a campaign and returns its Klaviyo ID.
func (m *CampaignsModule) CreateCampaign(ctx context.Context, creds *domain.ResolvedCredentials, campaign domain.Campaign) (string, error) {
	var req campaignDocument
	req.Data.Type = "campaign"
	req.Data.Attributes.Name = campaign.Name

	var resp campaignDocument
	if err := m.client.do(ctx, creds.APIKey, http.MethodPost, "/api/campaigns", req, &resp); err != nil {
		return "", fmt.Errorf("create klaviyo campaign: %w", err)
	}
	return resp.Data.ID, nil
}

// ListCampaigns returns the account's email campaigns.
func (m *CampaignsModule) ListCampaigns(ctx context.Context, creds *domain.ResolvedCredentials) ([]domain.Campaign, error) {
	path := `/api/campaigns?filter=equals(messages.channel,"email")`

	var resp campaignListDocument
	if err := m.client.do(ctx, creds.APIKey, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list klaviyo campaigns: %w", err)
	}

	out := make([]domain.Campaign, 0, len(resp.Data))
	for _, c := range resp.Data {
		out = append(out, domain.Campaign{ID: c.ID, Name: c.Attributes.Name})
	}
	return out, nil
}
