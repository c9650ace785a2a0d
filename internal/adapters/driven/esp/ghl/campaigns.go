package ghl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// Ensure CampaignsModule implements the interface.
var _ domain.CampaignsModule = (*CampaignsModule)(nil)

// CampaignsModule performs GHL campaign operations.
type CampaignsModule struct {
	client *Client
}

// NewCampaignsModule creates the GHL campaigns module.
func NewCampaignsModule(cfg Config) *CampaignsModule {
	return &CampaignsModule{client: NewClient(cfg.baseURL())}
}

type createCampaignRequest struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	Subject    string `json:"subject,omitempty"`
	BodyHTML   string `json:"html,omitempty"`
}

type createCampaignResponse struct {
	ID string `json:"id"`
}

// CreateCampaign creates a campaign and returns its GHL ID.
func (m *CampaignsModule) CreateCampaign(ctx context.Context, creds *domain.ResolvedCredentials, campaign domain.Campaign) (string, error) {
	req := createCampaignRequest{
		LocationID: creds.LocationID,
		Name:       campaign.Name,
		Subject:    campaign.Subject,
		BodyHTML:   campaign.BodyHTML,
	}
	var resp createCampaignResponse
	if err := m.client.do(ctx, creds.AccessToken, http.MethodPost, "/emails/campaigns", req, &resp); err != nil {
		return "", fmt.Errorf("create ghl campaign: %w", err)
	}
	return resp.ID, nil
}

type listCampaignsResponse struct {
	Campaigns []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Subject string `json:"subject"`
	} `json:"campaigns"`
}

// ListCampaigns returns the tenant's campaigns.
func (m *CampaignsModule) ListCampaigns(ctx context.Context, creds *domain.ResolvedCredentials) ([]domain.Campaign, error) {
	path := "/emails/campaigns?locationId=" + url.QueryEscape(creds.LocationID)

	var resp listCampaignsResponse
	if err := m.client.do(ctx, creds.AccessToken, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list ghl campaigns: %w", err)
	}

	out := make([]domain.Campaign, 0, len(resp.Campaigns))
	for _, c := range resp.Campaigns {
		out = append(out, domain.Campaign{ID: c.ID, Name: c.Name, Subject: c.Subject})
	}
	return out, nil
}
