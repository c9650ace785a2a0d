package ghl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// Ensure TemplatesModule implements the interface.
var _ domain.TemplatesModule = (*TemplatesModule)(nil)

// TemplatesModule performs GHL template operations.
type TemplatesModule struct {
	client *Client
}

// NewTemplatesModule creates the GHL templates module.
func NewTemplatesModule(cfg Config) *TemplatesModule {
	return &TemplatesModule{client: NewClient(cfg.baseURL())}
}

type listTemplatesResponse struct {
	Templates []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"templates"`
}

// LookupRemoteID maps a platform template ID (which GHL sees as the
// template name) to the GHL-side template ID. Absence is a normal outcome:
// callers treat a missing mapping as "push a fresh copy".
func (m *TemplatesModule) LookupRemoteID(ctx context.Context, creds *domain.ResolvedCredentials, templateID string) (string, bool, error) {
	path := "/emails/templates?locationId=" + url.QueryEscape(creds.LocationID)

	var resp listTemplatesResponse
	if err := m.client.do(ctx, creds.AccessToken, http.MethodGet, path, nil, &resp); err != nil {
		return "", false, fmt.Errorf("list ghl templates: %w", err)
	}

	for _, t := range resp.Templates {
		if t.Name == templateID {
			return t.ID, true, nil
		}
	}
	return "", false, nil
}

type pushTemplateRequest struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	HTML       string `json:"html"`
}

type pushTemplateResponse struct {
	ID string `json:"id"`
}

// PushTemplate uploads a rendered template and returns its GHL ID.
func (m *TemplatesModule) PushTemplate(ctx context.Context, creds *domain.ResolvedCredentials, name, html string) (string, error) {
	req := pushTemplateRequest{LocationID: creds.LocationID, Name: name, HTML: html}

	var resp pushTemplateResponse
	if err := m.client.do(ctx, creds.AccessToken, http.MethodPost, "/emails/templates", req, &resp); err != nil {
		return "", fmt.Errorf("push ghl template: %w", err)
	}
	return resp.ID, nil
}
