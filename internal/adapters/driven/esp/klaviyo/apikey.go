package klaviyo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// Ensure APIKeyModule implements the interface.
var _ domain.APIKeyModule = (*APIKeyModule)(nil)

// APIKeyModule validates Klaviyo private API keys.
type APIKeyModule struct {
	client *Client
}

// NewAPIKeyModule creates the Klaviyo API-key module.
func NewAPIKeyModule(cfg Config) *APIKeyModule {
	return &APIKeyModule{client: NewClient(cfg.baseURL())}
}

type accountsResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			ContactInformation struct {
				OrganizationName string `json:"organization_name"`
			} `json:"contact_information"`
		} `json:"attributes"`
	} `json:"data"`
}

// ValidateKey checks the key against the accounts endpoint and returns the
// account it belongs to. An invalid key surfaces as an UpstreamError with
// the provider's 401/403 preserved.
func (m *APIKeyModule) ValidateKey(ctx context.Context, apiKey string) (*domain.ExternalAccount, error) {
	var resp accountsResponse
	if err := m.client.do(ctx, apiKey, http.MethodGet, "/api/accounts", nil, &resp); err != nil {
		return nil, fmt.Errorf("validate klaviyo key: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: key resolves to no account", domain.ErrNotConnected)
	}

	acct := resp.Data[0]
	return &domain.ExternalAccount{
		ID:   acct.ID,
		Name: acct.Attributes.ContactInformation.OrganizationName,
	}, nil
}
