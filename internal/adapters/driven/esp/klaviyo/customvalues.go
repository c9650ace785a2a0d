package klaviyo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// Ensure CustomValuesModule implements the interface.
var _ domain.CustomValuesModule = (*CustomValuesModule)(nil)

// CustomValuesModule syncs tenant merge fields into Klaviyo as universal
// content blocks. API-key auth carries no scopes, so sync is always
// authorized once the key validates.
type CustomValuesModule struct {
	client *Client
}

// NewCustomValuesModule creates the Klaviyo custom values module.
func NewCustomValuesModule(cfg Config) *CustomValuesModule {
	return &CustomValuesModule{client: NewClient(cfg.baseURL())}
}

type universalContentRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Name       string `json:"name"`
			Definition struct {
				ContentType string `json:"content_type"`
				Type        string `json:"type"`
				Body        string `json:"body"`
			} `json:"definition"`
		} `json:"attributes"`
	} `json:"data"`
}

// SyncCustomValues writes each value as one named universal content block.
func (m *CustomValuesModule) SyncCustomValues(ctx context.Context, creds *domain.ResolvedCredentials, values map[string]string) error {
	for name, value := range values {
		var req universalContentRequest
		req.Data.Type = "template-universal-content"
		req.Data.Attributes.Name = name
		req.Data.Attributes.Definition.ContentType = "block"
		req.Data.Attributes.Definition.Type = "text"
		req.Data.Attributes.Definition.Body = value

		if err := m.client.do(ctx, creds.APIKey, http.MethodPost, "/api/template-universal-content", req, nil); err != nil {
			return fmt.Errorf("sync klaviyo custom value %q: %w", name, err)
		}
	}
	return nil
}
