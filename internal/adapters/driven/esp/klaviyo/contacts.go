package klaviyo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// Ensure ContactsModule implements the interface.
var _ domain.ContactsModule = (*ContactsModule)(nil)

// ContactsModule performs Klaviyo profile operations.
type ContactsModule struct {
	connections driven.ConnectionStore
	client      *Client
}

// NewContactsModule creates the Klaviyo contacts module.
func NewContactsModule(connections driven.ConnectionStore, cfg Config) *ContactsModule {
	return &ContactsModule{
		connections: connections,
		client:      NewClient(cfg.baseURL()),
	}
}

// ResolveCredentials returns the tenant's stored Klaviyo API key.
func (m *ContactsModule) ResolveCredentials(ctx context.Context, accountKey string) (*domain.ResolvedCredentials, error) {
	conn, err := m.connections.GetAPIKey(ctx, accountKey, domain.ProviderKlaviyo)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: account %s has no klaviyo connection", domain.ErrNotConnected, accountKey)
	}
	// The store blanks a key it can no longer decrypt.
	if conn.APIKey == "" {
		return nil, fmt.Errorf("%w: stored klaviyo key is unreadable, reconnect required", domain.ErrAuthorization)
	}
	return &domain.ResolvedCredentials{
		Provider:   domain.ProviderKlaviyo,
		AccountKey: accountKey,
		APIKey:     conn.APIKey,
	}, nil
}

type profileImportRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Email      string            `json:"email"`
			FirstName  string            `json:"first_name,omitempty"`
			LastName   string            `json:"last_name,omitempty"`
			Phone      string            `json:"phone_number,omitempty"`
			Properties map[string]string `json:"properties,omitempty"`
		} `json:"attributes"`
	} `json:"data"`
}

// UpsertContact imports a profile; Klaviyo's profile-import endpoint is an
// upsert by email.
func (m *ContactsModule) UpsertContact(ctx context.Context, creds *domain.ResolvedCredentials, contact domain.Contact) error {
	var req profileImportRequest
	req.Data.Type = "profile"
	req.Data.Attributes.Email = contact.Email
	req.Data.Attributes.FirstName = contact.FirstName
	req.Data.Attributes.LastName = contact.LastName
	req.Data.Attributes.Phone = contact.Phone
	req.Data.Attributes.Properties = contact.Fields

	if err := m.client.do(ctx, creds.APIKey, http.MethodPost, "/api/profile-import", req, nil); err != nil {
		return fmt.Errorf("upsert klaviyo profile: %w", err)
	}
	return nil
}
