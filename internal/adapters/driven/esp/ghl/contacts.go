package ghl

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// Ensure ContactsModule implements the interface.
var _ domain.ContactsModule = (*ContactsModule)(nil)

// ContactsModule performs GHL contact operations.
type ContactsModule struct {
	connections driven.ConnectionStore
	client      *Client
}

// NewContactsModule creates the GHL contacts module.
func NewContactsModule(connections driven.ConnectionStore, cfg Config) *ContactsModule {
	return &ContactsModule{
		connections: connections,
		client:      NewClient(cfg.baseURL()),
	}
}

// ResolveCredentials returns the tenant's usable GHL credentials: the
// tenant's own OAuth grant when present, else the shared agency grant.
func (m *ContactsModule) ResolveCredentials(ctx context.Context, accountKey string) (*domain.ResolvedCredentials, error) {
	conn, err := m.connections.GetOAuth(ctx, accountKey, domain.ProviderGHL)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		// The store blanks tokens it can no longer decrypt; such a grant
		// is unusable until the tenant reauthorizes.
		if conn.AccessToken == "" {
			return nil, fmt.Errorf("%w: stored ghl tokens are unreadable, reconnect required", domain.ErrAuthorization)
		}
		return &domain.ResolvedCredentials{
			Provider:     domain.ProviderGHL,
			AccountKey:   accountKey,
			AccessToken:  conn.AccessToken,
			RefreshToken: conn.RefreshToken,
			LocationID:   conn.LocationID,
		}, nil
	}

	agency, err := m.connections.GetAgency(ctx, domain.ProviderGHL)
	if err != nil {
		return nil, err
	}
	if agency != nil {
		return &domain.ResolvedCredentials{
			Provider:     domain.ProviderGHL,
			AccountKey:   accountKey,
			AccessToken:  agency.AccessToken,
			RefreshToken: agency.RefreshToken,
		}, nil
	}

	return nil, fmt.Errorf("%w: account %s has no ghl connection", domain.ErrNotConnected, accountKey)
}

type upsertContactRequest struct {
	LocationID string            `json:"locationId"`
	Email      string            `json:"email"`
	FirstName  string            `json:"firstName,omitempty"`
	LastName   string            `json:"lastName,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Custom     map[string]string `json:"customFields,omitempty"`
}

// UpsertContact creates or updates a contact in the tenant's location.
func (m *ContactsModule) UpsertContact(ctx context.Context, creds *domain.ResolvedCredentials, contact domain.Contact) error {
	req := upsertContactRequest{
		LocationID: creds.LocationID,
		Email:      contact.Email,
		FirstName:  contact.FirstName,
		LastName:   contact.LastName,
		Phone:      contact.Phone,
		Tags:       contact.Tags,
		Custom:     contact.Fields,
	}
	if err := m.client.do(ctx, creds.AccessToken, http.MethodPost, "/contacts/upsert", req, nil); err != nil {
		return fmt.Errorf("upsert ghl contact: %w", err)
	}
	return nil
}
