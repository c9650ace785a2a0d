package domain

import "context"

// Capabilities declares what one ESP adapter can do. An explicit struct
// with optional modules on the Adapter replaces property-presence checks:
// every capability test is a typed nil check.
type Capabilities struct {
	Auth         AuthSupport `json:"auth"`
	Contacts     bool        `json:"contacts"`
	Campaigns    bool        `json:"campaigns"`
	Webhooks     bool        `json:"webhooks"`
	CustomValues bool        `json:"custom_values"`
}

// Adapter is one provider's descriptor: identity, capability flags, and
// the optional capability modules implementing them. Registered once at
// startup and never mutated.
type Adapter struct {
	Provider     Provider
	Name         string
	Capabilities Capabilities

	// OAuth is set for providers using OAuth connections.
	OAuth OAuthModule

	// APIKey is set for providers using API-key connections.
	APIKey APIKeyModule

	Contacts    ContactsModule
	Campaigns   CampaignsModule
	Templates   TemplatesModule
	CustomVals  CustomValuesModule
	AccountSync AccountDetailsSyncer
}

// OAuthModule drives a provider's OAuth authorization flow.
type OAuthModule interface {
	// RequiredScopes lists the OAuth scopes custom-value sync depends on.
	RequiredScopes() []string

	// AuthorizationURL builds the provider consent URL carrying the signed
	// state token.
	AuthorizationURL(state string, mode ConnectMode) (string, error)

	// ExchangeCode trades an authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*OAuthTokens, error)

	// RefreshTokens trades a refresh token for a fresh token pair.
	RefreshTokens(ctx context.Context, refreshToken string) (*OAuthTokens, error)

	// FetchLocationDetails resolves the ESP-side sub-account for a fresh
	// grant. Returns nil when the provider has no location concept.
	FetchLocationDetails(ctx context.Context, tokens *OAuthTokens) (*LocationDetails, error)
}

// APIKeyModule validates direct API-key credentials.
type APIKeyModule interface {
	// ValidateKey checks the key against the provider's API and returns
	// the account it belongs to.
	ValidateKey(ctx context.Context, apiKey string) (*ExternalAccount, error)
}

// Contact is the provider-neutral contact shape.
type Contact struct {
	Email     string            `json:"email"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// ContactsModule performs contact operations against one provider.
type ContactsModule interface {
	// ResolveCredentials returns the tenant's usable credentials for this
	// provider, or ErrNotConnected.
	ResolveCredentials(ctx context.Context, accountKey string) (*ResolvedCredentials, error)

	// UpsertContact creates or updates a contact.
	UpsertContact(ctx context.Context, creds *ResolvedCredentials, contact Contact) error
}

// Campaign is the provider-neutral campaign shape.
type Campaign struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Subject  string `json:"subject,omitempty"`
	BodyHTML string `json:"body_html,omitempty"`
	ListID   string `json:"list_id,omitempty"`
}

// CampaignsModule performs campaign operations against one provider.
type CampaignsModule interface {
	// CreateCampaign creates a campaign and returns its provider-side ID.
	CreateCampaign(ctx context.Context, creds *ResolvedCredentials, campaign Campaign) (string, error)

	// ListCampaigns returns the tenant's campaigns known to the provider.
	ListCampaigns(ctx context.Context, creds *ResolvedCredentials) ([]Campaign, error)
}

// TemplatesModule performs template operations against one provider.
type TemplatesModule interface {
	// LookupRemoteID maps a platform template ID to the provider-side
	// template ID. The boolean is false when no mapping exists; that is a
	// normal outcome, not an error, and callers fall back deliberately.
	LookupRemoteID(ctx context.Context, creds *ResolvedCredentials, templateID string) (string, bool, error)

	// PushTemplate uploads a rendered template and returns its remote ID.
	PushTemplate(ctx context.Context, creds *ResolvedCredentials, name, html string) (string, error)
}

// CustomValuesModule syncs tenant merge fields into the provider.
type CustomValuesModule interface {
	SyncCustomValues(ctx context.Context, creds *ResolvedCredentials, values map[string]string) error
}

// AccountDetailsSyncer refreshes provider-side account metadata for a
// tenant (display names, expiring tokens). Used by the hygiene scan.
type AccountDetailsSyncer interface {
	SyncAccountDetails(ctx context.Context, accountKey string) error
}
