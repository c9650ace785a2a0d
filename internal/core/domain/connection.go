package domain

import "time"

// OAuthConnection is a tenant's OAuth grant for one provider.
// Token fields hold plaintext in memory only; the store encrypts them
// before persisting and decrypts on read.
type OAuthConnection struct {
	AccountKey string   `json:"account_key"`
	Provider   Provider `json:"provider"`

	AccessToken  string `json:"-"` // Never serialize
	RefreshToken string `json:"-"` // Never serialize

	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	Scopes         []string   `json:"scopes,omitempty"`

	// LocationID/LocationName identify the ESP-side sub-account bound to
	// this tenant (agency-style providers).
	LocationID   string `json:"location_id,omitempty"`
	LocationName string `json:"location_name,omitempty"`

	InstalledAt time.Time `json:"installed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsExpired checks if the access token has expired.
func (c *OAuthConnection) IsExpired() bool {
	if c.TokenExpiresAt == nil {
		return false
	}
	return time.Now().After(*c.TokenExpiresAt)
}

// NeedsRefresh checks if the token should be refreshed (within 5 min of expiry).
func (c *OAuthConnection) NeedsRefresh() bool {
	if c.TokenExpiresAt == nil {
		return false
	}
	return time.Now().Add(5 * time.Minute).After(*c.TokenExpiresAt)
}

// HasScope reports whether the stored grant includes the given OAuth scope.
func (c *OAuthConnection) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// APIKeyConnection is a tenant's API-key credential for one provider.
type APIKeyConnection struct {
	AccountKey string   `json:"account_key"`
	Provider   Provider `json:"provider"`

	APIKey string `json:"-"` // Never serialize

	// ExternalAccountID/Name identify the provider-side account the key
	// belongs to, captured at validation time for display.
	ExternalAccountID   string `json:"external_account_id,omitempty"`
	ExternalAccountName string `json:"external_account_name,omitempty"`

	InstalledAt time.Time `json:"installed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AgencyOAuthConnection is a single org-level OAuth grant for a provider,
// shared across many tenant locations. Keyed by provider alone.
type AgencyOAuthConnection struct {
	Provider Provider `json:"provider"`

	AccessToken  string `json:"-"` // Never serialize
	RefreshToken string `json:"-"` // Never serialize

	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	Scopes         []string   `json:"scopes,omitempty"`
	CompanyID      string     `json:"company_id,omitempty"`

	InstalledAt time.Time `json:"installed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ResolvedCredentials is what capability modules receive to call the
// provider's API on behalf of one tenant.
type ResolvedCredentials struct {
	Provider   Provider
	AccountKey string

	// Exactly one of the token pair or APIKey is set, per connection type.
	AccessToken  string
	RefreshToken string
	APIKey       string

	LocationID string
}

// ExternalAccount describes the provider-side account a credential maps to,
// as reported by the provider during validation.
type ExternalAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LocationDetails describes an ESP-side sub-account fetched after an OAuth
// exchange.
type LocationDetails struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OAuthTokens is the result of exchanging an authorization code.
type OAuthTokens struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	Scopes         []string
	LocationID     string
	CompanyID      string
}
