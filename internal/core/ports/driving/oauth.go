package driving

import (
	"context"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// OAuthService drives the ESP OAuth connection flow: issuing signed state
// tokens, exchanging callback codes and persisting encrypted connections.
type OAuthService interface {
	// Authorize starts an OAuth authorization flow for one tenant.
	// Returns the provider consent URL to redirect the user to.
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)

	// Callback completes the flow: verifies the state token, exchanges the
	// code and stores the encrypted connection. The provider may be absent
	// from the request; it is then inferred from the state token alone.
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResponse, error)
}

// AuthorizeRequest starts an OAuth flow.
// @Description Request to start an ESP OAuth authorization flow
type AuthorizeRequest struct {
	// AccountKey identifies the tenant connecting the provider.
	AccountKey string `json:"account_key" example:"acct_8f2k1"`

	// Provider is the ESP to connect (ghl, klaviyo, ...).
	Provider domain.Provider `json:"provider" example:"ghl"`

	// Mode selects a per-tenant install or an agency-level grant.
	Mode domain.ConnectMode `json:"mode,omitempty" example:"account"`
}

// AuthorizeResponse carries the provider consent URL.
// @Description Response containing the OAuth authorization URL
type AuthorizeResponse struct {
	// AuthorizationURL is the provider consent URL carrying the signed state.
	AuthorizationURL string `json:"authorization_url"`

	// State is the signed token bound to this attempt, for reference.
	State string `json:"state"`
}

// CallbackRequest is the provider redirect back to the platform.
// @Description OAuth callback parameters from the provider redirect
type CallbackRequest struct {
	// RawProvider is the optional provider query parameter. When empty the
	// provider is resolved from the state token.
	RawProvider string `json:"provider,omitempty" example:"ghl"`

	// Code is the authorization code from the provider.
	Code string `json:"code"`

	// State is the signed state token issued by Authorize.
	State string `json:"state"`
}

// CallbackResponse reports a completed OAuth connection.
// @Description Response after a completed ESP OAuth connection
type CallbackResponse struct {
	Provider   domain.Provider    `json:"provider"`
	AccountKey string             `json:"account_key,omitempty"`
	Mode       domain.ConnectMode `json:"mode"`

	// Location is the ESP-side sub-account bound by this grant, when the
	// provider has one.
	Location *domain.LocationDetails `json:"location,omitempty"`
}
