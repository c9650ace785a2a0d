package ghl

import (
	"fmt"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

const (
	defaultBaseURL = "https://services.leadconnectorhq.com"
	defaultAuthURL = "https://marketplace.gohighlevel.com/oauth/chooselocation"

	// apiVersion is the calendar-versioned header GHL requires on every call.
	apiVersion = "2021-07-28"
)

// requiredScopes are the OAuth scopes custom-value sync depends on.
var requiredScopes = []string{
	"contacts.readonly",
	"contacts.write",
	"locations.readonly",
	"locations/customValues.readonly",
	"locations/customValues.write",
}

// Config holds the OAuth app credentials for the GHL integration.
type Config struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`

	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string `yaml:"base_url,omitempty"`

	// AuthURL overrides the consent page endpoint, used by tests.
	AuthURL string `yaml:"auth_url,omitempty"`
}

// Validate checks the app credentials are usable.
func (c Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("%w: ghl client id and secret are required", domain.ErrConfiguration)
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("%w: ghl redirect url is required", domain.ErrConfiguration)
	}
	return nil
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c Config) authURL() string {
	if c.AuthURL != "" {
		return c.AuthURL
	}
	return defaultAuthURL
}
