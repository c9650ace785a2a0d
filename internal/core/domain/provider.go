package domain

import "strings"

// Provider identifies an ESP (email/SMS service provider).
type Provider string

const (
	// ProviderGHL is the GoHighLevel-style agency ESP (OAuth based).
	ProviderGHL Provider = "ghl"

	// ProviderKlaviyo is the Klaviyo-style ESP (API-key based).
	ProviderKlaviyo Provider = "klaviyo"
)

// KnownProviders returns the closed set of provider identifiers the
// platform can ever talk to. Registration narrows this further to the
// providers actually wired in at startup.
func KnownProviders() []Provider {
	return []Provider{
		ProviderGHL,
		ProviderKlaviyo,
	}
}

// ParseProvider normalizes and validates a provider identifier taken from
// any ingestion path (query param, stored config, webhook path segment).
// Unknown identifiers are rejected, never passed through.
func ParseProvider(raw string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range KnownProviders() {
		if p == known {
			return p, nil
		}
	}
	return "", ErrUnregisteredProvider
}

// AuthSupport describes which credential shapes a provider accepts.
type AuthSupport string

const (
	AuthSupportOAuth  AuthSupport = "oauth"
	AuthSupportAPIKey AuthSupport = "api-key"
	AuthSupportBoth   AuthSupport = "both"
)

// SupportsOAuth reports whether OAuth connections are accepted.
func (a AuthSupport) SupportsOAuth() bool {
	return a == AuthSupportOAuth || a == AuthSupportBoth
}

// SupportsAPIKey reports whether API-key connections are accepted.
func (a AuthSupport) SupportsAPIKey() bool {
	return a == AuthSupportAPIKey || a == AuthSupportBoth
}

// ConnectMode distinguishes a per-tenant OAuth install from an
// agency-level grant shared across tenant locations.
type ConnectMode string

const (
	ConnectModeAccount ConnectMode = "account"
	ConnectModeAgency  ConnectMode = "agency"
)

// ParseConnectMode validates a mode query parameter, defaulting to account.
func ParseConnectMode(raw string) (ConnectMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "account":
		return ConnectModeAccount, nil
	case "agency":
		return ConnectModeAgency, nil
	default:
		return "", ErrInvalidInput
	}
}
