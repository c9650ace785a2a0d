package domain

import "time"

// ConnectionType classifies how a tenant is connected to a provider.
type ConnectionType string

const (
	ConnectionTypeOAuth  ConnectionType = "oauth"
	ConnectionTypeAPIKey ConnectionType = "api-key"
	ConnectionTypeNone   ConnectionType = "none"
)

// ConnectionStatus is the derived per-(tenant, provider) view. Recomputed
// on every request from stored connections plus tenant configuration;
// never cached beyond a single request.
type ConnectionStatus struct {
	Provider       Provider       `json:"provider"`
	Connected      bool           `json:"connected"`
	ConnectionType ConnectionType `json:"connection_type"`
	OAuthConnected bool           `json:"oauth_connected"`

	LocationID   string   `json:"location_id,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`

	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`

	InstalledAt *time.Time `json:"installed_at,omitempty"`
}

// AccountConnectionSummary is the derived tenant-level view.
type AccountConnectionSummary struct {
	AccountKey         string            `json:"account_key"`
	ConnectedProviders []Provider        `json:"connected_providers"`
	ActiveProvider     Provider          `json:"active_provider"`
	ActiveConnection   *ConnectionStatus `json:"active_connection,omitempty"`
}

// CustomValueSyncReadiness reports whether a tenant's grant carries the
// scopes custom-value sync needs for one provider.
type CustomValueSyncReadiness struct {
	Provider             Provider `json:"provider"`
	RequiredScopes       []string `json:"required_scopes"`
	HasRequiredScopes    bool     `json:"has_required_scopes"`
	NeedsReauthorization bool     `json:"needs_reauthorization"`
	ReadyForSync         bool     `json:"ready_for_sync"`
}

// AccountSettings is the slice of tenant configuration this subsystem
// reads: the explicitly chosen provider, if any. Persistence of the full
// tenant record is an external collaborator.
type AccountSettings struct {
	AccountKey  string   `json:"account_key"`
	ESPProvider Provider `json:"esp_provider,omitempty"` // empty = not set
}
