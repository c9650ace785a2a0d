package ghl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// Ensure CustomValuesModule implements the interface.
var _ domain.CustomValuesModule = (*CustomValuesModule)(nil)

// CustomValuesModule syncs tenant merge fields into GHL custom values.
type CustomValuesModule struct {
	client *Client
}

// NewCustomValuesModule creates the GHL custom values module.
func NewCustomValuesModule(cfg Config) *CustomValuesModule {
	return &CustomValuesModule{client: NewClient(cfg.baseURL())}
}

type customValuesListResponse struct {
	CustomValues []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"customValues"`
}

type customValueWriteRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SyncCustomValues writes each value into the tenant's location, creating
// missing names and updating existing ones.
func (m *CustomValuesModule) SyncCustomValues(ctx context.Context, creds *domain.ResolvedCredentials, values map[string]string) error {
	base := "/locations/" + url.PathEscape(creds.LocationID) + "/customValues"

	var existing customValuesListResponse
	if err := m.client.do(ctx, creds.AccessToken, http.MethodGet, base, nil, &existing); err != nil {
		return fmt.Errorf("list ghl custom values: %w", err)
	}

	idByName := make(map[string]string, len(existing.CustomValues))
	for _, cv := range existing.CustomValues {
		idByName[cv.Name] = cv.ID
	}

	for name, value := range values {
		req := customValueWriteRequest{Name: name, Value: value}
		var err error
		if id, ok := idByName[name]; ok {
			err = m.client.do(ctx, creds.AccessToken, http.MethodPut, base+"/"+url.PathEscape(id), req, nil)
		} else {
			err = m.client.do(ctx, creds.AccessToken, http.MethodPost, base, req, nil)
		}
		if err != nil {
			return fmt.Errorf("sync ghl custom value %q: %w", name, err)
		}
	}
	return nil
}
