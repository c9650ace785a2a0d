// Package klaviyo implements the Klaviyo-style API-key ESP adapter:
// direct key validation, contacts and campaigns. Custom values need no
// OAuth scopes here, so the provider is always scope-ready for sync.
package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

const (
	defaultBaseURL = "https://a.klaviyo.com"

	// revision is the date-versioned API revision Klaviyo requires.
	revision = "2024-10-15"
)

// Config holds Klaviyo integration settings.
type Config struct {
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string `yaml:"base_url,omitempty"`
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

// Client calls the Klaviyo REST API with one API key.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Klaviyo API client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// do issues one authenticated request. Non-2xx responses become
// domain.UpstreamError with the upstream status preserved.
func (c *Client) do(ctx context.Context, apiKey, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Klaviyo-API-Key "+apiKey)
	req.Header.Set("revision", revision)
	req.Header.Set("Accept", "application/vnd.api+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("klaviyo request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.UpstreamError{
			Provider:   domain.ProviderKlaviyo,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode klaviyo response: %w", err)
	}
	return nil
}
