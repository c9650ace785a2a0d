package ghl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
)

// Ensure OAuthModule implements the interface.
var _ domain.OAuthModule = (*OAuthModule)(nil)

// OAuthModule drives the GHL OAuth flow.
type OAuthModule struct {
	cfg        Config
	httpClient *http.Client
	client     *Client
}

// NewOAuthModule creates the GHL OAuth module.
func NewOAuthModule(cfg Config) *OAuthModule {
	return &OAuthModule{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		client:     NewClient(cfg.baseURL()),
	}
}

// RequiredScopes lists the scopes custom-value sync depends on.
func (m *OAuthModule) RequiredScopes() []string {
	out := make([]string, len(requiredScopes))
	copy(out, requiredScopes)
	return out
}

// AuthorizationURL builds the GHL consent URL. Agency mode asks for a
// company-level grant instead of a single location.
func (m *OAuthModule) AuthorizationURL(state string, mode domain.ConnectMode) (string, error) {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {m.cfg.ClientID},
		"redirect_uri":  {m.cfg.RedirectURL},
		"scope":         {strings.Join(requiredScopes, " ")},
		"state":         {state},
	}
	if mode == domain.ConnectModeAgency {
		params.Set("user_type", "Company")
	}
	return m.cfg.authURL() + "?" + params.Encode(), nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	LocationID   string `json:"locationId"`
	CompanyID    string `json:"companyId"`
}

// ExchangeCode trades an authorization code for tokens.
func (m *OAuthModule) ExchangeCode(ctx context.Context, code string) (*domain.OAuthTokens, error) {
	return m.requestTokens(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"code":          {code},
		"redirect_uri":  {m.cfg.RedirectURL},
	})
}

// RefreshTokens trades a refresh token for a fresh pair. GHL rotates the
// refresh token on every use; callers must persist the returned one.
func (m *OAuthModule) RefreshTokens(ctx context.Context, refreshToken string) (*domain.OAuthTokens, error) {
	return m.requestTokens(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	})
}

func (m *OAuthModule) requestTokens(ctx context.Context, form url.Values) (*domain.OAuthTokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.baseURL()+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ghl token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.UpstreamError{
			Provider:   domain.ProviderGHL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	tokens := &domain.OAuthTokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Scopes:       strings.Fields(tr.Scope),
		LocationID:   tr.LocationID,
		CompanyID:    tr.CompanyID,
	}
	if tr.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
		tokens.TokenExpiresAt = &t
	}
	return tokens, nil
}

type locationResponse struct {
	Location struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"location"`
}

// FetchLocationDetails resolves the sub-account a fresh grant is bound to.
// Returns nil for company-level grants, which carry no location.
func (m *OAuthModule) FetchLocationDetails(ctx context.Context, tokens *domain.OAuthTokens) (*domain.LocationDetails, error) {
	if tokens.LocationID == "" {
		return nil, nil
	}

	var lr locationResponse
	if err := m.client.do(ctx, tokens.AccessToken, http.MethodGet,
		"/locations/"+url.PathEscape(tokens.LocationID), nil, &lr); err != nil {
		return nil, fmt.Errorf("fetch location details: %w", err)
	}
	return &domain.LocationDetails{ID: lr.Location.ID, Name: lr.Location.Name}, nil
}
