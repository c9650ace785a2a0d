package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driving"
	"github.com/bridgeworks/espbridge/internal/statetoken"
)

func newOAuthService(env *testEnv) driving.OAuthService {
	return NewOAuthService(OAuthServiceConfig{
		Registry:    env.registry,
		Signer:      env.signer,
		Connections: env.connections,
		Logger:      env.logger,
	})
}

func TestAuthorizeReturnsConsentURLWithState(t *testing.T) {
	module := &stubOAuthModule{}
	env := newTestEnv(t, oauthAdapter(module))
	svc := newOAuthService(env)

	resp, err := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderGHL,
	})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if resp.State == "" {
		t.Fatal("Authorize() returned empty state")
	}
	if !strings.Contains(resp.AuthorizationURL, resp.State) {
		t.Errorf("authorization URL %q does not carry state", resp.AuthorizationURL)
	}
}

func TestAuthorizeStateVerifies(t *testing.T) {
	module := &stubOAuthModule{}
	env := newTestEnv(t, oauthAdapter(module))
	svc := newOAuthService(env)

	resp, err := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderGHL,
		Mode:       domain.ConnectModeAgency,
	})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	payload := env.signer.Verify(resp.State, statetoken.VerifyOptions{ExpectedProvider: domain.ProviderGHL})
	if payload == nil {
		t.Fatal("issued state does not verify")
	}
	if payload.AccountKey != "acct-1" || payload.Mode != domain.ConnectModeAgency {
		t.Errorf("payload = %+v, want acct-1/agency", payload)
	}
}

func TestAuthorizeUnknownProvider(t *testing.T) {
	env := newTestEnv(t, oauthAdapter(&stubOAuthModule{}))
	svc := newOAuthService(env)

	_, err := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderKlaviyo,
	})
	if !errors.Is(err, domain.ErrUnregisteredProvider) {
		t.Errorf("error = %v, want ErrUnregisteredProvider", err)
	}
}

func TestAuthorizeProviderWithoutOAuth(t *testing.T) {
	env := newTestEnv(t, apiKeyAdapter(&stubAPIKeyModule{}))
	svc := newOAuthService(env)

	_, err := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderKlaviyo,
	})
	if !errors.Is(err, domain.ErrMissingCapability) {
		t.Errorf("error = %v, want ErrMissingCapability", err)
	}
}

func TestCallbackStoresAccountConnection(t *testing.T) {
	module := &stubOAuthModule{
		tokens: &domain.OAuthTokens{
			AccessToken:    "access-token",
			RefreshToken:   "refresh-token",
			TokenExpiresAt: futureTime(time.Hour),
			Scopes:         []string{"contacts.readonly"},
			LocationID:     "loc-1",
		},
		location: &domain.LocationDetails{ID: "loc-1", Name: "Main Office"},
	}
	env := newTestEnv(t, oauthAdapter(module))
	svc := newOAuthService(env)

	auth, err := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderGHL,
	})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	resp, err := svc.Callback(context.Background(), driving.CallbackRequest{
		Code:  "auth-code",
		State: auth.State,
	})
	if err != nil {
		t.Fatalf("Callback() error = %v", err)
	}
	if resp.Provider != domain.ProviderGHL || resp.AccountKey != "acct-1" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Location == nil || resp.Location.Name != "Main Office" {
		t.Errorf("location = %+v, want Main Office", resp.Location)
	}

	conn, err := env.connections.GetOAuth(context.Background(), "acct-1", domain.ProviderGHL)
	if err != nil {
		t.Fatalf("GetOAuth() error = %v", err)
	}
	if conn == nil {
		t.Fatal("connection was not stored")
	}
	if conn.AccessToken != "access-token" || conn.RefreshToken != "refresh-token" {
		t.Error("stored tokens do not match exchange result")
	}
	if conn.LocationName != "Main Office" {
		t.Errorf("LocationName = %q", conn.LocationName)
	}
	if conn.InstalledAt.IsZero() {
		t.Error("InstalledAt not set")
	}
}

func TestCallbackAgencyModeStoresAgencyGrant(t *testing.T) {
	module := &stubOAuthModule{
		tokens: &domain.OAuthTokens{
			AccessToken: "agency-access",
			CompanyID:   "company-9",
		},
	}
	env := newTestEnv(t, oauthAdapter(module))
	svc := newOAuthService(env)

	auth, err := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderGHL,
		Mode:       domain.ConnectModeAgency,
	})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	if _, err := svc.Callback(context.Background(), driving.CallbackRequest{
		Code:  "auth-code",
		State: auth.State,
	}); err != nil {
		t.Fatalf("Callback() error = %v", err)
	}

	agency, err := env.connections.GetAgency(context.Background(), domain.ProviderGHL)
	if err != nil {
		t.Fatalf("GetAgency() error = %v", err)
	}
	if agency == nil || agency.CompanyID != "company-9" {
		t.Fatalf("agency grant = %+v, want company-9", agency)
	}

	tenant, _ := env.connections.GetOAuth(context.Background(), "acct-1", domain.ProviderGHL)
	if tenant != nil {
		t.Error("agency callback must not create a tenant row")
	}
}

func TestCallbackRejectsTamperedState(t *testing.T) {
	module := &stubOAuthModule{tokens: &domain.OAuthTokens{AccessToken: "a"}}
	env := newTestEnv(t, oauthAdapter(module))
	svc := newOAuthService(env)

	auth, err := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderGHL,
	})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	tampered := auth.State[:len(auth.State)-2] + "xx"
	_, err = svc.Callback(context.Background(), driving.CallbackRequest{
		Code:  "auth-code",
		State: tampered,
	})
	if !errors.Is(err, domain.ErrAuthorization) {
		t.Errorf("error = %v, want ErrAuthorization", err)
	}

	if conn, _ := env.connections.GetOAuth(context.Background(), "acct-1", domain.ProviderGHL); conn != nil {
		t.Error("tampered callback must not store a connection")
	}
}

func TestCallbackRejectsProviderMismatch(t *testing.T) {
	module := &stubOAuthModule{tokens: &domain.OAuthTokens{AccessToken: "a"}}
	env := newTestEnv(t, oauthAdapter(module), apiKeyAdapter(&stubAPIKeyModule{}))
	svc := newOAuthService(env)

	auth, err := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderGHL,
	})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	_, err = svc.Callback(context.Background(), driving.CallbackRequest{
		RawProvider: "klaviyo",
		Code:        "auth-code",
		State:       auth.State,
	})
	if !errors.Is(err, domain.ErrAuthorization) {
		t.Errorf("error = %v, want ErrAuthorization", err)
	}
}

func TestCallbackSurvivesLocationFetchFailure(t *testing.T) {
	module := &stubOAuthModule{
		tokens:      &domain.OAuthTokens{AccessToken: "a", LocationID: "loc-1"},
		locationErr: errors.New("location endpoint down"),
	}
	env := newTestEnv(t, oauthAdapter(module))
	svc := newOAuthService(env)

	auth, _ := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderGHL,
	})

	resp, err := svc.Callback(context.Background(), driving.CallbackRequest{
		Code:  "auth-code",
		State: auth.State,
	})
	if err != nil {
		t.Fatalf("Callback() error = %v", err)
	}
	if resp.Location != nil {
		t.Error("expected no location on fetch failure")
	}

	conn, _ := env.connections.GetOAuth(context.Background(), "acct-1", domain.ProviderGHL)
	if conn == nil {
		t.Fatal("connection must still be stored")
	}
	if conn.LocationID != "loc-1" {
		t.Errorf("LocationID = %q, want loc-1 from token response", conn.LocationID)
	}
}

func TestCallbackUpstreamExchangeFailure(t *testing.T) {
	upstream := &domain.UpstreamError{Provider: domain.ProviderGHL, StatusCode: 502, Body: "bad gateway"}
	module := &stubOAuthModule{exchangeErr: upstream}
	env := newTestEnv(t, oauthAdapter(module))
	svc := newOAuthService(env)

	auth, _ := svc.Authorize(context.Background(), driving.AuthorizeRequest{
		AccountKey: "acct-1",
		Provider:   domain.ProviderGHL,
	})

	_, err := svc.Callback(context.Background(), driving.CallbackRequest{
		Code:  "auth-code",
		State: auth.State,
	})
	var gotUpstream *domain.UpstreamError
	if !errors.As(err, &gotUpstream) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if gotUpstream.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want 502", gotUpstream.StatusCode)
	}
}
