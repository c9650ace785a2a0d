package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driving"
	"github.com/bridgeworks/espbridge/internal/webhooks"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"unknown provider"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns readiness, checking database and Redis connectivity
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// OAuth endpoints

// handleOAuthAuthorize godoc
// @Summary      Start ESP OAuth flow
// @Description  Issues a signed state token and redirects to the provider consent page
// @Tags         OAuth
// @Param        accountKey  query  string  true   "Tenant account key"
// @Param        provider    query  string  true   "Provider identifier"
// @Param        mode        query  string  false  "account or agency"
// @Success      302  "Redirect to provider consent URL"
// @Failure      400  {object}  ErrorResponse  "Unknown provider or missing parameters"
// @Failure      501  {object}  ErrorResponse  "Provider does not support OAuth"
// @Router       /api/v1/oauth/authorize [get]
func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	provider, err := domain.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	mode, err := domain.ParseConnectMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown connect mode")
		return
	}

	resp, err := s.oauthService.Authorize(r.Context(), driving.AuthorizeRequest{
		AccountKey: r.URL.Query().Get("accountKey"),
		Provider:   provider,
		Mode:       mode,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	http.Redirect(w, r, resp.AuthorizationURL, http.StatusFound)
}

// handleOAuthCallback godoc
// @Summary      Complete ESP OAuth flow
// @Description  Verifies state, exchanges the code and stores the encrypted connection
// @Tags         OAuth
// @Param        provider  query  string  false  "Provider identifier (inferred from state when absent)"
// @Param        code      query  string  true   "Authorization code"
// @Param        state     query  string  true   "Signed state token"
// @Success      302  "Redirect to the UI result page"
// @Success      200  {object}  driving.CallbackResponse  "When no redirect base is configured"
// @Failure      401  {object}  ErrorResponse  "State rejected"
// @Router       /api/v1/oauth/callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := s.oauthService.Callback(r.Context(), driving.CallbackRequest{
		RawProvider: q.Get("provider"),
		Code:        q.Get("code"),
		State:       q.Get("state"),
	})
	if err != nil {
		s.finishCallback(w, r, "", callbackOutcome{ok: false, err: err})
		return
	}
	s.finishCallback(w, r, string(resp.Provider), callbackOutcome{ok: true, resp: resp})
}

type callbackOutcome struct {
	ok   bool
	resp *driving.CallbackResponse
	err  error
}

// finishCallback redirects the browser to the UI result page when one is
// configured, carrying only a sanitized outcome. Exact failure causes stay
// in server logs; the redirect never distinguishes them.
func (s *Server) finishCallback(w http.ResponseWriter, r *http.Request, provider string, outcome callbackOutcome) {
	if s.oauthRedirectBase == "" {
		if !outcome.ok {
			writeServiceError(w, outcome.err)
			return
		}
		writeJSON(w, http.StatusOK, outcome.resp)
		return
	}

	params := url.Values{}
	if provider != "" {
		params.Set("provider", provider)
	}
	if outcome.ok {
		params.Set("result", "connected")
	} else {
		params.Set("result", "error")
		params.Set("message", sanitizeCallbackError(outcome.err))
	}
	http.Redirect(w, r, s.oauthRedirectBase+"?"+params.Encode(), http.StatusFound)
}

// sanitizeCallbackError maps callback failures to a fixed set of UI-safe
// messages.
func sanitizeCallbackError(err error) string {
	if _, ok := domain.IsUpstreamError(err); ok {
		return "the provider rejected the connection attempt"
	}
	switch {
	case errors.Is(err, domain.ErrAuthorization):
		return "authorization was rejected, please try connecting again"
	case errors.Is(err, domain.ErrInvalidInput):
		return "the callback request was incomplete"
	default:
		return "the connection could not be completed"
	}
}

// Connection endpoints

// handleConnect godoc
// @Summary      Connect an API-key provider
// @Description  Validates the API key upstream and stores it encrypted
// @Tags         Connections
// @Accept       json
// @Produce      json
// @Param        request  body      driving.ConnectAPIKeyRequest  true  "Connection request"
// @Success      200      {object}  driving.ValidateResponse
// @Failure      400      {object}  ErrorResponse  "Unknown provider or missing fields"
// @Failure      502      {object}  ErrorResponse  "Provider rejected the key"
// @Router       /api/v1/connections/connect [post]
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req driving.ConnectAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.connectionService.ConnectAPIKey(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleValidate godoc
// @Summary      Validate a credential
// @Description  Checks a stored connection or a raw API key without persisting anything
// @Tags         Connections
// @Accept       json
// @Produce      json
// @Param        request  body      driving.ValidateRequest  true  "Validation request"
// @Success      200      {object}  driving.ValidateResponse
// @Failure      400      {object}  ErrorResponse  "Unknown provider or missing fields"
// @Failure      404      {object}  ErrorResponse  "No stored connection"
// @Router       /api/v1/connections/validate [post]
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req driving.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.connectionService.Validate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDisconnect godoc
// @Summary      Disconnect a provider
// @Description  Removes the tenant's stored connection for the provider
// @Tags         Connections
// @Produce      json
// @Param        provider    path   string  true  "Provider identifier"
// @Param        accountKey  query  string  true  "Tenant account key"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse  "Unknown provider"
// @Router       /api/v1/connections/{provider} [delete]
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	provider, err := domain.ParseProvider(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	if err := s.connectionService.Disconnect(r.Context(), r.URL.Query().Get("accountKey"), provider); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// handleStatus godoc
// @Summary      Tenant connection status
// @Description  Resolves per-provider and tenant-level connection state
// @Tags         Connections
// @Produce      json
// @Param        accountKey  query  string  true  "Tenant account key"
// @Success      200  {object}  statusResponse
// @Failure      400  {object}  ErrorResponse  "Missing account key"
// @Router       /api/v1/connections/status [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	summary, statuses, err := s.connectionService.Status(r.Context(), r.URL.Query().Get("accountKey"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Summary: summary, Providers: statuses})
}

// statusResponse bundles the tenant-level summary with per-provider rows.
// @Description Tenant connection status with per-provider detail
type statusResponse struct {
	Summary   *domain.AccountConnectionSummary `json:"summary"`
	Providers []*domain.ConnectionStatus       `json:"providers"`
}

// handleCustomValueReadiness godoc
// @Summary      Custom-value sync readiness
// @Description  Reports whether the tenant's grant carries the scopes custom-value sync needs
// @Tags         Connections
// @Produce      json
// @Param        provider    path   string  true  "Provider identifier"
// @Param        accountKey  query  string  true  "Tenant account key"
// @Success      200  {object}  domain.CustomValueSyncReadiness
// @Failure      400  {object}  ErrorResponse  "Unknown provider"
// @Router       /api/v1/connections/{provider}/custom-values/readiness [get]
func (s *Server) handleCustomValueReadiness(w http.ResponseWriter, r *http.Request) {
	provider, err := domain.ParseProvider(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	readiness, err := s.connectionService.CustomValueReadiness(r.Context(), r.URL.Query().Get("accountKey"), provider)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readiness)
}

// Provider catalog

// handleListProviders godoc
// @Summary      List registered providers
// @Description  Returns capabilities per provider, with connection status when accountKey is given
// @Tags         Providers
// @Produce      json
// @Param        accountKey  query  string  false  "Tenant account key"
// @Success      200  {array}  driving.ProviderCatalogEntry
// @Router       /api/v1/providers [get]
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	entries, err := s.providerService.Catalog(r.Context(), r.URL.Query().Get("accountKey"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Webhook ingress

// handleWebhookGet godoc
// @Summary      Webhook verification
// @Description  Answers provider endpoint verification probes for a webhook family
// @Tags         Webhooks
// @Produce      json
// @Param        provider  path  string  true  "Provider identifier"
// @Param        family    path  string  true  "Webhook family"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Unroutable provider/family pair"
// @Router       /webhooks/esp/{provider}/{family} [get]
func (s *Server) handleWebhookGet(w http.ResponseWriter, r *http.Request) {
	provider, handler, ok := s.webhookHandler(w, r)
	if !ok {
		return
	}

	query := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	status, body := handler.Get(r.Context(), provider, query)
	writeJSON(w, status, body)
}

// handleWebhookPost godoc
// @Summary      Webhook event ingest
// @Description  Routes one provider event delivery to its family handler
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Param        provider  path  string  true  "Provider identifier"
// @Param        family    path  string  true  "Webhook family"
// @Success      202  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Unroutable provider/family pair"
// @Router       /webhooks/esp/{provider}/{family} [post]
func (s *Server) handleWebhookPost(w http.ResponseWriter, r *http.Request) {
	provider, handler, ok := s.webhookHandler(w, r)
	if !ok {
		return
	}

	status, body := handler.Post(r, provider)
	writeJSON(w, status, body)
}

// webhookHandler resolves the (provider, family) pair from the path. Any
// unroutable pair is a 404; webhook URLs are guessable and the response
// must not reveal which half was wrong.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) (domain.Provider, webhooks.FamilyHandler, bool) {
	provider, err := domain.ParseProvider(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return "", nil, false
	}
	handler, ok := s.dispatcher.Handler(provider, r.PathValue("family"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return "", nil, false
	}
	return provider, handler, true
}

// writeServiceError maps service-layer errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	if _, ok := domain.IsUpstreamError(err); ok {
		writeError(w, http.StatusBadGateway, "provider request failed")
		return
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrUnregisteredProvider):
		writeError(w, http.StatusBadRequest, "unknown provider")
	case errors.Is(err, domain.ErrMissingCapability):
		writeError(w, http.StatusNotImplemented, "provider does not support this operation")
	case errors.Is(err, domain.ErrAuthorization):
		writeError(w, http.StatusUnauthorized, "authorization failed")
	case errors.Is(err, domain.ErrNotConnected), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not connected")
	case errors.Is(err, domain.ErrConfiguration):
		writeError(w, http.StatusInternalServerError, "service misconfigured")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
