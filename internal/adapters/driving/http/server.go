// Package http exposes the broker over HTTP: the OAuth flow, connection
// management, the provider catalog and the webhook ingress.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bridgeworks/espbridge/internal/core/ports/driving"
	"github.com/bridgeworks/espbridge/internal/webhooks"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// OAuthRedirectBase is where completed OAuth callbacks send the
	// browser; empty means respond with JSON instead of redirecting.
	oauthRedirectBase string

	// Services
	oauthService      driving.OAuthService
	connectionService driving.ConnectionService
	providerService   driving.ProviderService

	// Webhook ingress
	dispatcher *webhooks.Dispatcher

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// OAuthRedirectBase is the UI page completed OAuth flows redirect to.
	OAuthRedirectBase string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	oauthService driving.OAuthService,
	connectionService driving.ConnectionService,
	providerService driving.ProviderService,
	dispatcher *webhooks.Dispatcher,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		oauthRedirectBase: cfg.OAuthRedirectBase,
		oauthService:      oauthService,
		connectionService: connectionService,
		providerService:   providerService,
		dispatcher:        dispatcher,
		db:                db,
		redisClient:       redisClient,
	}

	logging := NewLoggingMiddleware()
	recovery := NewRecoveryMiddleware()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      recovery.Handler(logging.Handler(s.router)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// OAuth flow
	s.router.HandleFunc("GET /api/v1/oauth/authorize", s.handleOAuthAuthorize)
	s.router.HandleFunc("GET /api/v1/oauth/callback", s.handleOAuthCallback)

	// Connection management
	s.router.HandleFunc("POST /api/v1/connections/connect", s.handleConnect)
	s.router.HandleFunc("POST /api/v1/connections/validate", s.handleValidate)
	s.router.HandleFunc("DELETE /api/v1/connections/{provider}", s.handleDisconnect)
	s.router.HandleFunc("GET /api/v1/connections/status", s.handleStatus)
	s.router.HandleFunc("GET /api/v1/connections/{provider}/custom-values/readiness", s.handleCustomValueReadiness)

	// Provider catalog
	s.router.HandleFunc("GET /api/v1/providers", s.handleListProviders)

	// Webhook ingress
	s.router.HandleFunc("GET /webhooks/esp/{provider}/{family}", s.handleWebhookGet)
	s.router.HandleFunc("POST /webhooks/esp/{provider}/{family}", s.handleWebhookPost)
}

// Start runs the server until an interrupt or termination signal, then
// shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
