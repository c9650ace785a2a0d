package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// EmailStatsFamily is the built-in delivery-event family: inbound events are
// normalized to six per-campaign counters.
const EmailStatsFamily = "email-stats"

// Ensure emailStats implements FamilyHandler
var _ FamilyHandler = (*emailStats)(nil)

// emailStatsEvent is the normalized inbound event shape.
type emailStatsEvent struct {
	AccountKey string `json:"account_key"`
	CampaignID string `json:"campaign_id"`
	Event      string `json:"event"`
}

type emailStats struct {
	store     driven.EmailStatsStore
	providers map[domain.Provider]bool
	logger    *slog.Logger
}

// NewEmailStatsFamily creates the email-stats family over the given store,
// accepting traffic for the listed providers.
func NewEmailStatsFamily(store driven.EmailStatsStore, logger *slog.Logger, providers ...domain.Provider) FamilyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	accepted := make(map[domain.Provider]bool, len(providers))
	for _, p := range providers {
		accepted[p] = true
	}
	return &emailStats{store: store, providers: accepted, logger: logger}
}

func (h *emailStats) Family() string { return EmailStatsFamily }

func (h *emailStats) SupportsProvider(provider domain.Provider) bool {
	return h.providers[provider]
}

// Get answers provider verification probes. Providers that verify endpoints
// with a challenge parameter get it echoed back.
func (h *emailStats) Get(ctx context.Context, provider domain.Provider, query map[string]string) (int, any) {
	if challenge, ok := query["challenge"]; ok && challenge != "" {
		return http.StatusOK, map[string]string{"challenge": challenge}
	}
	return http.StatusOK, map[string]string{
		"family":   EmailStatsFamily,
		"provider": string(provider),
		"status":   "ok",
	}
}

// Post ingests one normalized delivery event and bumps its counter. The
// increment is atomic in the store; concurrent deliveries never lose counts.
func (h *emailStats) Post(r *http.Request, provider domain.Provider) (int, any) {
	var event emailStatsEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		return http.StatusBadRequest, map[string]string{"error": "malformed event payload"}
	}
	if event.AccountKey == "" || event.CampaignID == "" {
		return http.StatusBadRequest, map[string]string{"error": "account_key and campaign_id are required"}
	}

	kind, err := domain.ParseEmailEventKind(event.Event)
	if err != nil {
		return http.StatusBadRequest, map[string]string{"error": "unknown event kind: " + event.Event}
	}

	key := domain.EmailStatsKey{
		Provider:   provider,
		AccountKey: event.AccountKey,
		CampaignID: event.CampaignID,
	}
	if err := h.store.Increment(r.Context(), key, kind); err != nil {
		h.logger.Error("email stats increment failed",
			"provider", provider,
			"account_key", event.AccountKey,
			"campaign_id", event.CampaignID,
			"kind", kind,
			"error", err)
		return http.StatusInternalServerError, map[string]string{"error": "event not recorded"}
	}

	return http.StatusAccepted, map[string]string{"status": "recorded"}
}
