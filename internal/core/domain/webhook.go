package domain

import "time"

// EmailEventKind is one of the six normalized delivery-event kinds.
type EmailEventKind string

const (
	EmailEventDelivered    EmailEventKind = "delivered"
	EmailEventOpened       EmailEventKind = "opened"
	EmailEventClicked      EmailEventKind = "clicked"
	EmailEventBounced      EmailEventKind = "bounced"
	EmailEventComplained   EmailEventKind = "complained"
	EmailEventUnsubscribed EmailEventKind = "unsubscribed"
)

// ParseEmailEventKind validates an inbound event kind.
func ParseEmailEventKind(raw string) (EmailEventKind, error) {
	switch EmailEventKind(raw) {
	case EmailEventDelivered, EmailEventOpened, EmailEventClicked,
		EmailEventBounced, EmailEventComplained, EmailEventUnsubscribed:
		return EmailEventKind(raw), nil
	}
	return "", ErrInvalidInput
}

// EmailStatsKey identifies one counter row.
type EmailStatsKey struct {
	Provider   Provider `json:"provider"`
	AccountKey string   `json:"account_key"`
	CampaignID string   `json:"campaign_id"`
}

// EmailStats is the per-campaign delivery counter row.
type EmailStats struct {
	EmailStatsKey

	DeliveredCount    int64 `json:"delivered_count"`
	OpenedCount       int64 `json:"opened_count"`
	ClickedCount      int64 `json:"clicked_count"`
	BouncedCount      int64 `json:"bounced_count"`
	ComplainedCount   int64 `json:"complained_count"`
	UnsubscribedCount int64 `json:"unsubscribed_count"`

	// FirstDeliveredAt is set by the first delivered event for the key and
	// never overwritten after that.
	FirstDeliveredAt *time.Time `json:"first_delivered_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Count returns the counter value for one event kind.
func (s *EmailStats) Count(kind EmailEventKind) int64 {
	switch kind {
	case EmailEventDelivered:
		return s.DeliveredCount
	case EmailEventOpened:
		return s.OpenedCount
	case EmailEventClicked:
		return s.ClickedCount
	case EmailEventBounced:
		return s.BouncedCount
	case EmailEventComplained:
		return s.ComplainedCount
	case EmailEventUnsubscribed:
		return s.UnsubscribedCount
	}
	return 0
}
