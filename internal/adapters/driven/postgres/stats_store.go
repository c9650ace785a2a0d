package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bridgeworks/espbridge/internal/core/domain"
	"github.com/bridgeworks/espbridge/internal/core/ports/driven"
)

// Ensure EmailStatsStore implements the interface.
var _ driven.EmailStatsStore = (*EmailStatsStore)(nil)

// EmailStatsStore implements driven.EmailStatsStore using PostgreSQL.
type EmailStatsStore struct {
	db *sql.DB
}

// NewEmailStatsStore creates a new PostgreSQL-backed stats store.
func NewEmailStatsStore(db *sql.DB) *EmailStatsStore {
	return &EmailStatsStore{db: db}
}

// counterColumn maps an event kind to its counter column. Column names are
// fixed here, never taken from input.
func counterColumn(kind domain.EmailEventKind) (string, error) {
	switch kind {
	case domain.EmailEventDelivered:
		return "delivered_count", nil
	case domain.EmailEventOpened:
		return "opened_count", nil
	case domain.EmailEventClicked:
		return "clicked_count", nil
	case domain.EmailEventBounced:
		return "bounced_count", nil
	case domain.EmailEventComplained:
		return "complained_count", nil
	case domain.EmailEventUnsubscribed:
		return "unsubscribed_count", nil
	}
	return "", fmt.Errorf("%w: unknown event kind %q", domain.ErrInvalidInput, kind)
}

// Increment bumps one counter by one as a single atomic upsert, so
// concurrent deliveries for the same key never lose an increment. The
// first delivered event also sets first_delivered_at; COALESCE keeps the
// original value on every later delivery.
func (s *EmailStatsStore) Increment(ctx context.Context, key domain.EmailStatsKey, kind domain.EmailEventKind) error {
	column, err := counterColumn(kind)
	if err != nil {
		return err
	}

	firstDelivered := ""
	if kind == domain.EmailEventDelivered {
		firstDelivered = ", first_delivered_at = COALESCE(email_stats.first_delivered_at, NOW())"
	}

	query := fmt.Sprintf(`
		INSERT INTO email_stats (provider, account_key, campaign_id, %[1]s, first_delivered_at, updated_at)
		VALUES ($1, $2, $3, 1, CASE WHEN $4 THEN NOW() END, NOW())
		ON CONFLICT (provider, account_key, campaign_id) DO UPDATE SET
			%[1]s = email_stats.%[1]s + 1,
			updated_at = NOW()%s
	`, column, firstDelivered)

	_, err = s.db.ExecContext(ctx, query,
		key.Provider, key.AccountKey, key.CampaignID,
		kind == domain.EmailEventDelivered,
	)
	if err != nil {
		return fmt.Errorf("increment email stats: %w", err)
	}
	return nil
}

// Get returns the counter row, or nil, nil when absent.
func (s *EmailStatsStore) Get(ctx context.Context, key domain.EmailStatsKey) (*domain.EmailStats, error) {
	query := `
		SELECT provider, account_key, campaign_id,
		       delivered_count, opened_count, clicked_count,
		       bounced_count, complained_count, unsubscribed_count,
		       first_delivered_at, updated_at
		FROM email_stats
		WHERE provider = $1 AND account_key = $2 AND campaign_id = $3
	`

	stats, err := scanEmailStats(s.db.QueryRowContext(ctx, query, key.Provider, key.AccountKey, key.CampaignID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get email stats: %w", err)
	}
	return stats, nil
}

// ListByAccount returns all counter rows for one tenant.
func (s *EmailStatsStore) ListByAccount(ctx context.Context, provider domain.Provider, accountKey string) ([]*domain.EmailStats, error) {
	query := `
		SELECT provider, account_key, campaign_id,
		       delivered_count, opened_count, clicked_count,
		       bounced_count, complained_count, unsubscribed_count,
		       first_delivered_at, updated_at
		FROM email_stats
		WHERE provider = $1 AND account_key = $2
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, provider, accountKey)
	if err != nil {
		return nil, fmt.Errorf("list email stats: %w", err)
	}
	defer rows.Close()

	var out []*domain.EmailStats
	for rows.Next() {
		stats, err := scanEmailStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email stats: %w", err)
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list email stats: %w", err)
	}
	return out, nil
}

func scanEmailStats(row scanner) (*domain.EmailStats, error) {
	var (
		stats          domain.EmailStats
		firstDelivered sql.NullTime
	)
	err := row.Scan(
		&stats.Provider,
		&stats.AccountKey,
		&stats.CampaignID,
		&stats.DeliveredCount,
		&stats.OpenedCount,
		&stats.ClickedCount,
		&stats.BouncedCount,
		&stats.ComplainedCount,
		&stats.UnsubscribedCount,
		&firstDelivered,
		&stats.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if firstDelivered.Valid {
		t := firstDelivered.Time
		stats.FirstDeliveredAt = &t
	}
	return &stats, nil
}
