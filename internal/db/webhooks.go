package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pricelens/crawl-engine/internal/normalize"
	"github.com/pricelens/crawl-engine/pkg/models"
)

// ClaimWebhookEvent takes the idempotency claim for a billing event. The
// claim succeeds for a never-seen event, a failed event (retry) or an event
// whose processing lock expired. A processed event or an active claim by
// another worker returns claimed=false with the stored status.
func (s *PostgresStore) ClaimWebhookEvent(ctx context.Context, eventID, eventType string, ttl time.Duration, now time.Time) (bool, models.WebhookEventStatus, error) {
	sql := `
		INSERT INTO processed_webhook_events (event_id, event_type, status, attempts, lock_expires_at)
		VALUES ($1, $2, 'processing', 1, $3)
		ON CONFLICT (event_id) DO UPDATE SET
			status = 'processing',
			attempts = processed_webhook_events.attempts + 1,
			lock_expires_at = $3
		WHERE processed_webhook_events.status = 'failed'
			OR (processed_webhook_events.status = 'processing'
				AND processed_webhook_events.lock_expires_at <= $4)
		RETURNING status;
	`
	var status models.WebhookEventStatus
	err := s.pool.QueryRow(ctx, sql, eventID, eventType, now.Add(ttl), now).Scan(&status)
	if err == nil {
		return true, status, nil
	}
	if err != pgx.ErrNoRows {
		return false, "", err
	}

	err = s.pool.QueryRow(ctx,
		`SELECT status FROM processed_webhook_events WHERE event_id = $1`, eventID).Scan(&status)
	if err != nil {
		return false, "", err
	}
	return false, status, nil
}

// CompleteWebhookEvent marks a claimed event as processed.
func (s *PostgresStore) CompleteWebhookEvent(ctx context.Context, eventID string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE processed_webhook_events
		SET status = 'processed', processed_at = $2, last_error = ''
		WHERE event_id = $1`, eventID, now)
	return err
}

// FailWebhookEvent marks a claimed event as failed so a later delivery can
// retry it.
func (s *PostgresStore) FailWebhookEvent(ctx context.Context, eventID, lastError string) error {
	lastError = normalize.Truncate(lastError, maxErrorLen)
	_, err := s.pool.Exec(ctx, `
		UPDATE processed_webhook_events
		SET status = 'failed', last_error = $2
		WHERE event_id = $1`, eventID, lastError)
	return err
}
