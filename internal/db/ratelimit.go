package db

import (
	"context"
	"time"

	"github.com/pricelens/crawl-engine/pkg/models"
)

// IncrementRateLimit bumps the fixed-window counter for key and returns its
// state after the bump. An expired window resets to 1; the reset and the
// increment are the same upsert, so concurrent requests never double-reset.
func (s *PostgresStore) IncrementRateLimit(ctx context.Context, key string, window time.Duration, now time.Time) (models.RateLimitCounter, error) {
	expiresAt := now.Add(window)
	sql := `
		INSERT INTO rate_limit_counters (key, count, window_started_at, expires_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			count = CASE
				WHEN rate_limit_counters.expires_at <= $2 THEN 1
				ELSE rate_limit_counters.count + 1
			END,
			window_started_at = CASE
				WHEN rate_limit_counters.expires_at <= $2 THEN $2
				ELSE rate_limit_counters.window_started_at
			END,
			expires_at = CASE
				WHEN rate_limit_counters.expires_at <= $2 THEN $3
				ELSE rate_limit_counters.expires_at
			END
		RETURNING count, window_started_at, expires_at;
	`
	counter := models.RateLimitCounter{Key: key}
	err := s.pool.QueryRow(ctx, sql, key, now, expiresAt).
		Scan(&counter.Count, &counter.WindowStartedAt, &counter.ExpiresAt)
	return counter, err
}
