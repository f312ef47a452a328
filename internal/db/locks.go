package db

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pricelens/crawl-engine/pkg/models"
)

// AcquireLock attempts to take the named invocation lock for ttl. The
// compare-and-set is a single upsert that only fires when the existing lock
// has expired, so concurrent acquirers serialize on the row and exactly one
// wins.
func (s *PostgresStore) AcquireLock(ctx context.Context, key string, ttl time.Duration, now time.Time) (models.LockAcquireResult, error) {
	ownerID := uuid.NewString()
	lockUntil := now.Add(ttl)

	sql := `
		INSERT INTO cron_run_locks (key, owner_id, lock_until, locked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			lock_until = EXCLUDED.lock_until,
			locked_at = EXCLUDED.locked_at
		WHERE cron_run_locks.lock_until <= $4
		RETURNING owner_id;
	`
	var winner string
	err := s.pool.QueryRow(ctx, sql, key, ownerID, lockUntil, now).Scan(&winner)
	if err == nil {
		return models.LockAcquireResult{Acquired: true, OwnerID: winner, LockUntil: lockUntil}, nil
	}
	if err != pgx.ErrNoRows {
		return models.LockAcquireResult{}, err
	}

	// Held and not expired; report the remaining time.
	var heldUntil time.Time
	err = s.pool.QueryRow(ctx, `SELECT lock_until FROM cron_run_locks WHERE key = $1`, key).Scan(&heldUntil)
	if err != nil {
		return models.LockAcquireResult{}, err
	}
	retry := int(math.Ceil(heldUntil.Sub(now).Seconds()))
	if retry < 1 {
		retry = 1
	}
	return models.LockAcquireResult{Acquired: false, LockUntil: heldUntil, RetryAfterSeconds: retry}, nil
}

// ReleaseLock frees the lock, but only for its current owner. A release by
// a stale owner is a no-op; TTL expiry will free a crashed holder's lock.
func (s *PostgresStore) ReleaseLock(ctx context.Context, key, ownerID string, now time.Time) error {
	sql := `
		UPDATE cron_run_locks
		SET lock_until = $3, last_released_at = $3
		WHERE key = $1 AND owner_id = $2;
	`
	_, err := s.pool.Exec(ctx, sql, key, ownerID, now)
	return err
}
