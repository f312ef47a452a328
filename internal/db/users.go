package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pricelens/crawl-engine/pkg/models"
)

const userColumns = `
	id, email, paid_plan_price_tag, has_paid_access, trial_status,
	trial_started_at, trial_ends_at, last_digest_sent_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PaidPlanPriceTag, &u.HasPaidAccess,
		&u.TrialStatus, &u.TrialStartedAt, &u.TrialEndsAt, &u.LastDigestSentAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser loads one user, nil if absent.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// UpdateTrialStatus transitions a user's trial only from the expected
// current status, so the lazy refresh is idempotent under races.
func (s *PostgresStore) UpdateTrialStatus(ctx context.Context, userID string, from, to models.TrialStatus, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET trial_status = $3, updated_at = $4 WHERE id = $1 AND trial_status = $2`,
		userID, from, to, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// StartTrial begins a trial iff the user has never had one. Returns false
// without error when the precondition no longer holds.
func (s *PostgresStore) StartTrial(ctx context.Context, userID string, now, endsAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET trial_status = 'active', trial_started_at = $2, trial_ends_at = $3, updated_at = $2
		WHERE id = $1 AND trial_status = 'not_started'`,
		userID, now, endsAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetPaidAccess applies a billing webhook's subscription state.
func (s *PostgresStore) SetPaidAccess(ctx context.Context, userID string, hasPaidAccess bool, priceTag string, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET has_paid_access = $2, paid_plan_price_tag = $3, updated_at = $4 WHERE id = $1`,
		userID, hasPaidAccess, priceTag, now)
	return err
}

// SetLastDigestSentAt stamps a successful digest delivery.
func (s *PostgresStore) SetLastDigestSentAt(ctx context.Context, userID string, sentAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_digest_sent_at = $2, updated_at = $2 WHERE id = $1`,
		userID, sentAt)
	return err
}

// ListDigestCandidates returns every user with a non-empty email address.
// Entitlement and recency filtering happen in the digest job, where the
// rules live.
func (s *PostgresStore) ListDigestCandidates(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE email <> '' ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
