package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetUserIDBySession resolves a session token to its user, "" when the
// token is unknown or expired.
func (s *PostgresStore) GetUserIDBySession(ctx context.Context, token string, now time.Time) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM sessions WHERE token = $1 AND expires_at > $2`, token, now).Scan(&userID)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return userID, err
}
