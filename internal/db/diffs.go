package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pricelens/crawl-engine/pkg/models"
)

const diffColumns = `
	id, user_id, company_id, previous_snapshot_id, current_snapshot_id,
	normalized_diff, severity, verification_state, detected_at`

func scanDiff(row pgx.Row) (*models.Diff, error) {
	var d models.Diff
	var normalized []byte
	err := row.Scan(&d.ID, &d.UserID, &d.CompanyID, &d.PreviousSnapshotID,
		&d.CurrentSnapshotID, &normalized, &d.Severity, &d.VerificationState, &d.DetectedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(normalized, &d.NormalizedDiff); err != nil {
		return nil, fmt.Errorf("bad normalized_diff for diff %s: %w", d.ID, err)
	}
	return &d, nil
}

// CreateDiff stores one snapshot-to-snapshot delta.
func (s *PostgresStore) CreateDiff(ctx context.Context, d *models.Diff) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	normalized, err := json.Marshal(d.NormalizedDiff)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO diffs `+"("+diffColumns+")"+`
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.UserID, d.CompanyID, d.PreviousSnapshotID, d.CurrentSnapshotID,
		normalized, d.Severity, d.VerificationState, d.DetectedAt)
	return err
}

func (s *PostgresStore) collectDiffs(rows pgx.Rows) ([]models.Diff, error) {
	defer rows.Close()
	diffs := make([]models.Diff, 0)
	for rows.Next() {
		d, err := scanDiff(rows)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, *d)
	}
	return diffs, rows.Err()
}

// ListRecentDiffs returns a user's newest diffs for the dashboard feed.
func (s *PostgresStore) ListRecentDiffs(ctx context.Context, userID string, limit int) ([]models.Diff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+diffColumns+` FROM diffs
		WHERE user_id = $1 ORDER BY detected_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return s.collectDiffs(rows)
}

// ListVerifiedDiffsSince returns a user's verified diffs in the digest
// lookback window, newest first, capped at limit.
func (s *PostgresStore) ListVerifiedDiffsSince(ctx context.Context, userID string, since time.Time, limit int) ([]models.Diff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+diffColumns+` FROM diffs
		WHERE user_id = $1 AND verification_state = 'verified' AND detected_at >= $2
		ORDER BY detected_at DESC LIMIT $3`, userID, since, limit)
	if err != nil {
		return nil, err
	}
	return s.collectDiffs(rows)
}
