package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pricelens/crawl-engine/pkg/models"
)

const snapshotColumns = `
	id, user_id, company_id, captured_at, capture_method, confidence,
	content_hash, pricing_payload, is_verified`

func scanSnapshot(row pgx.Row) (*models.Snapshot, error) {
	var snap models.Snapshot
	var payload []byte
	err := row.Scan(&snap.ID, &snap.UserID, &snap.CompanyID, &snap.CapturedAt,
		&snap.CaptureMethod, &snap.Confidence, &snap.ContentHash, &payload, &snap.IsVerified)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &snap.Payload); err != nil {
		return nil, fmt.Errorf("bad pricing_payload for snapshot %s: %w", snap.ID, err)
	}
	return &snap, nil
}

// CreateSnapshot stores one immutable pricing-page observation.
func (s *PostgresStore) CreateSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO snapshots `+"("+snapshotColumns+")"+`
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		snap.ID, snap.UserID, snap.CompanyID, snap.CapturedAt,
		snap.CaptureMethod, snap.Confidence, snap.ContentHash, payload, snap.IsVerified)
	return err
}

// LatestSnapshot returns the newest snapshot for a company, nil if none.
func (s *PostgresStore) LatestSnapshot(ctx context.Context, companyID string) (*models.Snapshot, error) {
	snap, err := scanSnapshot(s.pool.QueryRow(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE company_id = $1 ORDER BY captured_at DESC LIMIT 1`, companyID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return snap, err
}
