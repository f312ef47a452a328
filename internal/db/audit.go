package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pricelens/crawl-engine/pkg/models"
)

// SaveAuditEvent appends one event to the activity ledger.
func (s *PostgresStore) SaveAuditEvent(ctx context.Context, ev *models.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	metadata := []byte("{}")
	if len(ev.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, user_id, company_id, type, outcome, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.UserID, ev.CompanyID, ev.Type, ev.Outcome, metadata, ev.CreatedAt)
	return err
}

// ListRecentAuditEvents returns the newest events for a user's feed.
func (s *PostgresStore) ListRecentAuditEvents(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, company_id, type, outcome, metadata, created_at
		FROM audit_events WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.AuditEvent, 0)
	for rows.Next() {
		var ev models.AuditEvent
		var metadata []byte
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.CompanyID, &ev.Type,
			&ev.Outcome, &metadata, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
