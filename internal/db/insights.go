package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pricelens/crawl-engine/pkg/models"
)

const insightColumns = `
	id, user_id, company_id, diff_id, model, prompt_tokens, completion_tokens,
	total_cost_usd, recommendation, severity_gate, generated_at, feedback`

func scanInsight(row pgx.Row) (*models.Insight, error) {
	var ins models.Insight
	var rec []byte
	err := row.Scan(&ins.ID, &ins.UserID, &ins.CompanyID, &ins.DiffID, &ins.Model,
		&ins.PromptTokens, &ins.CompletionTokens, &ins.TotalCostUSD, &rec,
		&ins.SeverityGate, &ins.GeneratedAt, &ins.Feedback)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rec, &ins.Recommendation); err != nil {
		return nil, fmt.Errorf("bad recommendation for insight %s: %w", ins.ID, err)
	}
	return &ins, nil
}

// CreateInsight stores one generated recommendation.
func (s *PostgresStore) CreateInsight(ctx context.Context, ins *models.Insight) error {
	if ins.ID == "" {
		ins.ID = uuid.NewString()
	}
	rec, err := json.Marshal(ins.Recommendation)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO insights `+"("+insightColumns+")"+`
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ins.ID, ins.UserID, ins.CompanyID, ins.DiffID, ins.Model,
		ins.PromptTokens, ins.CompletionTokens, ins.TotalCostUSD, rec,
		ins.SeverityGate, ins.GeneratedAt, ins.Feedback)
	return err
}

// ListRecentInsights returns a user's newest insights.
func (s *PostgresStore) ListRecentInsights(ctx context.Context, userID string, limit int) ([]models.Insight, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+insightColumns+` FROM insights
		WHERE user_id = $1 ORDER BY generated_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	insights := make([]models.Insight, 0)
	for rows.Next() {
		ins, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		insights = append(insights, *ins)
	}
	return insights, rows.Err()
}

// SetInsightFeedback records the user's reaction to an insight.
func (s *PostgresStore) SetInsightFeedback(ctx context.Context, insightID, userID string, feedback models.Feedback) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE insights SET feedback = $3 WHERE id = $1 AND user_id = $2`,
		insightID, userID, feedback)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
