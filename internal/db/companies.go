package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pricelens/crawl-engine/internal/normalize"
	"github.com/pricelens/crawl-engine/pkg/models"
)

// maxErrorLen bounds stored error strings (last_crawl_error, last_error).
const maxErrorLen = 400

const companyColumns = `
	id, user_id, type, name, domain, homepage_url, primary_pricing_url,
	pricing_url_candidates, next_crawl_at, crawl_lease_until, last_crawl_at,
	last_crawl_status, last_crawl_error, latest_content_hash,
	latest_confidence, created_at, updated_at`

// ErrDuplicateCompany is returned when (user, type, domain) already exists,
// including the one-self-per-user case.
var ErrDuplicateCompany = errors.New("company already exists")

func scanCompany(row pgx.Row) (*models.Company, error) {
	var c models.Company
	var candidates []byte
	err := row.Scan(
		&c.ID, &c.UserID, &c.Type, &c.Name, &c.Domain, &c.HomepageURL,
		&c.PrimaryPricingURL, &candidates, &c.NextCrawlAt, &c.CrawlLeaseUntil,
		&c.LastCrawlAt, &c.LastCrawlStatus, &c.LastCrawlError,
		&c.LatestContentHash, &c.LatestConfidence, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &c.PricingURLCandidates); err != nil {
			return nil, fmt.Errorf("bad pricing_url_candidates for company %s: %w", c.ID, err)
		}
	}
	if c.PricingURLCandidates == nil {
		c.PricingURLCandidates = []models.PricingURLCandidate{}
	}
	return &c, nil
}

// CreateCompany inserts a new crawl target. Competitors start due
// immediately (next_crawl_at = now).
func (s *PostgresStore) CreateCompany(ctx context.Context, c *models.Company, now time.Time) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.LastCrawlStatus == "" {
		c.LastCrawlStatus = models.CrawlIdle
	}
	if c.Type == models.CompanyCompetitor && c.NextCrawlAt == nil {
		c.NextCrawlAt = &now
	}

	candidates, err := json.Marshal(c.PricingURLCandidates)
	if err != nil {
		return err
	}
	if c.PricingURLCandidates == nil {
		candidates = []byte("[]")
	}

	sql := `
		INSERT INTO companies
			(id, user_id, type, name, domain, homepage_url, primary_pricing_url,
			 pricing_url_candidates, next_crawl_at, last_crawl_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11);
	`
	_, err = s.pool.Exec(ctx, sql, c.ID, c.UserID, c.Type, c.Name, c.Domain,
		c.HomepageURL, c.PrimaryPricingURL, candidates, c.NextCrawlAt,
		c.LastCrawlStatus, now)
	if isUniqueViolation(err) {
		return ErrDuplicateCompany
	}
	return err
}

// GetCompany loads one company by id, scoped to its owner.
func (s *PostgresStore) GetCompany(ctx context.Context, id, userID string) (*models.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1 AND user_id = $2`, id, userID)
	c, err := scanCompany(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListCompanies returns all companies for a user, self first then by name.
func (s *PostgresStore) ListCompanies(ctx context.Context, userID string) ([]models.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE user_id = $1 ORDER BY type DESC, name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}

// CountCompetitors counts a user's competitor targets for the cap check.
func (s *PostgresStore) CountCompetitors(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM companies WHERE user_id = $1 AND type = 'competitor'`, userID).Scan(&n)
	return n, err
}

// ClaimDueCompany atomically leases the single most-due competitor, or
// returns nil when none is due. The inner SELECT ... FOR UPDATE SKIP LOCKED
// serializes concurrent claimers per row, so each company is leased to at
// most one invocation.
func (s *PostgresStore) ClaimDueCompany(ctx context.Context, now, leaseUntil time.Time) (*models.Company, error) {
	sql := `
		UPDATE companies SET crawl_lease_until = $2, updated_at = $1
		WHERE id = (
			SELECT id FROM companies
			WHERE type = 'competitor'
				AND (next_crawl_at IS NULL OR next_crawl_at <= $1)
				AND (crawl_lease_until IS NULL OR crawl_lease_until <= $1)
			ORDER BY next_crawl_at ASC NULLS FIRST, updated_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + companyColumns + `;`
	c, err := scanCompany(s.pool.QueryRow(ctx, sql, now, leaseUntil))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// CrawlFinalize is the per-item write-back applied on every exit path.
// Nil pointers leave the stored value untouched.
type CrawlFinalize struct {
	CompanyID   string
	Now         time.Time
	Status      models.CrawlStatus
	NextCrawlAt time.Time
	Error       string
	ContentHash *string
	Confidence  *float64
	Candidates  []models.PricingURLCandidate // nil = leave as stored
	// PrimaryPricingURL is only persisted when the company has none yet.
	PrimaryPricingURL string
}

// FinalizeCrawl releases the lease and records the crawl outcome.
func (s *PostgresStore) FinalizeCrawl(ctx context.Context, f CrawlFinalize) error {
	var candidates []byte
	if f.Candidates != nil {
		var err error
		candidates, err = json.Marshal(f.Candidates)
		if err != nil {
			return err
		}
	}
	f.Error = normalize.Truncate(f.Error, maxErrorLen)

	sql := `
		UPDATE companies SET
			last_crawl_at = $2,
			last_crawl_status = $3,
			last_crawl_error = $4,
			next_crawl_at = $5,
			crawl_lease_until = NULL,
			latest_content_hash = COALESCE($6, latest_content_hash),
			latest_confidence = COALESCE($7, latest_confidence),
			pricing_url_candidates = COALESCE($8, pricing_url_candidates),
			primary_pricing_url = CASE
				WHEN primary_pricing_url = '' AND $9 <> '' THEN $9
				ELSE primary_pricing_url
			END,
			updated_at = $2
		WHERE id = $1;
	`
	_, err := s.pool.Exec(ctx, sql, f.CompanyID, f.Now, f.Status, f.Error,
		f.NextCrawlAt, f.ContentHash, f.Confidence, candidates, f.PrimaryPricingURL)
	return err
}

// RenameCompany updates the display name. Reports whether a row matched.
func (s *PostgresStore) RenameCompany(ctx context.Context, companyID, userID, name string, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET name = $3, updated_at = $4 WHERE id = $1 AND user_id = $2`,
		companyID, userID, name, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetPrimaryPricingURL stores a user-chosen primary URL and the merged
// candidate list.
func (s *PostgresStore) SetPrimaryPricingURL(ctx context.Context, companyID, userID, url string, candidates []models.PricingURLCandidate, now time.Time) error {
	blob, err := json.Marshal(candidates)
	if err != nil {
		return err
	}
	sql := `
		UPDATE companies
		SET primary_pricing_url = $3, pricing_url_candidates = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2;
	`
	_, err = s.pool.Exec(ctx, sql, companyID, userID, url, blob, now)
	return err
}

// SaveCandidates persists a merged candidate list after discovery.
func (s *PostgresStore) SaveCandidates(ctx context.Context, companyID, userID string, candidates []models.PricingURLCandidate, now time.Time) error {
	blob, err := json.Marshal(candidates)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE companies SET pricing_url_candidates = $3, updated_at = $4 WHERE id = $1 AND user_id = $2`,
		companyID, userID, blob, now)
	return err
}

// RequestCrawlNow marks a company due immediately. A stale lease (<= now)
// is cleared; an active lease is left untouched and reported as a conflict.
func (s *PostgresStore) RequestCrawlNow(ctx context.Context, companyID, userID string, now time.Time) (leaseActive bool, err error) {
	sql := `
		UPDATE companies SET
			next_crawl_at = $3,
			crawl_lease_until = CASE
				WHEN crawl_lease_until IS NOT NULL AND crawl_lease_until > $3 THEN crawl_lease_until
				ELSE NULL
			END,
			updated_at = $3
		WHERE id = $1 AND user_id = $2
		RETURNING crawl_lease_until;
	`
	var lease *time.Time
	err = s.pool.QueryRow(ctx, sql, companyID, userID, now).Scan(&lease)
	if err == pgx.ErrNoRows {
		return false, pgx.ErrNoRows
	}
	if err != nil {
		return false, err
	}
	return lease != nil && lease.After(now), nil
}
