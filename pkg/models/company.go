package models

import "time"

// CompanyType distinguishes the user's own company from tracked competitors.
type CompanyType string

const (
	CompanySelf       CompanyType = "self"
	CompanyCompetitor CompanyType = "competitor"
)

// CrawlStatus is the outcome of the most recent crawl attempt for a company.
type CrawlStatus string

const (
	CrawlIdle         CrawlStatus = "idle"
	CrawlOK           CrawlStatus = "ok"
	CrawlBlocked      CrawlStatus = "blocked"
	CrawlManualNeeded CrawlStatus = "manual_needed"
	CrawlError        CrawlStatus = "error"
)

// TrialStatus tracks the lifecycle of a user's free trial.
type TrialStatus string

const (
	TrialNotStarted TrialStatus = "not_started"
	TrialActive     TrialStatus = "active"
	TrialExpired    TrialStatus = "expired"
	TrialConverted  TrialStatus = "converted"
)

// User is the owner of companies. The auth/billing layer owns this record;
// the crawl core only reads it, except for the idempotent trial-status refresh.
type User struct {
	ID               string      `json:"id"`
	Email            string      `json:"email"`
	PaidPlanPriceTag string      `json:"paidPlanPriceTag,omitempty"`
	HasPaidAccess    bool        `json:"hasPaidAccess"`
	TrialStatus      TrialStatus `json:"trialStatus"`
	TrialStartedAt   *time.Time  `json:"trialStartedAt,omitempty"`
	TrialEndsAt      *time.Time  `json:"trialEndsAt,omitempty"`
	LastDigestSentAt *time.Time  `json:"lastDigestSentAt,omitempty"`
}

// PricingURLCandidate is one scored pricing-page guess for a company.
type PricingURLCandidate struct {
	URL            string  `json:"url"`
	Confidence     float64 `json:"confidence"`
	SelectedByUser bool    `json:"selectedByUser"`
}

// Company is a crawl target. The scheduling fields (NextCrawlAt,
// CrawlLeaseUntil) are mutated only through single-row atomic updates.
type Company struct {
	ID                   string                `json:"id"`
	UserID               string                `json:"userId"`
	Type                 CompanyType           `json:"type"`
	Name                 string                `json:"name"`
	Domain               string                `json:"domain"`
	HomepageURL          string                `json:"homepageUrl,omitempty"`
	PrimaryPricingURL    string                `json:"primaryPricingUrl,omitempty"`
	PricingURLCandidates []PricingURLCandidate `json:"pricingUrlCandidates"`
	NextCrawlAt          *time.Time            `json:"nextCrawlAt,omitempty"`
	CrawlLeaseUntil      *time.Time            `json:"crawlLeaseUntil,omitempty"`
	LastCrawlAt          *time.Time            `json:"lastCrawlAt,omitempty"`
	LastCrawlStatus      CrawlStatus           `json:"lastCrawlStatus"`
	LastCrawlError       string                `json:"lastCrawlError,omitempty"`
	LatestContentHash    string                `json:"latestContentHash,omitempty"`
	LatestConfidence     float64               `json:"latestConfidence"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}
