package models

import "time"

// PricePeriod is the billing interval attached to a price mention.
type PricePeriod string

const (
	PeriodDay     PricePeriod = "day"
	PeriodWeek    PricePeriod = "week"
	PeriodMonth   PricePeriod = "month"
	PeriodYear    PricePeriod = "year"
	PeriodOneTime PricePeriod = "one_time"
	PeriodUnknown PricePeriod = "unknown"
)

// CaptureMethod records how a snapshot's page content was obtained.
type CaptureMethod string

const (
	CaptureStatic     CaptureMethod = "static"
	CapturePlaywright CaptureMethod = "playwright"
	CaptureLLM        CaptureMethod = "llm"
	CaptureManual     CaptureMethod = "manual"
)

// PriceMention is one observed price on a pricing page. Amounts are rounded
// to 2 decimal places, currencies are uppercase ISO-ish codes.
type PriceMention struct {
	Amount   float64     `json:"amount"`
	Currency string      `json:"currency"`
	Period   PricePeriod `json:"period"`
}

// PricingPayload is the canonical content of one pricing-page observation.
// Canonical means: plan names and hints lowercased, de-duplicated and sorted;
// price mentions de-duplicated by (currency, period, amount) and sorted by
// (currency, period, amount). Build it through pricing.Canonicalize.
type PricingPayload struct {
	SourceURL          string         `json:"sourceUrl"`
	PageTitle          string         `json:"pageTitle,omitempty"`
	PageDescription    string         `json:"pageDescription,omitempty"`
	PlanNames          []string       `json:"planNames"`
	PriceMentions      []PriceMention `json:"priceMentions"`
	CustomPricingHints []string       `json:"customPricingHints"`
}

// Snapshot is one immutable observation of a company's pricing page.
type Snapshot struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	CompanyID     string         `json:"companyId"`
	CapturedAt    time.Time      `json:"capturedAt"`
	CaptureMethod CaptureMethod  `json:"captureMethod"`
	Confidence    float64        `json:"confidence"`
	ContentHash   string         `json:"contentHash"`
	Payload       PricingPayload `json:"pricingPayload"`
	IsVerified    bool           `json:"isVerified"`
}

// Severity rates how significant a detected pricing change is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// VerificationState mirrors the current snapshot's IsVerified flag onto a diff.
type VerificationState string

const (
	Verified   VerificationState = "verified"
	Unverified VerificationState = "unverified"
)

// PriceChange is one positionally-paired amount update inside a bucket.
type PriceChange struct {
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	AbsDelta float64 `json:"absDelta"`
	PctDelta float64 `json:"pctDelta"`
}

// BucketDiff holds the delta for one (currency, period) bucket.
type BucketDiff struct {
	Currency string        `json:"currency"`
	Period   PricePeriod   `json:"period"`
	Added    []float64     `json:"added,omitempty"`
	Removed  []float64     `json:"removed,omitempty"`
	Updated  []PriceChange `json:"updated,omitempty"`
}

// NormalizedDiff is the low-noise delta between two canonical payloads.
type NormalizedDiff struct {
	Buckets        []BucketDiff `json:"buckets"`
	AddedHints     []string     `json:"addedHints,omitempty"`
	RemovedHints   []string     `json:"removedHints,omitempty"`
	PrevPriceCount int          `json:"prevPriceCount"`
	CurrPriceCount int          `json:"currPriceCount"`
	PrevPlanCount  int          `json:"prevPlanCount"`
	CurrPlanCount  int          `json:"currPlanCount"`
	ChangedAt      time.Time    `json:"changedAt"`
}

// Diff is a stored snapshot-to-snapshot delta. A Diff only exists when the
// bucketed delta or the custom-hint set is non-empty.
type Diff struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"userId"`
	CompanyID          string            `json:"companyId"`
	PreviousSnapshotID string            `json:"previousSnapshotId,omitempty"`
	CurrentSnapshotID  string            `json:"currentSnapshotId"`
	NormalizedDiff     NormalizedDiff    `json:"normalizedDiff"`
	Severity           Severity          `json:"severity"`
	VerificationState  VerificationState `json:"verificationState"`
	DetectedAt         time.Time         `json:"detectedAt"`
}
