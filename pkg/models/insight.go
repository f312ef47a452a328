package models

import "time"

// SeverityGate is the per-tier predicate controlling which diff severities
// may produce insights.
type SeverityGate string

const (
	GateHighOnly      SeverityGate = "high_only"
	GateHighAndMedium SeverityGate = "high_and_medium"
)

// Feedback is the user's reaction to an insight.
type Feedback string

const (
	FeedbackNone       Feedback = "none"
	FeedbackHelpful    Feedback = "helpful"
	FeedbackNotHelpful Feedback = "not_helpful"
)

// ChangeSummary counts the price movements behind a recommendation.
type ChangeSummary struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
}

// Recommendation is the structured decision advice attached to an insight.
type Recommendation struct {
	Headline          string            `json:"headline"`
	Summary           string            `json:"summary"`
	RiskLabel         string            `json:"riskLabel"`
	Severity          Severity          `json:"severity"`
	VerificationState VerificationState `json:"verificationState"`
	ActionItems       []string          `json:"actionItems"`
	PriceChanges      ChangeSummary     `json:"priceChanges"`
}

// Insight is an entitlement-gated decision recommendation derived from a diff.
// Token and cost counters are zero for the deterministic rules generator; the
// fields exist for a future LLM generator.
type Insight struct {
	ID               string         `json:"id"`
	UserID           string         `json:"userId"`
	CompanyID        string         `json:"companyId"`
	DiffID           string         `json:"diffId"`
	Model            string         `json:"model"`
	PromptTokens     int            `json:"promptTokens"`
	CompletionTokens int            `json:"completionTokens"`
	TotalCostUSD     float64        `json:"totalCostUsd"`
	Recommendation   Recommendation `json:"recommendation"`
	SeverityGate     SeverityGate   `json:"severityGate"`
	GeneratedAt      time.Time      `json:"generatedAt"`
	Feedback         Feedback       `json:"feedback"`
}
