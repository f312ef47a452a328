package insight

import (
	"fmt"
	"time"

	"github.com/pricelens/crawl-engine/internal/entitlements"
	"github.com/pricelens/crawl-engine/pkg/models"
)

// ModelRulesV1 labels the deterministic rules generator. A future LLM
// generator would plug in here with real token and cost accounting.
const ModelRulesV1 = "rules-v1"

// SkipReason explains why no insight was produced.
type SkipReason string

const (
	SkipNoGate          SkipReason = "no_severity_gate"
	SkipBelowGate       SkipReason = "severity_below_gate"
	SkipNoEntitlement   SkipReason = "no_access"
	ReasonGateSatisfied SkipReason = ""
)

// Decision is the builder's output: either a ready-to-store insight or a
// reason it was withheld.
type Decision struct {
	ShouldCreate bool
	Reason       SkipReason
	Insight      models.Insight
}

// Builder turns gated diffs into decision recommendations.
type Builder struct {
	resolver *entitlements.Resolver
}

func NewBuilder(resolver *entitlements.Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build decides whether a diff warrants an insight for its owner and, if so,
// assembles the rules-v1 recommendation.
func (b *Builder) Build(user models.User, companyID, companyName, diffID string,
	severity models.Severity, verification models.VerificationState,
	diff models.NormalizedDiff, now time.Time) Decision {

	ent := b.resolver.Resolve(user, now)
	if !ent.HasAccess {
		return Decision{Reason: SkipNoEntitlement}
	}
	if ent.SeverityGate == "" {
		return Decision{Reason: SkipNoGate}
	}
	if !entitlements.CanGenerateInsight(ent, severity) {
		return Decision{Reason: SkipBelowGate}
	}

	summary := summarize(diff)
	rec := models.Recommendation{
		Headline:          fmt.Sprintf("%s severity pricing change detected at %s", titleSeverity(severity), companyName),
		Summary:           prose(companyName, severity, summary, diff),
		RiskLabel:         riskLabel(severity),
		Severity:          severity,
		VerificationState: verification,
		ActionItems:       actionItems(severity, verification),
		PriceChanges:      summary,
	}

	return Decision{
		ShouldCreate: true,
		Insight: models.Insight{
			UserID:         user.ID,
			CompanyID:      companyID,
			DiffID:         diffID,
			Model:          ModelRulesV1,
			Recommendation: rec,
			SeverityGate:   ent.SeverityGate,
			GeneratedAt:    now,
			Feedback:       models.FeedbackNone,
		},
	}
}

func summarize(diff models.NormalizedDiff) models.ChangeSummary {
	var s models.ChangeSummary
	for _, b := range diff.Buckets {
		s.Added += len(b.Added)
		s.Removed += len(b.Removed)
		s.Updated += len(b.Updated)
	}
	return s
}

func prose(companyName string, severity models.Severity, s models.ChangeSummary, diff models.NormalizedDiff) string {
	msg := fmt.Sprintf("%s changed their pricing: %d updated, %d added, %d removed price points", companyName, s.Updated, s.Added, s.Removed)
	if len(diff.AddedHints) > 0 {
		msg += fmt.Sprintf("; new custom-pricing signals: %d", len(diff.AddedHints))
	}
	if len(diff.RemovedHints) > 0 {
		msg += fmt.Sprintf("; removed custom-pricing signals: %d", len(diff.RemovedHints))
	}
	return msg + "."
}

func riskLabel(severity models.Severity) string {
	switch severity {
	case models.SeverityHigh:
		return "high risk"
	case models.SeverityMedium:
		return "medium risk"
	default:
		return "low risk"
	}
}

func titleSeverity(severity models.Severity) string {
	switch severity {
	case models.SeverityHigh:
		return "High"
	case models.SeverityMedium:
		return "Medium"
	default:
		return "Low"
	}
}

func actionItems(severity models.Severity, verification models.VerificationState) []string {
	var items []string
	switch severity {
	case models.SeverityHigh:
		items = append(items,
			"Review competitor positioning and update your pricing strategy within 24 hours.",
			"Notify sales and customer-success teams about the competitor move.")
	case models.SeverityMedium:
		items = append(items,
			"Compare the changed price points against your current tiers this week.",
			"Watch this competitor for follow-up changes.")
	default:
		items = append(items, "No immediate action required; keep monitoring.")
	}
	if verification == models.Unverified {
		items = append(items, "Manually verify the competitor pricing page before acting on this change.")
	}
	return items
}
