package entitlements

import (
	"time"

	"github.com/pricelens/crawl-engine/pkg/models"
)

// AccessSource identifies why a user has (or lacks) access.
type AccessSource string

const (
	AccessPaid  AccessSource = "paid"
	AccessTrial AccessSource = "trial"
	AccessNone  AccessSource = "none"
)

// PlanTier is the resolved subscription tier.
type PlanTier string

const (
	TierStarter PlanTier = "starter"
	TierPro     PlanTier = "pro"
)

// Entitlements is what a user is allowed to do right now.
type Entitlements struct {
	HasAccess              bool                `json:"hasAccess"`
	AccessSource           AccessSource        `json:"accessSource"`
	PlanTier               PlanTier            `json:"planTier,omitempty"`
	CompetitorLimit        int                 `json:"competitorLimit"`
	SeverityGate           models.SeverityGate `json:"insightSeverityGate,omitempty"`
	CanReceiveWeeklyDigest bool                `json:"canReceiveWeeklyDigest"`
}

// PlanRule is one row of the tier rule table. The table is configuration,
// not logic; tests and future tiers swap rules without touching the resolver.
type PlanRule struct {
	CompetitorLimit int
	SeverityGate    models.SeverityGate
	PaidDigest      bool
}

// Rules maps tiers to their limits.
type Rules struct {
	Tiers map[PlanTier]PlanRule
	// PriceTags maps the billing provider's opaque price tags to tiers.
	// Unknown tags on paid accounts fall back to starter rather than
	// locking out a paying user.
	PriceTags map[string]PlanTier
}

// DefaultRules matches the shipped plan table.
func DefaultRules() Rules {
	return Rules{
		Tiers: map[PlanTier]PlanRule{
			TierStarter: {CompetitorLimit: 3, SeverityGate: models.GateHighOnly, PaidDigest: true},
			TierPro:     {CompetitorLimit: 10, SeverityGate: models.GateHighAndMedium, PaidDigest: true},
		},
		PriceTags: map[string]PlanTier{
			"price_starter_monthly": TierStarter,
			"price_starter_yearly":  TierStarter,
			"price_pro_monthly":     TierPro,
			"price_pro_yearly":      TierPro,
		},
	}
}

// Resolver is a pure function of (user, now). It never writes; callers
// persist the trial transition RefreshTrialStatus reports.
type Resolver struct {
	rules Rules
}

func NewResolver(rules Rules) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve computes the user's current entitlements.
func (r *Resolver) Resolve(user models.User, now time.Time) Entitlements {
	if user.HasPaidAccess {
		tier := r.tierForPriceTag(user.PaidPlanPriceTag)
		rule := r.rules.Tiers[tier]
		return Entitlements{
			HasAccess:              true,
			AccessSource:           AccessPaid,
			PlanTier:               tier,
			CompetitorLimit:        rule.CompetitorLimit,
			SeverityGate:           rule.SeverityGate,
			CanReceiveWeeklyDigest: rule.PaidDigest,
		}
	}

	if user.TrialStatus == models.TrialActive && user.TrialEndsAt != nil && user.TrialEndsAt.After(now) {
		rule := r.rules.Tiers[TierStarter]
		return Entitlements{
			HasAccess:              true,
			AccessSource:           AccessTrial,
			PlanTier:               TierStarter,
			CompetitorLimit:        rule.CompetitorLimit,
			SeverityGate:           rule.SeverityGate,
			CanReceiveWeeklyDigest: false,
		}
	}

	return Entitlements{
		HasAccess:    false,
		AccessSource: AccessNone,
	}
}

// RefreshTrialStatus reports the trial transition that should be persisted
// before resolving: active -> converted once paid access appears, active ->
// expired once the trial window closes. Idempotent; returns ("", false) when
// no transition applies.
func (r *Resolver) RefreshTrialStatus(user models.User, now time.Time) (models.TrialStatus, bool) {
	if user.TrialStatus != models.TrialActive {
		return "", false
	}
	if user.HasPaidAccess {
		return models.TrialConverted, true
	}
	if user.TrialEndsAt == nil || !user.TrialEndsAt.After(now) {
		return models.TrialExpired, true
	}
	return "", false
}

// AllowedSeverities expands a gate into the severity set it admits.
func AllowedSeverities(gate models.SeverityGate) map[models.Severity]bool {
	switch gate {
	case models.GateHighOnly:
		return map[models.Severity]bool{models.SeverityHigh: true}
	case models.GateHighAndMedium:
		return map[models.Severity]bool{models.SeverityHigh: true, models.SeverityMedium: true}
	default:
		return nil
	}
}

// CanGenerateInsight reports whether a diff of the given severity may
// produce an insight under these entitlements.
func CanGenerateInsight(ent Entitlements, severity models.Severity) bool {
	if !ent.HasAccess {
		return false
	}
	return AllowedSeverities(ent.SeverityGate)[severity]
}

func (r *Resolver) tierForPriceTag(tag string) PlanTier {
	if tier, ok := r.rules.PriceTags[tag]; ok {
		return tier
	}
	return TierStarter
}
