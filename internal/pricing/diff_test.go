package pricing

import (
	"testing"
	"time"

	"github.com/pricelens/crawl-engine/pkg/models"
)

func usdMonthly(amounts ...float64) models.PricingPayload {
	p := models.PricingPayload{}
	for _, a := range amounts {
		p.PriceMentions = append(p.PriceMentions, models.PriceMention{
			Amount: a, Currency: "USD", Period: models.PeriodMonth,
		})
	}
	return Canonicalize(p)
}

func TestComputeDiff_NoChange(t *testing.T) {
	prev := usdMonthly(19, 49)
	curr := usdMonthly(19, 49)
	if out := ComputeDiff(prev, curr, true, time.Now()); out != nil {
		t.Errorf("expected nil diff for identical payloads, got %+v", out)
	}
}

func TestComputeDiff_RoundingChurnDiscarded(t *testing.T) {
	// 19.00 -> 19.20 is under the 0.50 absolute threshold.
	prev := usdMonthly(19.00)
	curr := usdMonthly(19.20)
	if out := ComputeDiff(prev, curr, true, time.Now()); out != nil {
		t.Errorf("expected tiny edit to be discarded, got %+v", out)
	}
}

func TestComputeDiff_HighSeverityOnLargePct(t *testing.T) {
	// Scenario: [19, 49] -> [19, 59]. Pair 49->59 is +20.4%, so high.
	prev := usdMonthly(19, 49)
	curr := usdMonthly(19, 59)
	out := ComputeDiff(prev, curr, true, time.Now())
	if out == nil {
		t.Fatal("expected a diff")
	}
	if out.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", out.Severity)
	}
	if out.VerificationState != models.Verified {
		t.Errorf("verificationState = %s, want verified", out.VerificationState)
	}
	if len(out.Normalized.Buckets) != 1 {
		t.Fatalf("buckets = %d, want 1", len(out.Normalized.Buckets))
	}
	b := out.Normalized.Buckets[0]
	if len(b.Updated) != 1 || b.Updated[0].Previous != 49 || b.Updated[0].Current != 59 {
		t.Errorf("unexpected updates: %+v", b.Updated)
	}
	if b.Updated[0].AbsDelta != 10 {
		t.Errorf("absDelta = %v, want 10", b.Updated[0].AbsDelta)
	}
}

func TestComputeDiff_MediumSeverity(t *testing.T) {
	// +10.5% on one pair: medium via the pct rule.
	prev := usdMonthly(100)
	curr := usdMonthly(110.5)
	out := ComputeDiff(prev, curr, true, time.Now())
	if out == nil {
		t.Fatal("expected a diff")
	}
	if out.Severity != models.SeverityMedium {
		t.Errorf("severity = %s, want medium", out.Severity)
	}
}

func TestComputeDiff_LowSeverity(t *testing.T) {
	// Single small-but-real update: 3% and >= 0.50 absolute.
	prev := usdMonthly(100)
	curr := usdMonthly(103)
	out := ComputeDiff(prev, curr, true, time.Now())
	if out == nil {
		t.Fatal("expected a diff")
	}
	if out.Severity != models.SeverityLow {
		t.Errorf("severity = %s, want low", out.Severity)
	}
}

func TestComputeDiff_UnpairedAddedRemoved(t *testing.T) {
	prev := usdMonthly(19, 49)
	curr := usdMonthly(19, 49, 99)
	out := ComputeDiff(prev, curr, false, time.Now())
	if out == nil {
		t.Fatal("expected a diff")
	}
	b := out.Normalized.Buckets[0]
	if len(b.Added) != 1 || b.Added[0] != 99 {
		t.Errorf("added = %v, want [99]", b.Added)
	}
	if out.Severity != models.SeverityLow {
		t.Errorf("severity = %s, want low for a single added amount", out.Severity)
	}
	if out.VerificationState != models.Unverified {
		t.Errorf("verificationState = %s, want unverified", out.VerificationState)
	}
}

func TestComputeDiff_TwoAddedTwoRemovedIsHigh(t *testing.T) {
	prev := models.PricingPayload{PriceMentions: []models.PriceMention{
		{Amount: 10, Currency: "USD", Period: models.PeriodMonth},
		{Amount: 20, Currency: "USD", Period: models.PeriodMonth},
	}}
	curr := models.PricingPayload{PriceMentions: []models.PriceMention{
		{Amount: 30, Currency: "EUR", Period: models.PeriodMonth},
		{Amount: 40, Currency: "EUR", Period: models.PeriodMonth},
	}}
	out := ComputeDiff(Canonicalize(prev), Canonicalize(curr), true, time.Now())
	if out == nil {
		t.Fatal("expected a diff")
	}
	if out.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high for >=2 added and >=2 removed", out.Severity)
	}
}

func TestComputeDiff_HintChangeOnly(t *testing.T) {
	prev := Canonicalize(models.PricingPayload{CustomPricingHints: []string{"contact sales"}})
	curr := Canonicalize(models.PricingPayload{CustomPricingHints: []string{"contact sales", "book a demo"}})
	out := ComputeDiff(prev, curr, true, time.Now())
	if out == nil {
		t.Fatal("expected a diff for hint-only change")
	}
	if out.Severity != models.SeverityMedium {
		t.Errorf("severity = %s, want medium for hint change", out.Severity)
	}
	if len(out.Normalized.AddedHints) != 1 || out.Normalized.AddedHints[0] != "book a demo" {
		t.Errorf("addedHints = %v", out.Normalized.AddedHints)
	}
}

func TestComputeDiff_ZeroPreviousTreatedAsFullDelta(t *testing.T) {
	// A bucket going 0 -> paid pairs positionally and counts as a 100% move.
	prev := usdMonthly(0)
	curr := usdMonthly(25)
	out := ComputeDiff(prev, curr, true, time.Now())
	if out == nil {
		t.Fatal("expected a diff")
	}
	if out.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high (pct treated as 100)", out.Severity)
	}
}
