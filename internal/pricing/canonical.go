package pricing

import (
	"math"
	"sort"
	"strings"

	"github.com/pricelens/crawl-engine/internal/normalize"
	"github.com/pricelens/crawl-engine/pkg/models"
)

// Round2 rounds an amount to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Canonicalize returns the deterministic form of a pricing payload: strings
// trimmed and lowercased where applicable, sets de-duplicated and sorted,
// amounts rounded, currencies uppercased. Canonicalize is idempotent.
func Canonicalize(p models.PricingPayload) models.PricingPayload {
	out := models.PricingPayload{
		SourceURL:       strings.TrimSpace(p.SourceURL),
		PageTitle:       normalize.CollapseWhitespace(p.PageTitle),
		PageDescription: normalize.CollapseWhitespace(p.PageDescription),
	}

	out.PlanNames = canonicalStringSet(p.PlanNames)
	out.CustomPricingHints = canonicalStringSet(p.CustomPricingHints)

	seen := make(map[models.PriceMention]bool)
	mentions := make([]models.PriceMention, 0, len(p.PriceMentions))
	for _, m := range p.PriceMentions {
		m.Amount = Round2(m.Amount)
		m.Currency = strings.ToUpper(strings.TrimSpace(m.Currency))
		if m.Period == "" {
			m.Period = models.PeriodUnknown
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		mentions = append(mentions, m)
	}
	sort.Slice(mentions, func(i, j int) bool {
		a, b := mentions[i], mentions[j]
		if a.Currency != b.Currency {
			return a.Currency < b.Currency
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.Amount < b.Amount
	})
	out.PriceMentions = mentions

	return out
}

func canonicalStringSet(in []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
