package pricing

import (
	"math"
	"sort"
	"time"

	"github.com/pricelens/crawl-engine/pkg/models"
)

// Update thresholds: positional pairs moving less than 0.50 absolute or less
// than 1% are treated as rounding churn and discarded.
const (
	minUpdateAbsDelta = 0.50
	minUpdatePctDelta = 1.0
)

type bucketKey struct {
	currency string
	period   models.PricePeriod
}

// ComputeDiff produces the low-noise delta between two canonical payloads,
// or nil when nothing meaningful changed. Price mentions are partitioned
// into (currency, period) buckets; within a bucket amounts are paired
// positionally ascending, so a removed middle tier can surface as several
// updates rather than one removal. That trade-off buys determinism.
func ComputeDiff(prev, curr models.PricingPayload, currVerified bool, now time.Time) *DiffOutcome {
	prevBuckets := partition(prev.PriceMentions)
	currBuckets := partition(curr.PriceMentions)

	keys := make(map[bucketKey]bool)
	for k := range prevBuckets {
		keys[k] = true
	}
	for k := range currBuckets {
		keys[k] = true
	}
	ordered := make([]bucketKey, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].currency != ordered[j].currency {
			return ordered[i].currency < ordered[j].currency
		}
		return ordered[i].period < ordered[j].period
	})

	var buckets []models.BucketDiff
	var maxPct float64
	totalAdded, totalRemoved, totalUpdated := 0, 0, 0

	for _, key := range ordered {
		p := prevBuckets[key]
		c := currBuckets[key]
		bucket := models.BucketDiff{Currency: key.currency, Period: key.period}

		n := len(p)
		if len(c) < n {
			n = len(c)
		}
		for i := 0; i < n; i++ {
			absDelta := math.Abs(c[i] - p[i])
			pctDelta := 100.0
			if p[i] != 0 {
				pctDelta = absDelta / p[i] * 100
			}
			if absDelta >= minUpdateAbsDelta && pctDelta >= minUpdatePctDelta {
				bucket.Updated = append(bucket.Updated, models.PriceChange{
					Previous: p[i],
					Current:  c[i],
					AbsDelta: Round2(absDelta),
					PctDelta: Round2(pctDelta),
				})
				if pctDelta > maxPct {
					maxPct = pctDelta
				}
			}
		}
		bucket.Removed = append(bucket.Removed, p[n:]...)
		bucket.Added = append(bucket.Added, c[n:]...)

		if len(bucket.Added)+len(bucket.Removed)+len(bucket.Updated) == 0 {
			continue
		}
		totalAdded += len(bucket.Added)
		totalRemoved += len(bucket.Removed)
		totalUpdated += len(bucket.Updated)
		buckets = append(buckets, bucket)
	}

	addedHints, removedHints := stringSetDiff(prev.CustomPricingHints, curr.CustomPricingHints)
	hintChange := len(addedHints) > 0 || len(removedHints) > 0

	if len(buckets) == 0 && !hintChange {
		return nil
	}

	severity := models.SeverityLow
	totalChanges := totalAdded + totalRemoved + totalUpdated
	switch {
	case maxPct >= 20 || (totalAdded >= 2 && totalRemoved >= 2):
		severity = models.SeverityHigh
	case maxPct >= 10 || totalChanges >= 2 || hintChange:
		severity = models.SeverityMedium
	}

	verification := models.Unverified
	if currVerified {
		verification = models.Verified
	}

	return &DiffOutcome{
		Normalized: models.NormalizedDiff{
			Buckets:        buckets,
			AddedHints:     addedHints,
			RemovedHints:   removedHints,
			PrevPriceCount: len(prev.PriceMentions),
			CurrPriceCount: len(curr.PriceMentions),
			PrevPlanCount:  len(prev.PlanNames),
			CurrPlanCount:  len(curr.PlanNames),
			ChangedAt:      now,
		},
		Severity:          severity,
		VerificationState: verification,
	}
}

// DiffOutcome is the diff engine's result before persistence bookkeeping.
type DiffOutcome struct {
	Normalized        models.NormalizedDiff
	Severity          models.Severity
	VerificationState models.VerificationState
}

func partition(mentions []models.PriceMention) map[bucketKey][]float64 {
	buckets := make(map[bucketKey][]float64)
	for _, m := range mentions {
		key := bucketKey{currency: m.Currency, period: m.Period}
		buckets[key] = append(buckets[key], m.Amount)
	}
	for _, amounts := range buckets {
		sort.Float64s(amounts)
	}
	return buckets
}

func stringSetDiff(prev, curr []string) (added, removed []string) {
	prevSet := make(map[string]bool, len(prev))
	for _, s := range prev {
		prevSet[s] = true
	}
	currSet := make(map[string]bool, len(curr))
	for _, s := range curr {
		currSet[s] = true
	}
	for _, s := range curr {
		if !prevSet[s] {
			added = append(added, s)
		}
	}
	for _, s := range prev {
		if !currSet[s] {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
