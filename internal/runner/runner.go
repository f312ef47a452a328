package runner

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pricelens/crawl-engine/internal/config"
	"github.com/pricelens/crawl-engine/internal/db"
	"github.com/pricelens/crawl-engine/internal/discovery"
	"github.com/pricelens/crawl-engine/internal/entitlements"
	"github.com/pricelens/crawl-engine/internal/extract"
	"github.com/pricelens/crawl-engine/internal/insight"
	"github.com/pricelens/crawl-engine/internal/pricing"
	"github.com/pricelens/crawl-engine/pkg/models"
)

// Store is the persistence surface the runner needs. *db.PostgresStore
// satisfies it; tests use an in-memory fake.
type Store interface {
	ClaimDueCompany(ctx context.Context, now, leaseUntil time.Time) (*models.Company, error)
	FinalizeCrawl(ctx context.Context, f db.CrawlFinalize) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateTrialStatus(ctx context.Context, userID string, from, to models.TrialStatus, now time.Time) (bool, error)
	LatestSnapshot(ctx context.Context, companyID string) (*models.Snapshot, error)
	CreateSnapshot(ctx context.Context, snap *models.Snapshot) error
	CreateDiff(ctx context.Context, d *models.Diff) error
	CreateInsight(ctx context.Context, ins *models.Insight) error
	SaveAuditEvent(ctx context.Context, ev *models.AuditEvent) error
}

// Notifier pushes audit events to live listeners. May be nil.
type Notifier interface {
	PublishAudit(ev models.AuditEvent)
}

// Runner drains the due-company queue one lease at a time and pushes each
// claimed company through fetch, extract, diff and insight generation.
type Runner struct {
	store      Store
	extractor  *extract.Extractor
	discoverer *discovery.Discoverer
	resolver   *entitlements.Resolver
	builder    *insight.Builder
	notifier   Notifier
	cfg        *config.Config
	now        func() time.Time
}

func New(store Store, extractor *extract.Extractor, discoverer *discovery.Discoverer,
	resolver *entitlements.Resolver, builder *insight.Builder, notifier Notifier, cfg *config.Config) *Runner {
	return &Runner{
		store:      store,
		extractor:  extractor,
		discoverer: discoverer,
		resolver:   resolver,
		builder:    builder,
		notifier:   notifier,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run claims up to limit due companies and processes them. Claiming is
// sequential; processing fans out across at most cfg.CrawlWorkers
// goroutines. A failed item never aborts the batch.
func (r *Runner) Run(ctx context.Context, limit int) models.BatchResult {
	started := r.now()
	if limit <= 0 {
		limit = r.cfg.CrawlBatchLimit
	}
	if limit > r.cfg.MaxCrawlBatchLimit {
		limit = r.cfg.MaxCrawlBatchLimit
	}

	var claimed []*models.Company
	for len(claimed) < limit {
		now := r.now()
		company, err := r.store.ClaimDueCompany(ctx, now, now.Add(r.cfg.CrawlLease))
		if err != nil {
			log.Printf("[Runner] claim failed: %v", err)
			break
		}
		if company == nil {
			break
		}
		claimed = append(claimed, company)
	}

	result := models.BatchResult{Claimed: len(claimed), Items: make([]models.ItemResult, 0, len(claimed))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.CrawlWorkers)
	for _, company := range claimed {
		company := company
		g.Go(func() error {
			outcome := r.processItem(gctx, company)
			mu.Lock()
			defer mu.Unlock()
			result.Items = append(result.Items, outcome.item)
			result.Snapshots += outcome.snapshots
			result.Diffs += outcome.diffs
			result.Insights += outcome.insights
			switch outcome.item.Outcome {
			case outcomeOK:
				result.OK++
			case outcomeUnchanged:
				result.OK++
				result.Unchanged++
			case outcomeBlocked:
				result.Blocked++
			case outcomeManualNeeded, outcomeNoURL:
				result.ManualNeeded++
				if outcome.item.Outcome == outcomeNoURL {
					result.NoURL++
				}
			case outcomeNotEntitled:
				result.NotEntitled++
			default:
				result.Errored++
			}
			return nil
		})
	}
	g.Wait()

	result.DurationMs = r.now().Sub(started).Milliseconds()
	log.Printf("[Runner] batch done: claimed=%d ok=%d unchanged=%d blocked=%d manual=%d errored=%d diffs=%d insights=%d in %dms",
		result.Claimed, result.OK, result.Unchanged, result.Blocked,
		result.ManualNeeded, result.Errored, result.Diffs, result.Insights, result.DurationMs)
	return result
}

const finalizeTimeout = 10 * time.Second

const (
	outcomeOK           = "ok"
	outcomeUnchanged    = "unchanged"
	outcomeBlocked      = "blocked"
	outcomeManualNeeded = "manual_needed"
	outcomeError        = "error"
	outcomeNoURL        = "no_url"
	outcomeNotEntitled  = "not_entitled"
	outcomeOwnerMissing = "owner_missing"
)

type itemOutcome struct {
	item      models.ItemResult
	snapshots int
	diffs     int
	insights  int
}

// processItem is the per-company pipeline. The deferred FinalizeCrawl
// guarantees the lease is released and a next_crawl_at is set on every exit
// path, including panics inside extraction.
func (r *Runner) processItem(ctx context.Context, company *models.Company) (out itemOutcome) {
	now := r.now()
	out.item = models.ItemResult{CompanyID: company.ID, Domain: company.Domain}

	fin := db.CrawlFinalize{
		CompanyID:   company.ID,
		Now:         now,
		Status:      models.CrawlError,
		NextCrawlAt: now.Add(r.cfg.ErrorBackoff),
		Error:       "Crawl aborted before completion",
	}
	defer func() {
		fin.Now = r.now()
		out.item.Status = fin.Status
		out.item.Error = fin.Error
		// The lease must be released even when the invocation was cancelled
		// mid-item, so the write runs detached from the batch context.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
		if err := r.store.FinalizeCrawl(fctx, fin); err != nil {
			log.Printf("[Runner] finalize failed for company %s: %v", company.ID, err)
		}
	}()

	// Resolve the crawl target first: a company with no usable URL lands
	// manual_needed regardless of its owner's subscription state.
	pricingURL := company.PrimaryPricingURL
	if pricingURL == "" {
		pricingURL = r.discoverPrimary(ctx, company, &fin)
	}
	if pricingURL == "" {
		fin.Status = models.CrawlManualNeeded
		fin.Error = "No pricing URL configured"
		fin.NextCrawlAt = now.Add(r.cfg.ManualBackoff)
		out.item.Outcome = outcomeNoURL
		r.audit(ctx, company.UserID, company.ID, "crawl_manual_needed", outcomeNoURL, map[string]string{"reason": fin.Error})
		return out
	}

	user, err := r.store.GetUser(ctx, company.UserID)
	if err != nil || user == nil {
		fin.Error = "Company owner not found"
		out.item.Outcome = outcomeOwnerMissing
		return out
	}

	// Lazy trial refresh so an expired trial stops producing work.
	if next, ok := r.resolver.RefreshTrialStatus(*user, now); ok {
		if _, err := r.store.UpdateTrialStatus(ctx, user.ID, user.TrialStatus, next, now); err != nil {
			log.Printf("[Runner] trial refresh failed for user %s: %v", user.ID, err)
		} else {
			user.TrialStatus = next
		}
	}

	ent := r.resolver.Resolve(*user, now)
	if !ent.HasAccess {
		fin.Status = models.CrawlIdle
		fin.Error = ""
		fin.NextCrawlAt = now.Add(r.cfg.SuccessDelay)
		out.item.Outcome = outcomeNotEntitled
		return out
	}

	res := r.extractor.Extract(ctx, pricingURL)
	if res.Status != extract.StatusOK {
		fin.Error = res.Error
		switch res.Status {
		case extract.StatusBlocked:
			fin.Status = models.CrawlBlocked
			fin.NextCrawlAt = now.Add(r.cfg.BlockedBackoff)
			out.item.Outcome = outcomeBlocked
		case extract.StatusManualNeeded:
			fin.Status = models.CrawlManualNeeded
			fin.NextCrawlAt = now.Add(r.cfg.ManualBackoff)
			out.item.Outcome = outcomeManualNeeded
		default:
			fin.Status = models.CrawlError
			fin.NextCrawlAt = now.Add(r.cfg.ErrorBackoff)
			out.item.Outcome = outcomeError
		}
		r.audit(ctx, user.ID, company.ID, "crawl_"+out.item.Outcome, out.item.Outcome, map[string]string{"reason": res.Error})
		return out
	}

	fin.Status = models.CrawlOK
	fin.Error = ""
	fin.NextCrawlAt = now.Add(r.cfg.SuccessDelay)
	fin.ContentHash = &res.ContentHash
	fin.Confidence = &res.Confidence

	prev, err := r.store.LatestSnapshot(ctx, company.ID)
	if err != nil {
		fin.Status = models.CrawlError
		fin.Error = "Snapshot lookup failed: " + err.Error()
		fin.NextCrawlAt = now.Add(r.cfg.ErrorBackoff)
		out.item.Outcome = outcomeError
		return out
	}

	// Hash gate: identical normalized content means no new snapshot, no diff.
	if prev != nil && prev.ContentHash == res.ContentHash {
		out.item.Outcome = outcomeUnchanged
		return out
	}

	snap := &models.Snapshot{
		UserID:        company.UserID,
		CompanyID:     company.ID,
		CapturedAt:    now,
		CaptureMethod: res.CaptureMethod,
		Confidence:    res.Confidence,
		ContentHash:   res.ContentHash,
		Payload:       res.Payload,
		IsVerified:    res.IsVerified,
	}
	if err := r.store.CreateSnapshot(ctx, snap); err != nil {
		fin.Status = models.CrawlError
		fin.Error = "Snapshot write failed: " + err.Error()
		fin.NextCrawlAt = now.Add(r.cfg.ErrorBackoff)
		out.item.Outcome = outcomeError
		return out
	}
	out.snapshots++
	out.item.Outcome = outcomeOK

	if prev == nil {
		// First observation; nothing to compare against.
		return out
	}

	diffOutcome := pricing.ComputeDiff(prev.Payload, res.Payload, res.IsVerified, now)
	if diffOutcome == nil {
		return out
	}

	diff := &models.Diff{
		UserID:             company.UserID,
		CompanyID:          company.ID,
		PreviousSnapshotID: prev.ID,
		CurrentSnapshotID:  snap.ID,
		NormalizedDiff:     diffOutcome.Normalized,
		Severity:           diffOutcome.Severity,
		VerificationState:  diffOutcome.VerificationState,
		DetectedAt:         now,
	}
	if err := r.store.CreateDiff(ctx, diff); err != nil {
		log.Printf("[Runner] diff write failed for company %s: %v", company.ID, err)
		return out
	}
	out.diffs++
	r.audit(ctx, user.ID, company.ID, "diff_detected", string(diffOutcome.Severity), map[string]string{
		"diffId":   diff.ID,
		"severity": string(diffOutcome.Severity),
	})

	decision := r.builder.Build(*user, company.ID, company.Name, diff.ID,
		diff.Severity, diff.VerificationState, diff.NormalizedDiff, now)
	if !decision.ShouldCreate {
		log.Printf("[Runner] insight withheld for diff %s: %s", diff.ID, decision.Reason)
		return out
	}
	if err := r.store.CreateInsight(ctx, &decision.Insight); err != nil {
		log.Printf("[Runner] insight write failed for diff %s: %v", diff.ID, err)
		return out
	}
	out.insights++
	r.audit(ctx, user.ID, company.ID, "insight_created", string(diff.Severity), map[string]string{
		"insightId": decision.Insight.ID,
		"diffId":    diff.ID,
	})
	return out
}

// discoverPrimary scores the homepage for a pricing URL when none is
// configured. Candidates are always persisted through the finalize, even
// when no primary is confidently recommended.
func (r *Runner) discoverPrimary(ctx context.Context, company *models.Company, fin *db.CrawlFinalize) string {
	homepage := company.HomepageURL
	if homepage == "" {
		homepage = "https://" + company.Domain
	}
	result, err := r.discoverer.Discover(ctx, homepage, company.Domain)
	if err != nil {
		log.Printf("[Runner] discovery failed for company %s: %v", company.ID, err)
		return ""
	}
	merged := discovery.MergeCandidates(company.PricingURLCandidates, result.Candidates)
	fin.Candidates = merged
	if result.RecommendedPrimaryURL != "" {
		fin.PrimaryPricingURL = result.RecommendedPrimaryURL
	}
	return result.RecommendedPrimaryURL
}

func (r *Runner) audit(ctx context.Context, userID, companyID, eventType, outcome string, metadata map[string]string) {
	ev := models.AuditEvent{
		UserID:    userID,
		CompanyID: companyID,
		Type:      eventType,
		Outcome:   outcome,
		Metadata:  metadata,
		CreatedAt: r.now(),
	}
	if err := r.store.SaveAuditEvent(ctx, &ev); err != nil {
		log.Printf("[Runner] audit write failed: %v", err)
	}
	if r.notifier != nil {
		r.notifier.PublishAudit(ev)
	}
}
