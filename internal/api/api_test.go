package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/pricelens/crawl-engine/internal/config"
	"github.com/pricelens/crawl-engine/internal/db"
	"github.com/pricelens/crawl-engine/internal/discovery"
	"github.com/pricelens/crawl-engine/internal/entitlements"
	"github.com/pricelens/crawl-engine/internal/extract"
	"github.com/pricelens/crawl-engine/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFakeStore struct {
	sessions    map[string]string
	users       map[string]models.User
	companies   map[string]*models.Company
	competitors int
	snapshots   map[string]*models.Snapshot
	diffs       []models.Diff
	insights    map[string]*models.Insight
	audits      []models.AuditEvent
	lockHeld    bool
	rlCount     int
	webhooks    map[string]models.WebhookEventStatus
	leaseActive bool
}

func newAPIFakeStore() *apiFakeStore {
	return &apiFakeStore{
		sessions:  map[string]string{"tok-1": "u1"},
		users:     map[string]models.User{"u1": {ID: "u1", Email: "u1@acme.io", HasPaidAccess: true, PaidPlanPriceTag: "price_starter_monthly"}},
		companies: make(map[string]*models.Company),
		snapshots: make(map[string]*models.Snapshot),
		insights:  make(map[string]*models.Insight),
		webhooks:  make(map[string]models.WebhookEventStatus),
	}
}

func (f *apiFakeStore) GetUserIDBySession(_ context.Context, token string, _ time.Time) (string, error) {
	return f.sessions[token], nil
}

func (f *apiFakeStore) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *apiFakeStore) StartTrial(_ context.Context, userID string, now, endsAt time.Time) (bool, error) {
	u := f.users[userID]
	if u.TrialStatus != models.TrialNotStarted && u.TrialStatus != "" {
		return false, nil
	}
	u.TrialStatus = models.TrialActive
	u.TrialStartedAt = &now
	u.TrialEndsAt = &endsAt
	f.users[userID] = u
	return true, nil
}

func (f *apiFakeStore) UpdateTrialStatus(_ context.Context, userID string, from, to models.TrialStatus, _ time.Time) (bool, error) {
	u, ok := f.users[userID]
	if !ok || u.TrialStatus != from {
		return false, nil
	}
	u.TrialStatus = to
	f.users[userID] = u
	return true, nil
}

func (f *apiFakeStore) SetPaidAccess(_ context.Context, userID string, hasPaid bool, priceTag string, _ time.Time) error {
	u := f.users[userID]
	u.ID = userID
	u.HasPaidAccess = hasPaid
	u.PaidPlanPriceTag = priceTag
	f.users[userID] = u
	return nil
}

func (f *apiFakeStore) CreateCompany(_ context.Context, c *models.Company, now time.Time) error {
	for _, existing := range f.companies {
		if existing.UserID == c.UserID && existing.Type == c.Type && existing.Domain == c.Domain {
			return db.ErrDuplicateCompany
		}
	}
	c.ID = "c" + intToString(len(f.companies)+1)
	c.CreatedAt = now
	f.companies[c.ID] = c
	if c.Type == models.CompanyCompetitor {
		f.competitors++
	}
	return nil
}

func (f *apiFakeStore) GetCompany(_ context.Context, id, userID string) (*models.Company, error) {
	c, ok := f.companies[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return c, nil
}

func (f *apiFakeStore) ListCompanies(_ context.Context, userID string) ([]models.Company, error) {
	var out []models.Company
	for _, c := range f.companies {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *apiFakeStore) CountCompetitors(context.Context, string) (int, error) {
	return f.competitors, nil
}

func (f *apiFakeStore) RenameCompany(_ context.Context, companyID, userID, name string, _ time.Time) (bool, error) {
	c, ok := f.companies[companyID]
	if !ok || c.UserID != userID {
		return false, nil
	}
	c.Name = name
	return true, nil
}

func (f *apiFakeStore) SetPrimaryPricingURL(_ context.Context, companyID, _, url string, candidates []models.PricingURLCandidate, _ time.Time) error {
	f.companies[companyID].PrimaryPricingURL = url
	f.companies[companyID].PricingURLCandidates = candidates
	return nil
}

func (f *apiFakeStore) SaveCandidates(_ context.Context, companyID, _ string, candidates []models.PricingURLCandidate, _ time.Time) error {
	f.companies[companyID].PricingURLCandidates = candidates
	return nil
}

func (f *apiFakeStore) RequestCrawlNow(_ context.Context, companyID, userID string, _ time.Time) (bool, error) {
	if c, ok := f.companies[companyID]; !ok || c.UserID != userID {
		return false, pgx.ErrNoRows
	}
	return f.leaseActive, nil
}

func (f *apiFakeStore) LatestSnapshot(_ context.Context, companyID string) (*models.Snapshot, error) {
	return f.snapshots[companyID], nil
}

func (f *apiFakeStore) ListRecentDiffs(_ context.Context, _ string, limit int) ([]models.Diff, error) {
	if len(f.diffs) > limit {
		return f.diffs[:limit], nil
	}
	return f.diffs, nil
}

func (f *apiFakeStore) ListRecentInsights(context.Context, string, int) ([]models.Insight, error) {
	var out []models.Insight
	for _, ins := range f.insights {
		out = append(out, *ins)
	}
	return out, nil
}

func (f *apiFakeStore) SetInsightFeedback(_ context.Context, insightID, userID string, feedback models.Feedback) (bool, error) {
	ins, ok := f.insights[insightID]
	if !ok || ins.UserID != userID {
		return false, nil
	}
	ins.Feedback = feedback
	return true, nil
}

func (f *apiFakeStore) AcquireLock(_ context.Context, _ string, ttl time.Duration, now time.Time) (models.LockAcquireResult, error) {
	if f.lockHeld {
		return models.LockAcquireResult{Acquired: false, LockUntil: now.Add(ttl), RetryAfterSeconds: 30}, nil
	}
	f.lockHeld = true
	return models.LockAcquireResult{Acquired: true, OwnerID: "owner-1", LockUntil: now.Add(ttl)}, nil
}

func (f *apiFakeStore) ReleaseLock(context.Context, string, string, time.Time) error {
	f.lockHeld = false
	return nil
}

func (f *apiFakeStore) IncrementRateLimit(_ context.Context, key string, window time.Duration, now time.Time) (models.RateLimitCounter, error) {
	f.rlCount++
	return models.RateLimitCounter{Key: key, Count: f.rlCount, WindowStartedAt: now, ExpiresAt: now.Add(window)}, nil
}

func (f *apiFakeStore) SaveAuditEvent(_ context.Context, ev *models.AuditEvent) error {
	f.audits = append(f.audits, *ev)
	return nil
}

func (f *apiFakeStore) ListRecentAuditEvents(context.Context, string, int) ([]models.AuditEvent, error) {
	return f.audits, nil
}

func (f *apiFakeStore) ClaimWebhookEvent(_ context.Context, eventID, _ string, _ time.Duration, _ time.Time) (bool, models.WebhookEventStatus, error) {
	if status, seen := f.webhooks[eventID]; seen && status != models.WebhookFailed {
		return false, status, nil
	}
	f.webhooks[eventID] = models.WebhookProcessing
	return true, models.WebhookProcessing, nil
}

func (f *apiFakeStore) CompleteWebhookEvent(_ context.Context, eventID string, _ time.Time) error {
	f.webhooks[eventID] = models.WebhookProcessed
	return nil
}

func (f *apiFakeStore) FailWebhookEvent(_ context.Context, eventID, _ string) error {
	f.webhooks[eventID] = models.WebhookFailed
	return nil
}

type fakeCrawlRunner struct{ last models.BatchResult }

func (r *fakeCrawlRunner) Run(_ context.Context, limit int) models.BatchResult {
	r.last = models.BatchResult{Claimed: limit}
	return r.last
}

type fakeDigestRunner struct{}

func (fakeDigestRunner) Run(context.Context) models.DigestResult {
	return models.DigestResult{UsersConsidered: 1, Sent: 1}
}

func testServer(store Store) (*Server, *gin.Engine) {
	cfg := config.Default()
	cfg.CronSecret = "s3cret"
	resolver := entitlements.NewResolver(entitlements.DefaultRules())
	fetcher := extract.NewFetcher(cfg.FetchTimeout, cfg.MaxHTMLLength)
	srv := NewServer(store, &fakeCrawlRunner{}, fakeDigestRunner{},
		discovery.New(fetcher, cfg.DiscoveryPrimaryMinConfidence, cfg.DiscoveryPrimaryMinGap),
		resolver, NewHub(), cfg)
	return srv, SetupRouter(srv)
}

func doJSON(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCronAuth(t *testing.T) {
	_, r := testServer(newAPIFakeStore())

	w := doJSON(r, http.MethodPost, "/api/v1/cron/crawl", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing secret: code = %d, want 401", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/v1/cron/crawl", "wrong", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: code = %d, want 401", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/v1/cron/crawl", "s3cret", nil)
	if w.Code != http.StatusOK {
		t.Errorf("valid secret: code = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestRunCrawls_LockHeldAnswers202(t *testing.T) {
	store := newAPIFakeStore()
	store.lockHeld = true
	_, r := testServer(store)

	w := doJSON(r, http.MethodPost, "/api/v1/cron/crawl", "s3cret", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("code = %d, want 202", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("202 must carry Retry-After")
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["skipped"] != true || resp["reason"] != "lock_active" {
		t.Errorf("202 body = %v, want skipped=true reason=lock_active", resp)
	}
	if _, ok := resp["lockUntil"]; !ok {
		t.Error("202 body must report lockUntil")
	}
	if _, ok := resp["retryAfterSeconds"]; !ok {
		t.Error("202 body must report retryAfterSeconds")
	}
}

func TestRunCrawls_LimitZeroUsesDefault(t *testing.T) {
	store := newAPIFakeStore()
	_, r := testServer(store)

	w := doJSON(r, http.MethodPost, "/api/v1/cron/crawl?limit=0", "s3cret", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("limit=0: code = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		OK      bool `json:"ok"`
		Skipped bool `json:"skipped"`
		Result  struct {
			Claimed int `json:"claimed"`
		} `json:"result"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.OK || resp.Skipped {
		t.Errorf("200 body = %s, want ok=true skipped=false", w.Body.String())
	}
	if want := config.Default().CrawlBatchLimit; resp.Result.Claimed != want {
		t.Errorf("limit=0 should fall back to the configured default %d, runner saw %d", want, resp.Result.Claimed)
	}

	if w := doJSON(r, http.MethodPost, "/api/v1/cron/crawl?limit=oops", "s3cret", nil); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric limit: code = %d, want 400", w.Code)
	}
}

func TestRunCrawls_ReleasesLock(t *testing.T) {
	store := newAPIFakeStore()
	_, r := testServer(store)

	doJSON(r, http.MethodPost, "/api/v1/cron/crawl?limit=5", "s3cret", nil)
	if store.lockHeld {
		t.Error("lock was not released after the batch")
	}
}

func TestCreateCompany_CapHit(t *testing.T) {
	store := newAPIFakeStore()
	store.competitors = 3 // starter cap
	_, r := testServer(store)

	w := doJSON(r, http.MethodPost, "/api/v1/companies", "tok-1", gin.H{
		"type": "competitor", "name": "Acme", "domain": "acme.com",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403: %s", w.Code, w.Body.String())
	}
	if len(store.audits) == 0 || store.audits[0].Type != "competitor_cap_hit" {
		t.Errorf("cap hit must be audited, got %+v", store.audits)
	}
}

func TestCreateCompany_DuplicateAnswers409(t *testing.T) {
	store := newAPIFakeStore()
	_, r := testServer(store)

	body := gin.H{"type": "competitor", "name": "Acme", "domain": "acme.com"}
	if w := doJSON(r, http.MethodPost, "/api/v1/companies", "tok-1", body); w.Code != http.StatusCreated {
		t.Fatalf("first create: code = %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(r, http.MethodPost, "/api/v1/companies", "tok-1", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create: code = %d, want 409", w.Code)
	}
}

func TestCreateCompany_RejectsBadDomain(t *testing.T) {
	_, r := testServer(newAPIFakeStore())
	w := doJSON(r, http.MethodPost, "/api/v1/companies", "tok-1", gin.H{
		"type": "competitor", "name": "Acme", "domain": "not a domain",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
}

func TestCreateCompany_DerivesDomainFromURL(t *testing.T) {
	store := newAPIFakeStore()
	_, r := testServer(store)

	w := doJSON(r, http.MethodPost, "/api/v1/companies", "tok-1", gin.H{
		"type": "competitor", "name": "Acme", "homepageUrl": "https://www.acme.com/",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("homepage only: code = %d: %s", w.Code, w.Body.String())
	}
	var created models.Company
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.Domain != "acme.com" {
		t.Errorf("domain = %q, want acme.com", created.Domain)
	}

	w = doJSON(r, http.MethodPost, "/api/v1/companies", "tok-1", gin.H{
		"type": "competitor", "name": "Beta",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("no URL fields: code = %d, want 400", w.Code)
	}
}

func TestStartTrial_OnceOnly(t *testing.T) {
	store := newAPIFakeStore()
	store.users["u2"] = models.User{ID: "u2", TrialStatus: models.TrialNotStarted}
	store.sessions["tok-2"] = "u2"
	_, r := testServer(store)

	if w := doJSON(r, http.MethodPost, "/api/v1/trial/start", "tok-2", nil); w.Code != http.StatusOK {
		t.Fatalf("first start: code = %d: %s", w.Code, w.Body.String())
	}
	w := doJSON(r, http.MethodPost, "/api/v1/trial/start", "tok-2", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second start: code = %d, want 409", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["reason"] != "already_active" {
		t.Errorf("reason = %v, want already_active", resp["reason"])
	}
}

func TestStartTrial_PaidUserRejected(t *testing.T) {
	store := newAPIFakeStore()
	_, r := testServer(store)

	w := doJSON(r, http.MethodPost, "/api/v1/trial/start", "tok-1", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["reason"] != "paid_user" {
		t.Errorf("reason = %v, want paid_user", resp["reason"])
	}
}

func TestCrawlNow_ActiveLeaseConflicts(t *testing.T) {
	store := newAPIFakeStore()
	store.companies["c1"] = &models.Company{ID: "c1", UserID: "u1", Type: models.CompanyCompetitor, Domain: "acme.com"}
	store.leaseActive = true
	_, r := testServer(store)

	w := doJSON(r, http.MethodPost, "/api/v1/companies/c1/crawl-now", "tok-1", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("code = %d, want 409: %s", w.Code, w.Body.String())
	}

	store.leaseActive = false
	w = doJSON(r, http.MethodPost, "/api/v1/companies/c1/crawl-now", "tok-1", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("code = %d, want 202", w.Code)
	}
}

func TestSetPrimaryPricingURL_ExactlyOneInput(t *testing.T) {
	store := newAPIFakeStore()
	store.companies["c1"] = &models.Company{
		ID: "c1", UserID: "u1", Domain: "acme.com",
		PricingURLCandidates: []models.PricingURLCandidate{{URL: "https://acme.com/pricing", Confidence: 0.9}},
	}
	_, r := testServer(store)

	w := doJSON(r, http.MethodPatch, "/api/v1/companies/c1/primary-pricing", "tok-1",
		gin.H{"url": "https://acme.com/plans", "candidateUrl": "https://acme.com/pricing"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("both inputs: code = %d, want 400", w.Code)
	}

	w = doJSON(r, http.MethodPatch, "/api/v1/companies/c1/primary-pricing", "tok-1",
		gin.H{"url": "https://other.com/pricing"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("off-domain url: code = %d, want 400", w.Code)
	}

	w = doJSON(r, http.MethodPatch, "/api/v1/companies/c1/primary-pricing", "tok-1",
		gin.H{"candidateUrl": "https://acme.com/pricing"})
	if w.Code != http.StatusOK {
		t.Fatalf("candidate pick: code = %d: %s", w.Code, w.Body.String())
	}
	if got := store.companies["c1"].PrimaryPricingURL; got != "https://acme.com/pricing" {
		t.Errorf("primary = %q", got)
	}
	if !store.companies["c1"].PricingURLCandidates[0].SelectedByUser {
		t.Error("chosen candidate should be flagged selectedByUser")
	}
}

func TestRenameCompany(t *testing.T) {
	store := newAPIFakeStore()
	store.companies["c1"] = &models.Company{ID: "c1", UserID: "u1", Name: "Acme", Domain: "acme.com"}
	_, r := testServer(store)

	w := doJSON(r, http.MethodPatch, "/api/v1/companies/c1", "tok-1", gin.H{"name": "Acme Corp"})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", w.Code, w.Body.String())
	}
	if got := store.companies["c1"].Name; got != "Acme Corp" {
		t.Errorf("name = %q", got)
	}

	if w := doJSON(r, http.MethodPatch, "/api/v1/companies/c1", "tok-1", gin.H{"name": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty name: code = %d, want 400", w.Code)
	}
	if w := doJSON(r, http.MethodPatch, "/api/v1/companies/nope", "tok-1", gin.H{"name": "X"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown company: code = %d, want 404", w.Code)
	}
}

func TestRetryCrawl_OnlyAfterFailure(t *testing.T) {
	store := newAPIFakeStore()
	store.companies["c1"] = &models.Company{
		ID: "c1", UserID: "u1", Type: models.CompanyCompetitor,
		Domain: "acme.com", LastCrawlStatus: models.CrawlOK,
	}
	_, r := testServer(store)

	if w := doJSON(r, http.MethodPost, "/api/v1/companies/c1/retry-crawl", "tok-1", nil); w.Code != http.StatusConflict {
		t.Errorf("healthy company: code = %d, want 409", w.Code)
	}

	store.companies["c1"].LastCrawlStatus = models.CrawlBlocked
	if w := doJSON(r, http.MethodPost, "/api/v1/companies/c1/retry-crawl", "tok-1", nil); w.Code != http.StatusAccepted {
		t.Errorf("blocked company: code = %d, want 202", w.Code)
	}
}

func TestDashboardComparison(t *testing.T) {
	store := newAPIFakeStore()
	store.companies["c1"] = &models.Company{ID: "c1", UserID: "u1", Type: models.CompanySelf, Name: "Me", Domain: "me.io"}
	store.companies["c2"] = &models.Company{ID: "c2", UserID: "u1", Type: models.CompanyCompetitor, Name: "Acme", Domain: "acme.com"}
	store.snapshots["c2"] = &models.Snapshot{ID: "s1", CompanyID: "c2", IsVerified: true}
	_, r := testServer(store)

	w := doJSON(r, http.MethodGet, "/api/v1/dashboard/comparison", "tok-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Self        *comparisonEntry  `json:"self"`
		Competitors []comparisonEntry `json:"competitors"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Self == nil || resp.Self.Company.ID != "c1" || resp.Self.Snapshot != nil {
		t.Errorf("self entry = %+v", resp.Self)
	}
	if len(resp.Competitors) != 1 || !resp.Competitors[0].IsVerified {
		t.Errorf("competitors = %+v", resp.Competitors)
	}
}

func TestRateLimit_Answers429WithRetryAfter(t *testing.T) {
	store := newAPIFakeStore()
	store.rlCount = config.Default().RateLimitPerWindow // next request exceeds
	_, r := testServer(store)

	w := doJSON(r, http.MethodGet, "/api/v1/companies", "tok-1", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("code = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 must carry Retry-After")
	}
}

func TestSessionAuth_RejectsUnknownToken(t *testing.T) {
	_, r := testServer(newAPIFakeStore())
	if w := doJSON(r, http.MethodGet, "/api/v1/companies", "nope", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("code = %d, want 401", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/api/v1/companies", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: code = %d, want 401", w.Code)
	}
}

func TestBillingWebhook_DuplicateIsIdempotent(t *testing.T) {
	store := newAPIFakeStore()
	_, r := testServer(store)

	body := gin.H{"eventId": "evt-1", "eventType": "subscription.updated", "userId": "u1", "priceTag": "price_pro_monthly", "hasPaidAccess": true}
	if w := doJSON(r, http.MethodPost, "/api/v1/webhooks/billing", "s3cret", body); w.Code != http.StatusOK {
		t.Fatalf("first delivery: code = %d: %s", w.Code, w.Body.String())
	}
	if got := store.users["u1"].PaidPlanPriceTag; got != "price_pro_monthly" {
		t.Errorf("price tag not applied: %q", got)
	}

	w := doJSON(r, http.MethodPost, "/api/v1/webhooks/billing", "s3cret", body)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate delivery: code = %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["duplicate"] != true {
		t.Errorf("duplicate delivery should be flagged: %v", resp)
	}
}

func TestHealth(t *testing.T) {
	_, r := testServer(newAPIFakeStore())
	w := doJSON(r, http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "operational" {
		t.Errorf("status = %v", resp["status"])
	}
}
