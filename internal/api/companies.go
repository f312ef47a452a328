package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/pricelens/crawl-engine/internal/db"
	"github.com/pricelens/crawl-engine/internal/discovery"
	"github.com/pricelens/crawl-engine/internal/normalize"
	"github.com/pricelens/crawl-engine/pkg/models"
)

type createCompanyRequest struct {
	Type              models.CompanyType `json:"type"`
	Name              string             `json:"name"`
	Domain            string             `json:"domain"`
	HomepageURL       string             `json:"homepageUrl"`
	PrimaryPricingURL string             `json:"primaryPricingUrl"`
}

// handleCreateCompany registers a crawl target. Competitor creation is
// entitlement-gated and capped per plan tier.
// POST /api/v1/companies
func (s *Server) handleCreateCompany(c *gin.Context) {
	uid := userID(c)

	var req createCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Type != models.CompanySelf && req.Type != models.CompanyCompetitor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be self or competitor"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	domain := ""
	if req.Domain != "" {
		domain = normalize.Host(req.Domain)
		if domain == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "domain is not a valid hostname"})
			return
		}
	}
	// The canonical domain can come from any of the three URL fields.
	if domain == "" {
		domain = normalize.Host(req.HomepageURL)
	}
	if domain == "" {
		domain = normalize.Host(req.PrimaryPricingURL)
	}
	if domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one of domain, homepageUrl and primaryPricingUrl is required"})
		return
	}

	pricingURL := ""
	if req.PrimaryPricingURL != "" {
		pricingURL = normalize.URL(req.PrimaryPricingURL)
		if pricingURL == "" || !normalize.MatchesDomain(pricingURL, domain) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "primaryPricingUrl must be a valid URL on the company's domain"})
			return
		}
	}

	now := s.now()
	if req.Type == models.CompanyCompetitor {
		ent, ok := s.resolveEntitlements(c)
		if !ok {
			return
		}
		if !ent.HasAccess {
			c.JSON(http.StatusForbidden, gin.H{"error": "An active plan or trial is required to track competitors"})
			return
		}
		count, err := s.store.CountCompetitors(c.Request.Context(), uid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Competitor count failed"})
			return
		}
		if count >= ent.CompetitorLimit {
			s.auditEvent(c, uid, "", "competitor_cap_hit", "rejected", map[string]string{
				"limit": intToString(ent.CompetitorLimit),
			})
			c.JSON(http.StatusForbidden, gin.H{
				"error":           "Competitor limit reached for your plan",
				"competitorLimit": ent.CompetitorLimit,
			})
			return
		}
	}

	company := &models.Company{
		UserID:            uid,
		Type:              req.Type,
		Name:              req.Name,
		Domain:            domain,
		HomepageURL:       normalize.URL(req.HomepageURL),
		PrimaryPricingURL: pricingURL,
	}
	if err := s.store.CreateCompany(c.Request.Context(), company, now); err != nil {
		if errors.Is(err, db.ErrDuplicateCompany) {
			c.JSON(http.StatusConflict, gin.H{"error": "Company already exists for this domain"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Company creation failed"})
		return
	}
	c.JSON(http.StatusCreated, company)
}

// GET /api/v1/companies
func (s *Server) handleListCompanies(c *gin.Context) {
	companies, err := s.store.ListCompanies(c.Request.Context(), userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Company listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

// GET /api/v1/companies/:id
func (s *Server) handleGetCompany(c *gin.Context) {
	company, ok := s.loadCompany(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, company)
}

type updateCompanyRequest struct {
	Name string `json:"name"`
}

// handleUpdateCompany renames a tracked company.
// PATCH /api/v1/companies/:id
func (s *Server) handleUpdateCompany(c *gin.Context) {
	var req updateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	updated, err := s.store.RenameCompany(c.Request.Context(), c.Param("id"), userID(c), req.Name, s.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Company update failed"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": req.Name})
}

// GET /api/v1/companies/:id/snapshot
func (s *Server) handleLatestSnapshot(c *gin.Context) {
	company, ok := s.loadCompany(c)
	if !ok {
		return
	}
	snap, err := s.store.LatestSnapshot(c.Request.Context(), company.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Snapshot lookup failed"})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot captured yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleDiscoverPricing re-scores the homepage for pricing URL candidates
// and persists the merged list.
// POST /api/v1/companies/:id/discover-pricing
func (s *Server) handleDiscoverPricing(c *gin.Context) {
	company, ok := s.loadCompany(c)
	if !ok {
		return
	}

	homepage := company.HomepageURL
	if homepage == "" {
		homepage = "https://" + company.Domain
	}
	result, err := s.discoverer.Discover(c.Request.Context(), homepage, company.Domain)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Discovery failed", "details": err.Error()})
		return
	}

	merged := discovery.MergeCandidates(company.PricingURLCandidates, result.Candidates)
	if err := s.store.SaveCandidates(c.Request.Context(), company.ID, company.UserID, merged, s.now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Candidate save failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"candidates":            merged,
		"recommendedPrimaryUrl": result.RecommendedPrimaryURL,
	})
}

type setPrimaryURLRequest struct {
	URL          string `json:"url"`
	CandidateURL string `json:"candidateUrl"`
}

// handleSetPrimaryPricingURL pins the crawl target URL, either to a scored
// candidate or to a caller-provided URL on the company's domain. Exactly one
// of url and candidateUrl must be set.
// PATCH /api/v1/companies/:id/primary-pricing
func (s *Server) handleSetPrimaryPricingURL(c *gin.Context) {
	company, ok := s.loadCompany(c)
	if !ok {
		return
	}

	var req setPrimaryURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if (req.URL == "") == (req.CandidateURL == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide exactly one of url and candidateUrl"})
		return
	}

	var chosen string
	if req.CandidateURL != "" {
		chosen = normalize.URL(req.CandidateURL)
		found := false
		for _, cand := range company.PricingURLCandidates {
			if normalize.URL(cand.URL) == chosen {
				found = true
				break
			}
		}
		if !found {
			c.JSON(http.StatusBadRequest, gin.H{"error": "candidateUrl is not among the discovered candidates"})
			return
		}
	} else {
		chosen = normalize.URL(req.URL)
		if chosen == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is not a valid URL"})
			return
		}
		if !normalize.MatchesDomain(chosen, company.Domain) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url must be on the company's domain"})
			return
		}
	}

	merged := discovery.MergeCandidates(company.PricingURLCandidates,
		[]models.PricingURLCandidate{{URL: chosen, SelectedByUser: true}})
	if err := s.store.SetPrimaryPricingURL(c.Request.Context(), company.ID, company.UserID, chosen, merged, s.now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Primary URL update failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"primaryPricingUrl": chosen, "candidates": merged})
}

// handleCrawlNow marks the company due immediately. An active lease wins:
// the in-flight crawl keeps running and the request reports the conflict.
// POST /api/v1/companies/:id/crawl-now
func (s *Server) handleCrawlNow(c *gin.Context) {
	uid := userID(c)
	leaseActive, err := s.store.RequestCrawlNow(c.Request.Context(), c.Param("id"), uid, s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Crawl request failed"})
		return
	}
	if leaseActive {
		c.JSON(http.StatusConflict, gin.H{"queued": false, "reason": "A crawl is already in progress for this company"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

// handleRetryCrawl re-queues a company whose last crawl failed. Companies
// that crawled cleanly go through crawl-now instead.
// POST /api/v1/companies/:id/retry-crawl
func (s *Server) handleRetryCrawl(c *gin.Context) {
	company, ok := s.loadCompany(c)
	if !ok {
		return
	}

	switch company.LastCrawlStatus {
	case models.CrawlBlocked, models.CrawlManualNeeded, models.CrawlError:
	default:
		c.JSON(http.StatusConflict, gin.H{
			"queued": false,
			"reason": "Last crawl did not fail; use crawl-now to force a re-crawl",
		})
		return
	}

	leaseActive, err := s.store.RequestCrawlNow(c.Request.Context(), company.ID, company.UserID, s.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Crawl request failed"})
		return
	}
	if leaseActive {
		c.JSON(http.StatusConflict, gin.H{"queued": false, "reason": "A crawl is already in progress for this company"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

func (s *Server) loadCompany(c *gin.Context) (*models.Company, bool) {
	company, err := s.store.GetCompany(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Company lookup failed"})
		return nil, false
	}
	if company == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
		return nil, false
	}
	return company, true
}
