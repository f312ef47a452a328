package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pricelens/crawl-engine/pkg/models"
)

const maxFeedLimit = 100

// handleDashboardOverview returns the tracked companies with their crawl
// state plus the caller's entitlements, one round trip for the main screen.
// GET /api/v1/dashboard/overview
func (s *Server) handleDashboardOverview(c *gin.Context) {
	uid := userID(c)
	ent, ok := s.resolveEntitlements(c)
	if !ok {
		return
	}

	companies, err := s.store.ListCompanies(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Company listing failed"})
		return
	}

	competitors := 0
	var attention []string
	for _, company := range companies {
		if company.Type != models.CompanyCompetitor {
			continue
		}
		competitors++
		switch company.LastCrawlStatus {
		case models.CrawlBlocked, models.CrawlManualNeeded, models.CrawlError:
			attention = append(attention, company.ID)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"companies":       companies,
		"entitlements":    ent,
		"competitorCount": competitors,
		"needsAttention":  attention,
	})
}

// handleDashboardFeed returns recent diffs, insights and audit events.
// GET /api/v1/dashboard/feed?limit=20
func (s *Server) handleDashboardFeed(c *gin.Context) {
	uid := userID(c)
	limit := feedLimit(c.DefaultQuery("limit", "20"))

	diffs, err := s.store.ListRecentDiffs(c.Request.Context(), uid, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Diff listing failed"})
		return
	}
	insights, err := s.store.ListRecentInsights(c.Request.Context(), uid, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Insight listing failed"})
		return
	}
	events, err := s.store.ListRecentAuditEvents(c.Request.Context(), uid, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event listing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"diffs":    diffs,
		"insights": insights,
		"events":   events,
	})
}

type comparisonEntry struct {
	Company    models.Company   `json:"company"`
	Snapshot   *models.Snapshot `json:"snapshot"`
	IsVerified bool             `json:"isVerified"`
}

// handleDashboardComparison lines up the caller's own latest pricing
// snapshot against every competitor's latest snapshot.
// GET /api/v1/dashboard/comparison
func (s *Server) handleDashboardComparison(c *gin.Context) {
	uid := userID(c)
	companies, err := s.store.ListCompanies(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Company listing failed"})
		return
	}

	var self *comparisonEntry
	competitors := make([]comparisonEntry, 0, len(companies))
	for _, company := range companies {
		snap, err := s.store.LatestSnapshot(c.Request.Context(), company.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Snapshot lookup failed"})
			return
		}
		entry := comparisonEntry{Company: company, Snapshot: snap}
		if snap != nil {
			entry.IsVerified = snap.IsVerified
		}
		if company.Type == models.CompanySelf {
			self = &entry
			continue
		}
		competitors = append(competitors, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"self":        self,
		"competitors": competitors,
	})
}

type feedbackRequest struct {
	Feedback models.Feedback `json:"feedback"`
}

// handleInsightFeedback stores the caller's reaction to an insight.
// POST /api/v1/insights/:id/feedback
func (s *Server) handleInsightFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	switch req.Feedback {
	case models.FeedbackHelpful, models.FeedbackNotHelpful, models.FeedbackNone:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "feedback must be helpful, not_helpful or none"})
		return
	}

	updated, err := s.store.SetInsightFeedback(c.Request.Context(), c.Param("id"), userID(c), req.Feedback)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Feedback update failed"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Insight not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": req.Feedback})
}

func feedLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 20
	}
	if n > maxFeedLimit {
		return maxFeedLimit
	}
	return n
}
