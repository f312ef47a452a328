package api

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricelens/crawl-engine/internal/config"
	"github.com/pricelens/crawl-engine/internal/db"
	"github.com/pricelens/crawl-engine/internal/discovery"
	"github.com/pricelens/crawl-engine/internal/entitlements"
	"github.com/pricelens/crawl-engine/pkg/models"
)

// Store is the persistence surface the HTTP layer needs. *db.PostgresStore
// satisfies it; handler tests use an in-memory fake.
type Store interface {
	GetUserIDBySession(ctx context.Context, token string, now time.Time) (string, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	StartTrial(ctx context.Context, userID string, now, endsAt time.Time) (bool, error)
	UpdateTrialStatus(ctx context.Context, userID string, from, to models.TrialStatus, now time.Time) (bool, error)
	SetPaidAccess(ctx context.Context, userID string, hasPaidAccess bool, priceTag string, now time.Time) error

	CreateCompany(ctx context.Context, c *models.Company, now time.Time) error
	GetCompany(ctx context.Context, id, userID string) (*models.Company, error)
	ListCompanies(ctx context.Context, userID string) ([]models.Company, error)
	CountCompetitors(ctx context.Context, userID string) (int, error)
	RenameCompany(ctx context.Context, companyID, userID, name string, now time.Time) (bool, error)
	SetPrimaryPricingURL(ctx context.Context, companyID, userID, url string, candidates []models.PricingURLCandidate, now time.Time) error
	SaveCandidates(ctx context.Context, companyID, userID string, candidates []models.PricingURLCandidate, now time.Time) error
	RequestCrawlNow(ctx context.Context, companyID, userID string, now time.Time) (bool, error)

	LatestSnapshot(ctx context.Context, companyID string) (*models.Snapshot, error)
	ListRecentDiffs(ctx context.Context, userID string, limit int) ([]models.Diff, error)
	ListRecentInsights(ctx context.Context, userID string, limit int) ([]models.Insight, error)
	SetInsightFeedback(ctx context.Context, insightID, userID string, feedback models.Feedback) (bool, error)

	AcquireLock(ctx context.Context, key string, ttl time.Duration, now time.Time) (models.LockAcquireResult, error)
	ReleaseLock(ctx context.Context, key, ownerID string, now time.Time) error
	IncrementRateLimit(ctx context.Context, key string, window time.Duration, now time.Time) (models.RateLimitCounter, error)

	SaveAuditEvent(ctx context.Context, ev *models.AuditEvent) error
	ListRecentAuditEvents(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error)

	ClaimWebhookEvent(ctx context.Context, eventID, eventType string, ttl time.Duration, now time.Time) (bool, models.WebhookEventStatus, error)
	CompleteWebhookEvent(ctx context.Context, eventID string, now time.Time) error
	FailWebhookEvent(ctx context.Context, eventID, lastError string) error
}

// CrawlRunner triggers one crawl batch.
type CrawlRunner interface {
	Run(ctx context.Context, limit int) models.BatchResult
}

// DigestRunner triggers one digest pass.
type DigestRunner interface {
	Run(ctx context.Context) models.DigestResult
}

// Server carries the handler dependencies.
type Server struct {
	store      Store
	runner     CrawlRunner
	digest     DigestRunner
	discoverer *discovery.Discoverer
	resolver   *entitlements.Resolver
	hub        *Hub
	cfg        *config.Config
	now        func() time.Time
}

func NewServer(store Store, runner CrawlRunner, digest DigestRunner,
	discoverer *discovery.Discoverer, resolver *entitlements.Resolver,
	hub *Hub, cfg *config.Config) *Server {
	return &Server{
		store:      store,
		runner:     runner,
		digest:     digest,
		discoverer: discoverer,
		resolver:   resolver,
		hub:        hub,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetupRouter wires all routes. Cron endpoints are secret-protected, user
// endpoints require a session and are rate limited per user.
func SetupRouter(s *Server) *gin.Engine {
	r := gin.Default()

	// CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://app.pricelens.io
	// Development: leave empty for *
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/stream", s.hub.Subscribe)

		cron := api.Group("/cron", CronAuthMiddleware(s.cfg.CronSecret))
		{
			// GET and POST both work so any scheduler can ping these.
			cron.GET("/crawl", s.handleRunCrawls)
			cron.POST("/crawl", s.handleRunCrawls)
			cron.GET("/digest", s.handleRunDigest)
			cron.POST("/digest", s.handleRunDigest)
		}

		api.POST("/webhooks/billing", CronAuthMiddleware(s.cfg.CronSecret), s.handleBillingWebhook)

		user := api.Group("", s.SessionAuthMiddleware(), s.RateLimitMiddleware("user"))
		{
			user.GET("/entitlements/me", s.handleMyEntitlements)
			user.POST("/trial/start", s.handleStartTrial)

			user.POST("/companies", s.handleCreateCompany)
			user.GET("/companies", s.handleListCompanies)
			user.GET("/companies/:id", s.handleGetCompany)
			user.PATCH("/companies/:id", s.handleUpdateCompany)
			user.GET("/companies/:id/snapshot", s.handleLatestSnapshot)
			user.POST("/companies/:id/discover-pricing", s.handleDiscoverPricing)
			user.PATCH("/companies/:id/primary-pricing", s.handleSetPrimaryPricingURL)
			user.POST("/companies/:id/crawl-now", s.handleCrawlNow)
			user.POST("/companies/:id/retry-crawl", s.handleRetryCrawl)

			user.GET("/dashboard/overview", s.handleDashboardOverview)
			user.GET("/dashboard/feed", s.handleDashboardFeed)
			user.GET("/dashboard/comparison", s.handleDashboardComparison)
			user.POST("/insights/:id/feedback", s.handleInsightFeedback)
		}
	}

	return r
}

// handleHealth reports liveness and which collaborators are wired.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"engine":      "PriceLens Crawl Engine v1",
		"dbConnected": s.store != nil,
		"capabilities": gin.H{
			"crawl_batches":  s.runner != nil,
			"weekly_digest":  s.digest != nil,
			"url_discovery":  s.discoverer != nil,
			"live_stream":    s.hub != nil,
			"insight_engine": true,
		},
	})
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

var _ Store = (*db.PostgresStore)(nil)
