package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricelens/crawl-engine/pkg/models"
)

const (
	crawlLockKey  = "cron:crawl"
	digestLockKey = "cron:digest"

	lockReleaseTimeout = 10 * time.Second
)

// handleRunCrawls triggers one crawl batch. The invocation lock guarantees a
// single concurrent batch across all replicas; a held lock answers 202 so the
// scheduler treats the overlap as benign.
// GET|POST /api/v1/cron/crawl?limit=5
func (s *Server) handleRunCrawls(c *gin.Context) {
	limit := s.cfg.CrawlBatchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		// limit=0 keeps the configured default.
		if n > 0 {
			limit = n
		}
	}

	now := s.now()
	lock, err := s.store.AcquireLock(c.Request.Context(), crawlLockKey, s.cfg.CrawlLockTTL, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lock acquisition failed", "details": err.Error()})
		return
	}
	if !lock.Acquired {
		s.answerLockActive(c, lock)
		return
	}
	defer s.releaseLock(c, crawlLockKey, lock.OwnerID)

	result := s.runner.Run(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{"ok": true, "skipped": false, "result": result})
}

// handleRunDigest triggers one weekly-digest pass under its own lock.
// GET|POST /api/v1/cron/digest
func (s *Server) handleRunDigest(c *gin.Context) {
	now := s.now()
	lock, err := s.store.AcquireLock(c.Request.Context(), digestLockKey, s.cfg.DigestLockTTL, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lock acquisition failed", "details": err.Error()})
		return
	}
	if !lock.Acquired {
		s.answerLockActive(c, lock)
		return
	}
	defer s.releaseLock(c, digestLockKey, lock.OwnerID)

	result := s.digest.Run(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": true, "skipped": false, "result": result})
}

func (s *Server) answerLockActive(c *gin.Context, lock models.LockAcquireResult) {
	c.Header("Retry-After", strconv.Itoa(lock.RetryAfterSeconds))
	c.JSON(http.StatusAccepted, gin.H{
		"skipped":           true,
		"reason":            "lock_active",
		"retryAfterSeconds": lock.RetryAfterSeconds,
		"lockUntil":         lock.LockUntil,
	})
}

// releaseLock must succeed even when the scheduler hung up mid-batch, so it
// runs detached from the request context.
func (s *Server) releaseLock(c *gin.Context, key, ownerID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), lockReleaseTimeout)
	defer cancel()
	if err := s.store.ReleaseLock(ctx, key, ownerID, s.now()); err != nil {
		log.Printf("[Cron] %s lock release failed: %v", key, err)
	}
}
