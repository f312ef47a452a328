package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricelens/crawl-engine/pkg/models"
)

const webhookClaimTTL = 5 * time.Minute

type billingWebhookRequest struct {
	EventID       string `json:"eventId"`
	EventType     string `json:"eventType"`
	UserID        string `json:"userId"`
	PriceTag      string `json:"priceTag"`
	HasPaidAccess bool   `json:"hasPaidAccess"`
}

// handleBillingWebhook applies a billing provider event exactly once. The
// idempotency ledger absorbs duplicate deliveries: a processed event answers
// 200 without re-applying, an in-flight claim answers 409 so the provider
// retries later.
// POST /api/v1/webhooks/billing
func (s *Server) handleBillingWebhook(c *gin.Context) {
	var req billingWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.EventID == "" || req.EventType == "" || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "eventId, eventType and userId are required"})
		return
	}

	now := s.now()
	claimed, status, err := s.store.ClaimWebhookEvent(c.Request.Context(), req.EventID, req.EventType, webhookClaimTTL, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event claim failed"})
		return
	}
	if !claimed {
		if status == models.WebhookProcessed {
			c.JSON(http.StatusOK, gin.H{"status": status, "duplicate": true})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"status": status, "error": "Event is being processed"})
		return
	}

	if err := s.applyBillingEvent(c, req, now); err != nil {
		if failErr := s.store.FailWebhookEvent(c.Request.Context(), req.EventID, err.Error()); failErr != nil {
			log.Printf("[Webhook] fail mark failed for event %s: %v", req.EventID, failErr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event processing failed"})
		return
	}

	if err := s.store.CompleteWebhookEvent(c.Request.Context(), req.EventID, s.now()); err != nil {
		log.Printf("[Webhook] complete mark failed for event %s: %v", req.EventID, err)
	}
	c.JSON(http.StatusOK, gin.H{"status": models.WebhookProcessed})
}

func (s *Server) applyBillingEvent(c *gin.Context, req billingWebhookRequest, now time.Time) error {
	if err := s.store.SetPaidAccess(c.Request.Context(), req.UserID, req.HasPaidAccess, req.PriceTag, now); err != nil {
		return err
	}

	// A user converting mid-trial gets the converted stamp right away
	// instead of waiting for the lazy refresh.
	if req.HasPaidAccess {
		if _, err := s.store.UpdateTrialStatus(c.Request.Context(), req.UserID, models.TrialActive, models.TrialConverted, now); err != nil {
			return err
		}
	}

	s.auditEvent(c, req.UserID, "", "billing_event", req.EventType, map[string]string{
		"eventId":  req.EventID,
		"priceTag": req.PriceTag,
	})
	return nil
}
