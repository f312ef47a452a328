package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricelens/crawl-engine/internal/entitlements"
	"github.com/pricelens/crawl-engine/pkg/models"
)

const trialDuration = 14 * 24 * time.Hour

// handleMyEntitlements reports what the caller can do right now. The lazy
// trial refresh is applied first so a just-expired trial answers truthfully.
// GET /api/v1/entitlements/me
func (s *Server) handleMyEntitlements(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	ent := s.resolver.Resolve(*user, s.now())
	c.JSON(http.StatusOK, gin.H{
		"entitlements": ent,
		"trialStatus":  user.TrialStatus,
		"trialEndsAt":  user.TrialEndsAt,
	})
}

// handleStartTrial begins the one-shot free trial. Every repeat request
// answers 409 with the precise reason so the frontend can explain itself.
// POST /api/v1/trial/start
func (s *Server) handleStartTrial(c *gin.Context) {
	user, ok := s.loadUser(c)
	if !ok {
		return
	}

	if user.HasPaidAccess {
		c.JSON(http.StatusConflict, gin.H{"error": "Trial unavailable", "reason": "paid_user"})
		return
	}
	switch user.TrialStatus {
	case models.TrialActive:
		c.JSON(http.StatusConflict, gin.H{"error": "Trial unavailable", "reason": "already_active"})
		return
	case models.TrialExpired:
		c.JSON(http.StatusConflict, gin.H{"error": "Trial unavailable", "reason": "already_expired"})
		return
	case models.TrialConverted:
		c.JSON(http.StatusConflict, gin.H{"error": "Trial unavailable", "reason": "already_converted"})
		return
	}

	now := s.now()
	endsAt := now.Add(trialDuration)
	started, err := s.store.StartTrial(c.Request.Context(), user.ID, now, endsAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Trial start failed"})
		return
	}
	if !started {
		// A concurrent request won the one-shot transition.
		c.JSON(http.StatusConflict, gin.H{"error": "Trial unavailable", "reason": "already_active"})
		return
	}

	s.auditEvent(c, user.ID, "", "trial_started", "ok", nil)
	c.JSON(http.StatusOK, gin.H{"trialStatus": models.TrialActive, "trialEndsAt": endsAt})
}

// loadUser fetches the caller and persists any pending trial transition.
func (s *Server) loadUser(c *gin.Context) (*models.User, bool) {
	uid := userID(c)
	user, err := s.store.GetUser(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User lookup failed"})
		return nil, false
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
		return nil, false
	}

	now := s.now()
	if next, pending := s.resolver.RefreshTrialStatus(*user, now); pending {
		if _, err := s.store.UpdateTrialStatus(c.Request.Context(), user.ID, user.TrialStatus, next, now); err != nil {
			log.Printf("[API] trial refresh failed for user %s: %v", user.ID, err)
		} else {
			user.TrialStatus = next
		}
	}
	return user, true
}

func (s *Server) resolveEntitlements(c *gin.Context) (entitlements.Entitlements, bool) {
	user, ok := s.loadUser(c)
	if !ok {
		return entitlements.Entitlements{}, false
	}
	return s.resolver.Resolve(*user, s.now()), true
}

func (s *Server) auditEvent(c *gin.Context, uid, companyID, eventType, outcome string, metadata map[string]string) {
	ev := models.AuditEvent{
		UserID:    uid,
		CompanyID: companyID,
		Type:      eventType,
		Outcome:   outcome,
		Metadata:  metadata,
		CreatedAt: s.now(),
	}
	if err := s.store.SaveAuditEvent(c.Request.Context(), &ev); err != nil {
		log.Printf("[API] audit write failed: %v", err)
	}
	if s.hub != nil {
		s.hub.PublishAudit(ev)
	}
}

func intToString(n int) string {
	return strconv.Itoa(n)
}
