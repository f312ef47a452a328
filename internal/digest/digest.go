package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pricelens/crawl-engine/internal/config"
	"github.com/pricelens/crawl-engine/internal/entitlements"
	"github.com/pricelens/crawl-engine/pkg/models"
)

// Store is the persistence surface the digest job needs.
type Store interface {
	ListDigestCandidates(ctx context.Context) ([]models.User, error)
	ListVerifiedDiffsSince(ctx context.Context, userID string, since time.Time, limit int) ([]models.Diff, error)
	ListCompanies(ctx context.Context, userID string) ([]models.Company, error)
	SetLastDigestSentAt(ctx context.Context, userID string, sentAt time.Time) error
}

// EmailSender delivers one digest email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// LogSender is the default sender when no email provider is configured. It
// logs instead of delivering, which keeps staging environments quiet.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, _, _ string) error {
	log.Printf("[Digest] email suppressed (no sender configured): to=%s subject=%q", to, subject)
	return nil
}

// Job assembles and sends the weekly pricing digest.
type Job struct {
	store    Store
	sender   EmailSender
	resolver *entitlements.Resolver
	cfg      *config.Config
	now      func() time.Time
}

func NewJob(store Store, sender EmailSender, resolver *entitlements.Resolver, cfg *config.Config) *Job {
	if sender == nil {
		sender = LogSender{}
	}
	return &Job{store: store, sender: sender, resolver: resolver, cfg: cfg, now: time.Now}
}

// Run sends at most one digest per entitled user. A user is skipped when
// their entitlements exclude the digest, when a digest already went out
// inside the lookback window, or when no verified diff exists to report.
// One failed delivery never aborts the batch.
func (j *Job) Run(ctx context.Context) models.DigestResult {
	var result models.DigestResult

	users, err := j.store.ListDigestCandidates(ctx)
	if err != nil {
		log.Printf("[Digest] candidate listing failed: %v", err)
		return result
	}
	result.UsersConsidered = len(users)

	now := j.now()
	since := now.Add(-j.cfg.DigestLookback)

	for _, user := range users {
		ent := j.resolver.Resolve(user, now)
		if !ent.CanReceiveWeeklyDigest {
			result.Skipped++
			continue
		}
		if user.LastDigestSentAt != nil && user.LastDigestSentAt.After(since) {
			result.Skipped++
			continue
		}

		diffs, err := j.store.ListVerifiedDiffsSince(ctx, user.ID, since, j.cfg.DigestMaxDiffs)
		if err != nil {
			log.Printf("[Digest] diff listing failed for user %s: %v", user.ID, err)
			result.Failed++
			continue
		}
		if len(diffs) == 0 {
			result.Skipped++
			continue
		}

		names, err := j.companyNames(ctx, user.ID)
		if err != nil {
			log.Printf("[Digest] company listing failed for user %s: %v", user.ID, err)
			result.Failed++
			continue
		}

		subject, textBody, htmlBody := compose(diffs, names)
		if err := j.sender.Send(ctx, user.Email, subject, textBody, htmlBody); err != nil {
			log.Printf("[Digest] delivery failed for user %s: %v", user.ID, err)
			result.Failed++
			continue
		}
		if err := j.store.SetLastDigestSentAt(ctx, user.ID, now); err != nil {
			log.Printf("[Digest] sent-at stamp failed for user %s: %v", user.ID, err)
		}
		result.Sent++
	}

	log.Printf("[Digest] done: considered=%d sent=%d skipped=%d failed=%d",
		result.UsersConsidered, result.Sent, result.Skipped, result.Failed)
	return result
}

func (j *Job) companyNames(ctx context.Context, userID string) (map[string]string, error) {
	companies, err := j.store.ListCompanies(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(companies))
	for _, c := range companies {
		names[c.ID] = c.Name
	}
	return names, nil
}

func compose(diffs []models.Diff, companyNames map[string]string) (subject, textBody, htmlBody string) {
	subject = fmt.Sprintf("Your weekly competitor pricing digest (%d change", len(diffs))
	if len(diffs) == 1 {
		subject += ")"
	} else {
		subject += "s)"
	}

	bySeverity := map[models.Severity]int{}
	for _, d := range diffs {
		bySeverity[d.Severity]++
	}
	tally := fmt.Sprintf("%d high, %d medium, %d low",
		bySeverity[models.SeverityHigh], bySeverity[models.SeverityMedium], bySeverity[models.SeverityLow])

	var text strings.Builder
	var html strings.Builder
	text.WriteString("Verified competitor pricing changes this week: " + tally + "\n\n")
	html.WriteString("<h2>Verified competitor pricing changes this week</h2>")
	html.WriteString("<p>" + tally + "</p><ul>")

	for _, d := range diffs {
		name := companyNames[d.CompanyID]
		if name == "" {
			name = "a tracked competitor"
		}
		line := fmt.Sprintf("%s: %s severity change on %s",
			name, d.Severity, d.DetectedAt.Format("Jan 2"))
		text.WriteString("- " + line + "\n")
		html.WriteString("<li>" + line + "</li>")
	}
	html.WriteString("</ul>")
	return subject, text.String(), html.String()
}
