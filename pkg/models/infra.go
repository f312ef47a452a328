package models

import "time"

// CronRunLock is the single-writer guard for a named scheduled job.
// The lock is free iff LockUntil <= now.
type CronRunLock struct {
	Key            string     `json:"key"`
	OwnerID        string     `json:"ownerId"`
	LockUntil      time.Time  `json:"lockUntil"`
	LockedAt       time.Time  `json:"lockedAt"`
	LastReleasedAt *time.Time `json:"lastReleasedAt,omitempty"`
}

// LockAcquireResult reports the outcome of a lock acquisition attempt.
type LockAcquireResult struct {
	Acquired          bool      `json:"acquired"`
	OwnerID           string    `json:"ownerId,omitempty"`
	LockUntil         time.Time `json:"lockUntil"`
	RetryAfterSeconds int       `json:"retryAfterSeconds,omitempty"`
}

// WebhookEventStatus is the processing state of one billing webhook event.
type WebhookEventStatus string

const (
	WebhookProcessing WebhookEventStatus = "processing"
	WebhookProcessed  WebhookEventStatus = "processed"
	WebhookFailed     WebhookEventStatus = "failed"
)

// ProcessedWebhookEvent is the idempotency ledger row for billing events.
// The billing processor itself is an external collaborator; the core only
// provides the claim/complete/fail store operations.
type ProcessedWebhookEvent struct {
	EventID       string             `json:"eventId"`
	EventType     string             `json:"eventType"`
	Status        WebhookEventStatus `json:"status"`
	Attempts      int                `json:"attempts"`
	LockExpiresAt time.Time          `json:"lockExpiresAt"`
	ProcessedAt   *time.Time         `json:"processedAt,omitempty"`
	LastError     string             `json:"lastError,omitempty"`
}

// RateLimitCounter is a per-key fixed-window counter for interactive routes.
type RateLimitCounter struct {
	Key             string    `json:"key"`
	Count           int       `json:"count"`
	WindowStartedAt time.Time `json:"windowStartedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// AuditEvent records a lifecycle or crawl outcome for the activity feed and
// the live stream.
type AuditEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId,omitempty"`
	CompanyID string            `json:"companyId,omitempty"`
	Type      string            `json:"type"`
	Outcome   string            `json:"outcome"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ItemResult summarizes one company's pass through the batch runner.
type ItemResult struct {
	CompanyID string      `json:"companyId"`
	Domain    string      `json:"domain"`
	Status    CrawlStatus `json:"status"`
	Outcome   string      `json:"outcome"`
	Error     string      `json:"error,omitempty"`
}

// BatchResult summarizes one scheduler invocation.
type BatchResult struct {
	Claimed      int          `json:"claimed"`
	OK           int          `json:"ok"`
	Unchanged    int          `json:"unchanged"`
	Blocked      int          `json:"blocked"`
	ManualNeeded int          `json:"manualNeeded"`
	Errored      int          `json:"errored"`
	NoURL        int          `json:"noUrl"`
	NotEntitled  int          `json:"notEntitled"`
	Snapshots    int          `json:"snapshots"`
	Diffs        int          `json:"diffs"`
	Insights     int          `json:"insights"`
	DurationMs   int64        `json:"durationMs"`
	Items        []ItemResult `json:"items"`
}

// DigestResult summarizes one weekly digest invocation.
type DigestResult struct {
	UsersConsidered int `json:"usersConsidered"`
	Sent            int `json:"sent"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}
