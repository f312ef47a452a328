package extract

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Status classifies the outcome of a fetch/extract attempt. It maps 1:1 onto
// the company's last-crawl status.
type Status string

const (
	StatusOK           Status = "ok"
	StatusBlocked      Status = "blocked"
	StatusManualNeeded Status = "manual_needed"
	StatusError        Status = "error"
)

const (
	userAgent    = "PriceLensBot/1.0 (+https://pricelens.io/bot)"
	acceptHeader = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
)

// Fetcher is the bounded HTTP GET used by the extractor and discovery.
// Redirects are followed, bodies are truncated to maxHTMLLength bytes.
type Fetcher struct {
	client        *http.Client
	maxHTMLLength int
}

// FetchResult carries the page body or the classified failure.
type FetchResult struct {
	HTML   string
	Status Status
	Reason string
}

func NewFetcher(timeout time.Duration, maxHTMLLength int) *Fetcher {
	return &Fetcher{
		client:        &http.Client{Timeout: timeout},
		maxHTMLLength: maxHTMLLength,
	}
}

// Fetch GETs the given URL and classifies failures:
// timeouts -> error "Request timed out"; 401/403/429 -> blocked; other 4xx ->
// manual_needed; 5xx and transport faults -> error; non-HTML -> manual_needed.
func (f *Fetcher) Fetch(ctx context.Context, url string) FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{Status: StatusManualNeeded, Reason: "Invalid URL"}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return FetchResult{Status: StatusError, Reason: "Request timed out"}
		}
		return FetchResult{Status: StatusError, Reason: "Request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests:
		return FetchResult{Status: StatusBlocked, Reason: "Blocked with HTTP " + resp.Status}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return FetchResult{Status: StatusManualNeeded, Reason: "HTTP " + resp.Status}
	case resp.StatusCode >= 500:
		return FetchResult{Status: StatusError, Reason: "HTTP " + resp.Status}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "text/html") {
		return FetchResult{Status: StatusManualNeeded, Reason: "Unsupported content type: " + contentType}
	}

	// Oversized bodies are silently truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxHTMLLength)))
	if err != nil {
		if isTimeout(err) {
			return FetchResult{Status: StatusError, Reason: "Request timed out"}
		}
		return FetchResult{Status: StatusError, Reason: "Failed to read response: " + err.Error()}
	}

	return FetchResult{Status: StatusOK, HTML: string(body)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
