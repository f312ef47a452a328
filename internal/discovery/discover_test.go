package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pricelens/crawl-engine/internal/extract"
	"github.com/pricelens/crawl-engine/pkg/models"
)

func testDiscoverer() *Discoverer {
	return New(extract.NewFetcher(5*time.Second, 1_000_000), 0.86, 0.08)
}

func TestDiscover_RanksAndRecommends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
<a href="/pricing">Pricing</a>
<a href="/plans">See options</a>
<a href="/blog">Blog</a>
<a href="/docs">Documentation</a>
<a href="mailto:hi@acme.com">Email us</a>
<a href="https://other.com/pricing">Partner pricing</a>
<a href="/logo.png">Logo</a>
</body></html>`)
	}))
	defer srv.Close()

	result, err := testDiscoverer().Discover(context.Background(), srv.URL, "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("candidates = %+v", result.Candidates)
	}
	// /pricing: path 0.85 + text 0.42 + both-hit 0.10 -> capped at 1.00
	if result.Candidates[0].Confidence != 1.00 {
		t.Errorf("top confidence = %v, want 1.00", result.Candidates[0].Confidence)
	}
	if result.RecommendedPrimaryURL != result.Candidates[0].URL {
		t.Errorf("recommended = %q, want the clear winner %q", result.RecommendedPrimaryURL, result.Candidates[0].URL)
	}
	// Off-domain, mailto and asset links never qualify.
	for _, c := range result.Candidates {
		if c.URL == "https://other.com/pricing" {
			t.Error("off-domain candidate leaked through")
		}
	}
}

func TestDiscover_NoRecommendationOnAmbiguity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Two near-identical scorers: gap below the threshold.
		fmt.Fprint(w, `<html><body>
<a href="/pricing">Pricing</a>
<a href="/pricing/teams">Pricing</a>
</body></html>`)
	}))
	defer srv.Close()

	result, err := testDiscoverer().Discover(context.Background(), srv.URL, "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("candidates = %+v", result.Candidates)
	}
	if result.RecommendedPrimaryURL != "" {
		t.Errorf("ambiguous scores must not recommend, got %q", result.RecommendedPrimaryURL)
	}
}

func TestDiscover_UnreachableHomepageIsEmpty(t *testing.T) {
	result, err := testDiscoverer().Discover(context.Background(), "http://127.0.0.1:1/", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Candidates) != 0 || result.RecommendedPrimaryURL != "" {
		t.Errorf("unreachable homepage should produce an empty result: %+v", result)
	}
}

func TestScoreCandidate(t *testing.T) {
	cases := []struct {
		url  string
		text string
		want float64
	}{
		{"https://acme.com/pricing", "Pricing", 1.00},    // 0.85 + 0.42 + 0.10 capped
		{"https://acme.com/plans", "Compare plans", 1.0}, // 0.80 + 0.35 + 0.10 = 1.25 capped
		{"https://acme.com/about", "About", 0},
		{"https://acme.com/blog/pricing-tips", "Read more", 0.15}, // 0.85 - 0.70
		{"https://acme.com/pricing.png", "Pricing", 0},            // asset
	}
	for _, tc := range cases {
		if got := scoreCandidate(tc.url, tc.text); got != tc.want {
			t.Errorf("score(%q, %q) = %v, want %v", tc.url, tc.text, got, tc.want)
		}
	}
}

func TestMergeCandidates_Commutative(t *testing.T) {
	a := []models.PricingURLCandidate{
		{URL: "https://acme.com/pricing", Confidence: 0.85},
		{URL: "https://acme.com/plans", Confidence: 0.40, SelectedByUser: true},
	}
	b := []models.PricingURLCandidate{
		{URL: "https://www.acme.com/pricing", Confidence: 0.95}, // same after normalization
		{URL: "https://acme.com/enterprise", Confidence: 0.50},
	}

	ab := MergeCandidates(a, b)
	ba := MergeCandidates(b, a)
	if len(ab) != 3 || len(ba) != 3 {
		t.Fatalf("merge sizes: %d and %d, want 3", len(ab), len(ba))
	}
	for i := range ab {
		if ab[i] != ba[i] {
			t.Errorf("merge is not commutative at %d: %+v vs %+v", i, ab[i], ba[i])
		}
	}
	if ab[0].URL != "https://acme.com/pricing" || ab[0].Confidence != 0.95 {
		t.Errorf("max confidence should win: %+v", ab[0])
	}
	for _, c := range ab {
		if c.URL == "https://acme.com/plans" && !c.SelectedByUser {
			t.Error("selectedByUser flag lost in merge")
		}
	}
}
