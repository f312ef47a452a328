package discovery

import (
	"context"
	"log"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/pricelens/crawl-engine/internal/extract"
	"github.com/pricelens/crawl-engine/internal/normalize"
	"github.com/pricelens/crawl-engine/internal/pricing"
	"github.com/pricelens/crawl-engine/pkg/models"
)

const (
	minCandidateConfidence = 0.35
	maxCandidates          = 8
	bothHitBonus           = 0.10
)

type patternWeight struct {
	substr string
	weight float64
}

var pathPositive = []patternWeight{
	{"/pricing", 0.85},
	{"/plans", 0.80},
	{"/plan", 0.60},
	{"pricing", 0.45},
	{"plans", 0.35},
}

var pathNegative = []patternWeight{
	{"/blog", -0.70},
	{"/docs", -0.70},
	{"/legal", -0.70},
	{"/login", -0.70},
	{"/signin", -0.60},
	{"/careers", -0.60},
}

var textPositive = []patternWeight{
	{"pricing", 0.42},
	{"plans", 0.35},
	{"free trial", 0.25},
	{"plan", 0.20},
}

var textNegative = []patternWeight{
	{"blog", -0.50},
	{"docs", -0.50},
	{"documentation", -0.50},
	{"login", -0.50},
	{"sign in", -0.50},
}

var assetExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".css", ".js", ".pdf", ".zip", ".ico", ".webp"}

// Result is the outcome of scoring a homepage's internal links.
type Result struct {
	Candidates            []models.PricingURLCandidate `json:"candidates"`
	RecommendedPrimaryURL string                       `json:"recommendedPrimaryUrl,omitempty"`
}

// Discoverer finds likely pricing URLs on a company homepage.
type Discoverer struct {
	fetcher *extract.Fetcher

	// Recommendation thresholds; a primary is only recommended for an
	// unambiguous winner.
	primaryMinConfidence float64
	primaryMinGap        float64
}

func New(fetcher *extract.Fetcher, primaryMinConfidence, primaryMinGap float64) *Discoverer {
	return &Discoverer{
		fetcher:              fetcher,
		primaryMinConfidence: primaryMinConfidence,
		primaryMinGap:        primaryMinGap,
	}
}

// Discover fetches the homepage, scores every same-domain anchor as a
// pricing-URL candidate and keeps the top scorers. Zero qualifying anchors
// is not an error: the result is simply empty.
func (d *Discoverer) Discover(ctx context.Context, homepageURL, allowedDomain string) (Result, error) {
	base := normalize.URL(homepageURL)
	if base == "" {
		return Result{Candidates: []models.PricingURLCandidate{}}, nil
	}

	fetched := d.fetcher.Fetch(ctx, base)
	if fetched.Status != extract.StatusOK {
		log.Printf("[Discovery] homepage fetch failed for %s: %s", base, fetched.Reason)
		return Result{Candidates: []models.PricingURLCandidate{}}, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return Result{Candidates: []models.PricingURLCandidate{}}, nil
	}

	best := make(map[string]models.PricingURLCandidate)
	for _, anchor := range extractAnchors(fetched.HTML) {
		candidateURL, ok := resolveCandidate(baseURL, anchor.href, allowedDomain)
		if !ok {
			continue
		}
		confidence := scoreCandidate(candidateURL, anchor.text)
		if confidence < minCandidateConfidence {
			continue
		}
		if existing, seen := best[candidateURL]; !seen || confidence > existing.Confidence {
			best[candidateURL] = models.PricingURLCandidate{URL: candidateURL, Confidence: confidence}
		}
	}

	candidates := make([]models.PricingURLCandidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].URL < candidates[j].URL
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	result := Result{Candidates: candidates}
	if len(candidates) > 0 && candidates[0].Confidence >= d.primaryMinConfidence {
		if len(candidates) == 1 || candidates[0].Confidence-candidates[1].Confidence >= d.primaryMinGap {
			result.RecommendedPrimaryURL = candidates[0].URL
		}
	}
	return result, nil
}

type anchor struct {
	href string
	text string
}

func extractAnchors(rawHTML string) []anchor {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))

	var anchors []anchor
	var current *anchor
	var text strings.Builder

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return anchors
		case html.StartTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			href := ""
			for {
				key, val, more := tokenizer.TagAttr()
				if strings.ToLower(string(key)) == "href" {
					href = string(val)
				}
				if !more {
					break
				}
			}
			if href != "" {
				current = &anchor{href: href}
				text.Reset()
			}
		case html.TextToken:
			if current != nil {
				text.WriteString(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "a" && current != nil {
				current.text = normalize.CollapseWhitespace(text.String())
				anchors = append(anchors, *current)
				current = nil
			}
		}
	}
}

func resolveCandidate(base *url.URL, href, allowedDomain string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := normalize.URL(base.ResolveReference(ref).String())
	if resolved == "" {
		return "", false
	}
	if !normalize.MatchesDomain(resolved, allowedDomain) {
		return "", false
	}
	return resolved, true
}

func scoreCandidate(candidateURL, anchorText string) float64 {
	parsed, err := url.Parse(candidateURL)
	if err != nil {
		return 0
	}
	path := strings.ToLower(parsed.Path)
	text := strings.ToLower(anchorText)

	for _, ext := range assetExtensions {
		if strings.HasSuffix(path, ext) {
			return 0
		}
	}

	score := 0.0
	pathHit := false
	for _, p := range pathPositive {
		if strings.Contains(path, p.substr) {
			score += p.weight
			pathHit = true
			break
		}
	}
	for _, p := range pathNegative {
		if strings.Contains(path, p.substr) {
			score += p.weight
			break
		}
	}

	textHit := false
	for _, p := range textPositive {
		if strings.Contains(text, p.substr) {
			score += p.weight
			textHit = true
			break
		}
	}
	for _, p := range textNegative {
		if strings.Contains(text, p.substr) {
			score += p.weight
			break
		}
	}

	if pathHit && textHit {
		score += bothHitBonus
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return pricing.Round2(score)
}

// MergeCandidates unions candidate lists by normalized URL, keeping the
// maximum confidence seen and OR-ing the user-selection flag. The merge is
// commutative.
func MergeCandidates(lists ...[]models.PricingURLCandidate) []models.PricingURLCandidate {
	merged := make(map[string]models.PricingURLCandidate)
	for _, list := range lists {
		for _, c := range list {
			u := normalize.URL(c.URL)
			if u == "" {
				continue
			}
			existing, ok := merged[u]
			if !ok {
				existing = models.PricingURLCandidate{URL: u}
			}
			if c.Confidence > existing.Confidence {
				existing.Confidence = c.Confidence
			}
			existing.SelectedByUser = existing.SelectedByUser || c.SelectedByUser
			merged[u] = existing
		}
	}

	out := make([]models.PricingURLCandidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].URL < out[j].URL
	})
	return out
}
