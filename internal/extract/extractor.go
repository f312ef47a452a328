package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/pricelens/crawl-engine/internal/normalize"
	"github.com/pricelens/crawl-engine/internal/pricing"
	"github.com/pricelens/crawl-engine/pkg/models"
)

// Result is the extractor's output for one pricing URL. On a non-ok status
// the payload is empty and confidence is zero.
type Result struct {
	Status        Status
	Error         string
	ContentHash   string
	Payload       models.PricingPayload
	Confidence    float64
	IsVerified    bool
	CaptureMethod models.CaptureMethod
}

// A snapshot is verified when extraction was confident and saw real prices.
const (
	verifiedMinConfidence = 0.75
	maxPlanNameLen        = 80
)

var (
	// Optional ISO code, optional symbol, amount with thousands separators
	// and up to 2 decimals, optional trailing period token. A match with
	// neither code nor symbol is discarded after the fact.
	priceRe = regexp.MustCompile(`(?i)(?:\b(USD|EUR|GBP|CAD|AUD|JPY)\s*)?([$€£¥])\s*(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)\s*(?:(?:/|per\s+)\s*(day|daily|wk|week|weekly|mo|month|monthly|yr|year|yearly|annual|annually)|\b(monthly|yearly|annually|once|one[-\s]?time|lifetime)\b)?`)

	isoPriceRe = regexp.MustCompile(`(?i)\b(USD|EUR|GBP|CAD|AUD|JPY)\s*(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)\s*(?:(?:/|per\s+)\s*(day|daily|wk|week|weekly|mo|month|monthly|yr|year|yearly|annual|annually)|\b(monthly|yearly|annually|once|one[-\s]?time|lifetime)\b)?`)

	planHeadingRe = regexp.MustCompile(`(?i)plan|pricing|starter|pro|business|enterprise`)
)

var symbolCurrency = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

var botBlockSignals = []string{
	"captcha",
	"cloudflare",
	"access denied",
	"attention required",
	"verify you are human",
	"bot detection",
	"temporarily blocked",
}

var pricingSignals = []string{
	"pricing",
	"plans",
	"per month",
	"monthly",
	"yearly",
	"annual",
	"billed",
	"free trial",
}

var customPricingSignals = []string{
	"contact sales",
	"custom pricing",
	"talk to sales",
	"enterprise pricing",
	"request a quote",
	"book a demo",
}

// Extractor turns a pricing URL into a canonical snapshot candidate.
type Extractor struct {
	fetcher *Fetcher
}

func NewExtractor(fetcher *Fetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// Extract fetches and parses a pricing page. The content hash is computed
// over the normalized page text, never the raw markup.
func (e *Extractor) Extract(ctx context.Context, rawURL string) Result {
	url := normalize.URL(rawURL)
	if url == "" {
		return failure(StatusManualNeeded, "Invalid pricing URL")
	}

	fetched := e.fetcher.Fetch(ctx, url)
	if fetched.Status != StatusOK {
		return failure(fetched.Status, fetched.Reason)
	}

	doc := parseDocument(fetched.HTML)
	text := normalize.StripHTMLToText(fetched.HTML)
	lowerText := strings.ToLower(text)

	for _, signal := range botBlockSignals {
		if strings.Contains(lowerText, signal) {
			return failure(StatusBlocked, "Bot protection detected: "+signal)
		}
	}

	mentions := scanPrices(text)
	hasPricingSignal := containsAny(lowerText, pricingSignals)
	customHints := matchingSignals(lowerText, customPricingSignals)

	confidence := 0.0
	switch {
	case len(mentions) >= 3:
		confidence = 0.90
	case len(mentions) >= 1 && hasPricingSignal:
		confidence = 0.78
	case len(mentions) >= 1:
		confidence = 0.72
	case len(customHints) > 0:
		confidence = 0.45
	case hasPricingSignal:
		confidence = 0.40
	default:
		return failure(StatusManualNeeded, "No pricing signals found on page")
	}

	payload := pricing.Canonicalize(models.PricingPayload{
		SourceURL:          url,
		PageTitle:          doc.title,
		PageDescription:    doc.description,
		PlanNames:          planNames(doc.headings),
		PriceMentions:      mentions,
		CustomPricingHints: customHints,
	})

	return Result{
		Status:        StatusOK,
		ContentHash:   normalize.ContentHash(strings.ToLower(text)),
		Payload:       payload,
		Confidence:    confidence,
		IsVerified:    confidence >= verifiedMinConfidence && len(payload.PriceMentions) > 0,
		CaptureMethod: models.CaptureStatic,
	}
}

func failure(status Status, reason string) Result {
	return Result{
		Status:        status,
		Error:         reason,
		CaptureMethod: models.CaptureStatic,
	}
}

func scanPrices(text string) []models.PriceMention {
	var mentions []models.PriceMention

	for _, m := range priceRe.FindAllStringSubmatch(text, -1) {
		mentions = appendMention(mentions, m[1], m[2], m[3], firstNonEmpty(m[4], m[5]))
	}
	// ISO-code-only prices ("USD 29 per month") carry no symbol.
	for _, m := range isoPriceRe.FindAllStringSubmatch(text, -1) {
		mentions = appendMention(mentions, m[1], "", m[2], firstNonEmpty(m[3], m[4]))
	}

	return mentions
}

func appendMention(mentions []models.PriceMention, isoCode, symbol, rawAmount, periodToken string) []models.PriceMention {
	currency := strings.ToUpper(isoCode)
	if currency == "" {
		currency = symbolCurrency[symbol]
	}
	if currency == "" {
		return mentions
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(rawAmount, ",", ""), 64)
	if err != nil || amount <= 0 {
		return mentions
	}

	return append(mentions, models.PriceMention{
		Amount:   amount,
		Currency: currency,
		Period:   mapPeriod(periodToken),
	})
}

func mapPeriod(token string) models.PricePeriod {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "day", "daily":
		return models.PeriodDay
	case "wk", "week", "weekly":
		return models.PeriodWeek
	case "mo", "month", "monthly":
		return models.PeriodMonth
	case "yr", "year", "yearly", "annual", "annually":
		return models.PeriodYear
	case "once", "one-time", "one time", "onetime", "lifetime":
		return models.PeriodOneTime
	default:
		return models.PeriodUnknown
	}
}

func planNames(headings []string) []string {
	var names []string
	for _, h := range headings {
		h = normalize.CollapseWhitespace(h)
		if h == "" || !planHeadingRe.MatchString(h) {
			continue
		}
		h = normalize.Truncate(h, maxPlanNameLen)
		names = append(names, h)
	}
	return names
}

func containsAny(text string, signals []string) bool {
	for _, s := range signals {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func matchingSignals(text string, signals []string) []string {
	var hits []string
	for _, s := range signals {
		if strings.Contains(text, s) {
			hits = append(hits, s)
		}
	}
	return hits
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// document holds the few structural bits the extractor needs from a page.
type document struct {
	title       string
	description string
	headings    []string // inner text of h1..h5, in document order
}

var headingTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "h5": true}

func parseDocument(rawHTML string) document {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))

	var doc document
	var inTitle bool
	var headingDepth int
	var heading strings.Builder

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return doc
		case html.StartTagToken:
			name, hasAttr := tokenizer.TagName()
			tag := string(name)
			switch {
			case tag == "title":
				inTitle = true
			case headingTags[tag]:
				headingDepth++
			case tag == "meta" && hasAttr:
				doc.description = firstNonEmpty(doc.description, metaDescription(tokenizer))
			}
		case html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) == "meta" && hasAttr {
				doc.description = firstNonEmpty(doc.description, metaDescription(tokenizer))
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			switch {
			case tag == "title":
				inTitle = false
			case headingTags[tag] && headingDepth > 0:
				headingDepth--
				if headingDepth == 0 {
					doc.headings = append(doc.headings, heading.String())
					heading.Reset()
				}
			}
		case html.TextToken:
			text := string(tokenizer.Text())
			if inTitle {
				doc.title += text
			}
			if headingDepth > 0 {
				heading.WriteString(text)
			}
		}
	}
}

func metaDescription(tokenizer *html.Tokenizer) string {
	var name, content string
	for {
		key, val, more := tokenizer.TagAttr()
		switch strings.ToLower(string(key)) {
		case "name":
			name = strings.ToLower(string(val))
		case "content":
			content = string(val)
		}
		if !more {
			break
		}
	}
	if name == "description" {
		return content
	}
	return ""
}
