package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var whitespace = regexp.MustCompile(`\s+`)

// skippedElements hold no user-visible text; their entire subtree is dropped.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
}

// StripHTMLToText removes script/style/noscript subtrees, comments and all
// tags, decodes entities, and collapses runs of whitespace to single spaces.
func StripHTMLToText(rawHTML string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))

	var b strings.Builder
	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return CollapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skippedElements[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skippedElements[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.WriteString(string(tokenizer.Text()))
				b.WriteByte(' ')
			}
		}
	}
}

// CollapseWhitespace trims and squeezes all whitespace runs to single spaces.
func CollapseWhitespace(s string) string {
	// &nbsp; survives entity decoding as U+00A0, which `\s` does not match.
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// HTMLForHash is the change-detection form of a page: lowercased stripped
// text. Markup reshuffling that leaves the visible text intact does not
// change this value.
func HTMLForHash(rawHTML string) string {
	return strings.ToLower(StripHTMLToText(rawHTML))
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
