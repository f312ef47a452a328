package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

var multiSlash = regexp.MustCompile(`/{2,}`)

// URL canonicalizes a raw URL or bare hostname. It lowercases the host,
// strips a leading "www.", discards query and fragment, collapses duplicate
// slashes in the path, and maps an empty path to "/". Returns "" when the
// input is not a usable http(s) URL.
func URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	// Bare hostnames ("acme.com", "acme.com/pricing") get an https scheme.
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") {
		return ""
	}

	path := multiSlash.ReplaceAllString(u.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}

	out := u.Scheme + "://" + host
	if port := u.Port(); port != "" {
		out += ":" + port
	}
	return out + path
}

// Host returns the normalized host of a URL or bare hostname, without a
// leading "www.". Returns "" for unusable input.
func Host(raw string) string {
	canonical := URL(raw)
	if canonical == "" {
		return ""
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// MatchesDomain reports whether the URL's normalized host is the domain
// itself or one of its subdomains.
func MatchesDomain(rawURL, domain string) bool {
	host := Host(rawURL)
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "www."))
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
