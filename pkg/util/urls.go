package util

import (
	"regexp"
	"sort"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')(\][]+`)

// Link hosts that say nothing about what an item is about. Attachment storage
// links, tracking redirects and unsubscribe footers show up in nearly every
// school email, so they would collapse unrelated items into one fingerprint.
var excludedURLPatterns = []string{
	"supabase.co",
	"google.com/url",
	"unsubscribe",
	"mailto:",
}

// ExtractURLs pulls the external URLs out of item content for use as a dedup
// fingerprint. Trailing punctuation is trimmed, excluded hosts are dropped and
// the result is a sorted set.
func ExtractURLs(content string) []string {
	if content == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, raw := range urlPattern.FindAllString(content, -1) {
		u, ok := CanonicalURL(raw)
		if !ok {
			continue
		}
		seen[u] = struct{}{}
	}

	if len(seen) == 0 {
		return nil
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// CanonicalURL normalizes one URL for the fingerprint: surrounding space and
// trailing punctuation trimmed, excluded hosts rejected. Every URL entering a
// fingerprint goes through here, whatever its origin.
func CanonicalURL(raw string) (string, bool) {
	u := strings.TrimRight(strings.TrimSpace(raw), ".,;:!?*")
	if u == "" || isExcludedURL(u) {
		return "", false
	}
	return u, true
}

func isExcludedURL(u string) bool {
	lower := strings.ToLower(u)
	for _, pattern := range excludedURLPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// URLSetsIntersect reports whether two URL fingerprints share at least one URL.
func URLSetsIntersect(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, u := range a {
		set[u] = struct{}{}
	}
	for _, u := range b {
		if _, ok := set[u]; ok {
			return true
		}
	}
	return false
}

// URLSetsEqual reports whether two URL fingerprints contain the same URLs,
// ignoring order.
func URLSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, u := range a {
		set[u] = struct{}{}
	}
	for _, u := range b {
		if _, ok := set[u]; !ok {
			return false
		}
	}
	return true
}
