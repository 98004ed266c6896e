package mailsource

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// extractBody walks the mime tree for a text/plain part, preferring nested
// multipart/alternative parts. When only HTML is available the markup is
// flattened to text.
func extractBody(p *payload) string {
	if text := findPart(p, "text/plain"); text != "" {
		return text
	}
	if html := findPart(p, "text/html"); html != "" {
		return flattenHTML(html)
	}
	// Simple non-multipart message
	if p.Body.Data != "" {
		decoded := decodeBase64URL(p.Body.Data)
		if strings.Contains(p.MimeType, "html") {
			return flattenHTML(decoded)
		}
		return decoded
	}
	return ""
}

func findPart(p *payload, mimeType string) string {
	if p.MimeType == mimeType && p.Body.Data != "" {
		return decodeBase64URL(p.Body.Data)
	}
	for i := range p.Parts {
		if found := findPart(&p.Parts[i], mimeType); found != "" {
			return found
		}
	}
	return ""
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail omits padding in places
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// flattenHTML strips markup down to readable text.
func flattenHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, head").Remove()

	text := doc.Text()
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// School newsletters are usually forwarded; the wrapper mail's own Date
// header is the forward time, not when the announcement went out. Look for
// the original Date line inside the body first.
var forwardedDatePatterns = []*regexp.Regexp{
	// "Date: Mon, Oct 14, 2025 at 6:00 PM"
	regexp.MustCompile(`Date:\s*([A-Za-z]{3},\s+[A-Za-z]{3}\s+\d{1,2},\s+\d{4}\s+at\s+\d{1,2}:\d{2}\s*[AP]M)`),
	// "Date: Mon, 14 Oct 2025 18:00:00"
	regexp.MustCompile(`Date:\s*([A-Za-z]{3},\s+\d{1,2}\s+[A-Za-z]{3}\s+\d{4}\s+\d{1,2}:\d{2}:\d{2})`),
	// "Date: October 14, 2025 at 6:00 PM"
	regexp.MustCompile(`Date:\s*([A-Za-z]+\s+\d{1,2},\s+\d{4}\s+at\s+\d{1,2}:\d{2}\s*[AP]M)`),
}

var forwardedDateLayouts = []string{
	"Mon, Jan 2, 2006 at 3:04 PM",
	"Mon, 2 Jan 2006 15:04:05",
	"January 2, 2006 at 3:04 PM",
}

func resolveReceivedAt(body, dateHeader string) time.Time {
	if ts := extractForwardedDate(body); !ts.IsZero() {
		return ts
	}
	if dateHeader != "" {
		if ts, err := mail.ParseDate(dateHeader); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func extractForwardedDate(body string) time.Time {
	if body == "" {
		return time.Time{}
	}

	for _, pattern := range forwardedDatePatterns {
		match := pattern.FindStringSubmatch(body)
		if match == nil {
			continue
		}
		dateStr := strings.TrimSpace(match[1])
		for _, layout := range forwardedDateLayouts {
			if ts, err := time.Parse(layout, dateStr); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}
