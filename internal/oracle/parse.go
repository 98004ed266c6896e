package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"schoolmail/internal/model"
	"schoolmail/pkg/util"
)

// SchemaError marks an oracle reply that violates the output contract. It is
// terminal for that email until the prompt or the content is fixed; the
// controller holds the watermark back and escalates after repeated attempts.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "oracle schema violation: " + e.Reason
}

const privacyPromptTemplate = `You review school emails before they are shared with a parent community.
Answer whether this email is suitable for broad distribution. It must not
reference an individually identifiable student and must be intended for a
class-wide or school-wide audience.

Subject: %s

Body:
%s

Reply with JSON only: {"privacy_check_passed": true|false, "reason": "..."}`

const extractPromptTemplate = `Extract every discrete actionable item (task or event) from this school email.
Copy content verbatim, do not paraphrase. Include start/end dates in
YYYY-MM-DD format when the text states them, any external links that belong
to the item, and the filenames of any listed attachments the item refers to.

Subject: %s

Attachments: %s

Body:
%s

Reply with JSON only: {"items": [{"content": "...", "date_start": "YYYY-MM-DD"|null, "date_end": "YYYY-MM-DD"|null, "external_urls": ["..."], "attachment_filenames": ["..."]}]}`

type privacyReply struct {
	PrivacyCheckPassed *bool  `json:"privacy_check_passed"`
	Reason             string `json:"reason"`
}

type extractReply struct {
	Items []candidateReply `json:"items"`
}

type candidateReply struct {
	Content             string   `json:"content"`
	DateStart           *string  `json:"date_start"`
	DateEnd             *string  `json:"date_end"`
	ExternalURLs        []string `json:"external_urls"`
	AttachmentFilenames []string `json:"attachment_filenames"`
}

// ClassifyPrivacy asks the oracle whether the message may be broadly
// distributed. Transport errors are transient; a malformed verdict is a
// *SchemaError.
func (c *Client) ClassifyPrivacy(ctx context.Context, subject, body string) (*model.PrivacyResult, error) {
	text, err := c.complete(ctx, "classify", fmt.Sprintf(privacyPromptTemplate, subject, body))
	if err != nil {
		return nil, err
	}

	var reply privacyReply
	if err := unmarshalReply(text, &reply); err != nil {
		return nil, err
	}
	if reply.PrivacyCheckPassed == nil {
		return nil, &SchemaError{Reason: "missing privacy_check_passed field"}
	}

	return &model.PrivacyResult{
		Passed: *reply.PrivacyCheckPassed,
		Reason: reply.Reason,
	}, nil
}

// ExtractItems asks the oracle for the candidate item list and enforces the
// output contract on it. Attachment filenames go into the prompt so items can
// name the files they refer to.
func (c *Client) ExtractItems(ctx context.Context, subject, body string, attachmentNames []string) ([]model.CandidateItem, error) {
	names := "None"
	if len(attachmentNames) > 0 {
		names = strings.Join(attachmentNames, ", ")
	}

	text, err := c.complete(ctx, "extract", fmt.Sprintf(extractPromptTemplate, subject, names, body))
	if err != nil {
		return nil, err
	}

	var reply extractReply
	if err := unmarshalReply(text, &reply); err != nil {
		return nil, err
	}

	candidates := make([]model.CandidateItem, 0, len(reply.Items))
	for i, raw := range reply.Items {
		candidate, err := buildCandidate(raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		candidates = append(candidates, *candidate)
	}
	return candidates, nil
}

func buildCandidate(raw candidateReply) (*model.CandidateItem, error) {
	if strings.TrimSpace(raw.Content) == "" {
		return nil, &SchemaError{Reason: "candidate has empty content"}
	}

	dateStart, err := parseDate(raw.DateStart)
	if err != nil {
		return nil, err
	}
	dateEnd, err := parseDate(raw.DateEnd)
	if err != nil {
		return nil, err
	}
	if dateStart != nil && dateEnd != nil && dateEnd.Before(*dateStart) {
		return nil, &SchemaError{Reason: "date_end before date_start"}
	}

	// The oracle's URLs and our own scan of the content merge into one
	// fingerprint set, both through the same normalization.
	urls := util.ExtractURLs(raw.Content)
	for _, rawURL := range raw.ExternalURLs {
		u, ok := util.CanonicalURL(rawURL)
		if ok && !containsString(urls, u) {
			urls = append(urls, u)
		}
	}

	var filenames []string
	for _, name := range raw.AttachmentFilenames {
		name = strings.TrimSpace(name)
		if name != "" {
			filenames = append(filenames, name)
		}
	}

	return &model.CandidateItem{
		Content:             raw.Content,
		DateStart:           dateStart,
		DateEnd:             dateEnd,
		ExternalURLs:        urls,
		AttachmentFilenames: filenames,
	}, nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	ts, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("bad date %q", *s)}
	}
	ts = ts.UTC()
	return &ts, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var jsonFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// unmarshalReply tolerates a markdown fence around the JSON but nothing else.
func unmarshalReply(text string, out any) error {
	raw := strings.TrimSpace(text)
	if match := jsonFencePattern.FindStringSubmatch(raw); match != nil {
		raw = match[1]
	} else if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &SchemaError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	return nil
}
