// Package mailsource fetches messages from the Gmail REST API. The pipeline
// only depends on (subject, body, received-at, stable id) per message; all
// Gmail specifics (query building, pagination, mime part walking, base64url
// bodies) stay inside this package.
package mailsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"schoolmail/internal/model"
)

const defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

type GmailSource struct {
	baseURL    string
	token      string
	senders    []string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewGmailSource(baseURL, token string, senders []string, logger *zap.Logger) *GmailSource {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &GmailSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		senders: senders,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

type messageResponse struct {
	ID      string  `json:"id"`
	Payload payload `json:"payload"`
}

type payload struct {
	MimeType string    `json:"mimeType"`
	Filename string    `json:"filename"`
	Headers  []header  `json:"headers"`
	Body     bodyData  `json:"body"`
	Parts    []payload `json:"parts"`
}

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type bodyData struct {
	Data         string `json:"data"`
	Size         int64  `json:"size"`
	AttachmentID string `json:"attachmentId"`
}

// FetchSince lists messages from the allow-listed senders received strictly
// after since and loads each one in full.
func (s *GmailSource) FetchSince(ctx context.Context, since time.Time) ([]model.SourceMessage, error) {
	query := s.buildQuery(since)
	s.logger.Info("Fetching messages", zap.String("query", query))

	ids, err := s.listMessageIDs(ctx, query)
	if err != nil {
		return nil, err
	}

	messages := make([]model.SourceMessage, 0, len(ids))
	for _, id := range ids {
		msg, err := s.getMessage(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", id, err)
		}
		messages = append(messages, *msg)
	}

	return messages, nil
}

// buildQuery assembles the sender allow-list plus the after: watermark
// filter. Gmail's after: takes a unix timestamp.
func (s *GmailSource) buildQuery(since time.Time) string {
	clauses := make([]string, 0, len(s.senders))
	for _, sender := range s.senders {
		clauses = append(clauses, "from:"+sender)
	}
	query := strings.Join(clauses, " OR ")
	if !since.IsZero() {
		query += fmt.Sprintf(" after:%d", since.Unix())
	}
	return query
}

func (s *GmailSource) listMessageIDs(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("q", query)
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var list listResponse
		if err := s.getJSON(ctx, "/users/me/messages?"+params.Encode(), &list); err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range list.Messages {
			ids = append(ids, m.ID)
		}

		pageToken = list.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return ids, nil
}

func (s *GmailSource) getMessage(ctx context.Context, id string) (*model.SourceMessage, error) {
	var resp messageResponse
	if err := s.getJSON(ctx, "/users/me/messages/"+id+"?format=full", &resp); err != nil {
		return nil, err
	}

	subject := headerValue(resp.Payload.Headers, "Subject")
	from := headerValue(resp.Payload.Headers, "From")
	body := extractBody(&resp.Payload)

	receivedAt := resolveReceivedAt(body, headerValue(resp.Payload.Headers, "Date"))
	if receivedAt.IsZero() {
		s.logger.Warn("Message has no parseable date, using now",
			zap.String("gmail_id", resp.ID),
		)
		receivedAt = time.Now().UTC()
	}

	return &model.SourceMessage{
		GmailID:     resp.ID,
		From:        from,
		Subject:     subject,
		ReceivedAt:  receivedAt,
		Body:        body,
		Attachments: collectAttachments(&resp.Payload),
	}, nil
}

// collectAttachments walks the mime tree for parts that carry a filename and
// a provider attachment id. The blob stays with the provider, only metadata
// is collected.
func collectAttachments(p *payload) []model.SourceAttachment {
	var atts []model.SourceAttachment
	for i := range p.Parts {
		part := &p.Parts[i]
		if part.Filename != "" && part.Body.AttachmentID != "" {
			atts = append(atts, model.SourceAttachment{
				Filename:    part.Filename,
				MimeType:    part.MimeType,
				SizeBytes:   part.Body.Size,
				ProviderRef: part.Body.AttachmentID,
			})
		}
		atts = append(atts, collectAttachments(part)...)
	}
	return atts
}

func (s *GmailSource) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail source returned %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func headerValue(headers []header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
