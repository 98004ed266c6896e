package mailsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"schoolmail/internal/model"
)

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	s := NewGmailSource("", "tok", []string{"a@school.example", "b@school.example"}, zap.NewNop())

	since := time.Unix(1700000000, 0)
	assert.Equal(t, "from:a@school.example OR from:b@school.example after:1700000000", s.buildQuery(since))
	assert.Equal(t, "from:a@school.example OR from:b@school.example", s.buildQuery(time.Time{}))
}

func TestFetchSincePaginates(t *testing.T) {
	t.Parallel()

	var listCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		listCalls++
		if r.URL.Query().Get("pageToken") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"messages":      []map[string]string{{"id": "m1"}},
				"nextPageToken": "page2",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "m2"}},
		})
	})
	mux.HandleFunc("/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/users/me/messages/"):]
		json.NewEncoder(w).Encode(messageResponse{
			ID: id,
			Payload: payload{
				MimeType: "multipart/mixed",
				Headers: []header{
					{Name: "Subject", Value: "Newsletter " + id},
					{Name: "From", Value: "office@school.example"},
					{Name: "Date", Value: "Mon, 14 Oct 2025 18:00:00 +0000"},
				},
				Parts: []payload{
					{
						MimeType: "text/plain",
						Body:     bodyData{Data: b64(fmt.Sprintf("body of %s", id))},
					},
					{
						MimeType: "application/pdf",
						Filename: "calendar.pdf",
						Body:     bodyData{Size: 2048, AttachmentID: "att-" + id},
					},
				},
			},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	s := NewGmailSource(server.URL, "tok", []string{"office@school.example"}, zap.NewNop())

	msgs, err := s.FetchSince(context.Background(), time.Unix(1700000000, 0))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, 2, listCalls)
	assert.Equal(t, "m1", msgs[0].GmailID)
	assert.Equal(t, "Newsletter m2", msgs[1].Subject)
	assert.Equal(t, "body of m1", msgs[0].Body)
	assert.Equal(t, time.Date(2025, 10, 14, 18, 0, 0, 0, time.UTC), msgs[0].ReceivedAt)

	// inline text part is not an attachment, the named pdf is
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, model.SourceAttachment{
		Filename:    "calendar.pdf",
		MimeType:    "application/pdf",
		SizeBytes:   2048,
		ProviderRef: "att-m1",
	}, msgs[0].Attachments[0])
}
