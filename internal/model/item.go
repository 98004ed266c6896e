package model

import (
	"time"

	"github.com/google/uuid"
)

// CandidateItem is one actionable unit as returned by the extraction oracle,
// before reconciliation against the stored item set.
type CandidateItem struct {
	Content             string     `json:"content"`
	DateStart           *time.Time `json:"date_start,omitempty"`
	DateEnd             *time.Time `json:"date_end,omitempty"`
	ExternalURLs        []string   `json:"external_urls,omitempty"`
	AttachmentFilenames []string   `json:"attachment_filenames,omitempty"`
}

// Item is a persisted actionable unit. Items are never deleted: a superseded
// item keeps its row with is_current=false and superseded_by pointing at its
// replacement, so the supersession chain stays as an audit trail.
type Item struct {
	ID           uuid.UUID
	EmailID      uuid.UUID
	Content      string
	DateStart    *time.Time
	DateEnd      *time.Time
	ExternalURLs []string
	IsCurrent    bool
	SupersededBy *uuid.UUID
	CreatedAt    time.Time

	// AttachmentFilenames rides along from the candidate so attachment rows
	// can be linked right after insert. Not a column.
	AttachmentFilenames []string
}

// Expired reports whether the item's last relevant day is strictly before the
// given day. Undated items never expire.
func (i *Item) Expired(today time.Time) bool {
	end := i.DateEnd
	if end == nil {
		end = i.DateStart
	}
	if end == nil {
		return false
	}
	y, m, d := today.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	return end.Before(dayStart)
}
