package model

import (
	"time"

	"github.com/google/uuid"
)

// Email is one fetched source message. Once the privacy check fails the row
// becomes a tombstone: gmail_id plus the fail flag, body cleared for good.
type Email struct {
	ID                 uuid.UUID
	GmailID            string
	FromAddress        string
	Subject            string
	ReceivedAt         time.Time
	Body               *string
	PrivacyCheckPassed *bool // nil = unknown, true = pass, false = fail
	CreatedAt          time.Time
}
