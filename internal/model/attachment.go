package model

import (
	"time"

	"github.com/google/uuid"
)

// Attachment is a persisted attachment record. Rows are written in the same
// transaction as their email; ItemID is filled in when the extraction names
// the file as belonging to an item.
type Attachment struct {
	ID          uuid.UUID
	EmailID     uuid.UUID
	ItemID      *uuid.UUID
	Filename    string
	MimeType    string
	SizeBytes   int64
	ProviderRef string
	CreatedAt   time.Time
}
