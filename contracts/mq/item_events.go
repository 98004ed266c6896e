package mq

import (
	"time"

	"github.com/google/uuid"
)

// ItemCreatedPayload 新条目事件的 payload
type ItemCreatedPayload struct {
	ItemID    uuid.UUID  `json:"item_id"`
	EmailID   uuid.UUID  `json:"email_id"`
	Content   string     `json:"content"`
	DateStart *time.Time `json:"date_start,omitempty"`
	DateEnd   *time.Time `json:"date_end,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ItemSupersededPayload 条目被替代事件的 payload
type ItemSupersededPayload struct {
	OldItemID uuid.UUID `json:"old_item_id"`
	NewItemID uuid.UUID `json:"new_item_id"`
	EmailID   uuid.UUID `json:"email_id"`
}
