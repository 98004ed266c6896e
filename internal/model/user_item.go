package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is a user's disposition of an item. The absence of a row means
// StatusInbox for any current item.
type Status string

const (
	StatusInbox  Status = "inbox"
	StatusDone   Status = "done"
	StatusRemind Status = "remind"
)

// Valid reports whether s is one of the three triage states.
func (s Status) Valid() bool {
	switch s {
	case StatusInbox, StatusDone, StatusRemind:
		return true
	}
	return false
}

// UserItemStatus is the one row per (user, item) pair. Created lazily on the
// first triage action and upserted in place afterwards.
type UserItemStatus struct {
	UserID    int
	ItemID    uuid.UUID
	Status    Status
	RemindAt  *time.Time
	UpdatedAt time.Time
}

// ItemView is an item as presented in a user's triage views, joined with the
// source email recency and that user's status row (implicit inbox if none).
type ItemView struct {
	Item
	EmailReceivedAt time.Time
	Status          Status
	RemindAt        *time.Time
}
