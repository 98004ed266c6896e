// Package triage manages per-user item state: the inbox, completed items,
// and snoozed reminders. Triage state lives beside the items, never on them,
// so the pipeline can rewrite item lineage without touching user decisions.
package triage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolmail/internal/model"
	"schoolmail/internal/ports"
)

type Service struct {
	store  ports.TriageStore
	now    func() time.Time
	logger *zap.Logger
}

func NewService(store ports.TriageStore, logger *zap.Logger) *Service {
	return &Service{store: store, now: time.Now, logger: logger}
}

// SetStatus records a user's decision on an item. Last write wins; remindAt
// only survives on the remind status and is cleared on any other transition.
func (s *Service) SetStatus(ctx context.Context, userID int, itemID uuid.UUID, status model.Status, remindAt *time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status: %q", status)
	}
	if status != model.StatusRemind {
		remindAt = nil
	}

	err := s.store.UpsertStatus(ctx, &model.UserItemStatus{
		UserID:    userID,
		ItemID:    itemID,
		Status:    status,
		RemindAt:  remindAt,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert triage status: %w", err)
	}

	s.logger.Info("Triage status updated",
		zap.Int("user_id", userID),
		zap.String("item_id", itemID.String()),
		zap.String("status", string(status)),
	)
	return nil
}

// Inbox lists the user's actionable items: current, not expired, and not yet
// triaged away. Items without any recorded status default to inbox.
func (s *Service) Inbox(ctx context.Context, userID int) ([]model.ItemView, error) {
	views, err := s.store.ListCurrentForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	today := s.now()
	out := make([]model.ItemView, 0, len(views))
	for _, v := range views {
		if v.Status != model.StatusInbox {
			continue
		}
		if v.Item.Expired(today) {
			continue
		}
		out = append(out, v)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EmailReceivedAt.After(out[j].EmailReceivedAt)
	})
	return out, nil
}

// Reminders lists the user's snoozed items, soonest event first. Items with
// no event date sort after dated ones. Expired reminders stay visible so a
// missed deadline is still surfaced rather than silently dropped.
func (s *Service) Reminders(ctx context.Context, userID int) ([]model.ItemView, error) {
	views, err := s.store.ListCurrentForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	out := make([]model.ItemView, 0, len(views))
	for _, v := range views {
		if v.Status == model.StatusRemind {
			out = append(out, v)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Item.DateStart, out[j].Item.DateStart
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		default:
			return out[i].EmailReceivedAt.After(out[j].EmailReceivedAt)
		}
	})
	return out, nil
}
