// Package dedup reconciles freshly extracted candidate items against the
// stored item set, so a re-sent or updated announcement supersedes its
// earlier version instead of piling up as a new obligation.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolmail/internal/model"
	"schoolmail/internal/ports"
	"schoolmail/pkg/metrics"
	"schoolmail/pkg/textsim"
	"schoolmail/pkg/util"
)

const (
	// DefaultSimilarityThreshold matches the content-similarity fallback
	// cutoff. Deliberately high: merging two distinct items hides an
	// obligation from every user, a missed merge only shows a duplicate.
	DefaultSimilarityThreshold = 0.85

	// maxSupersedeRetries bounds the chase when a concurrent reconcile won
	// the supersession claim first.
	maxSupersedeRetries = 5
)

type Engine struct {
	threshold float64
	logger    *zap.Logger
}

func NewEngine(threshold float64, logger *zap.Logger) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Engine{threshold: threshold, logger: logger}
}

// SupersededPair records one supersession performed during a reconcile call.
type SupersededPair struct {
	OldID uuid.UUID
	NewID uuid.UUID
}

// Result is the outcome of reconciling one email's candidates.
type Result struct {
	Inserted   []model.Item
	Superseded []SupersededPair
	Discarded  int
}

// Reconcile resolves each candidate against the currently-current items:
// insert as new, supersede a matched item, or discard a no-op repeat.
// It runs inside the caller's transaction via the store it is handed.
func (e *Engine) Reconcile(ctx context.Context, store ports.ItemStore, emailID uuid.UUID, candidates []model.CandidateItem) (*Result, error) {
	current, err := store.ListCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list current items: %w", err)
	}

	result := &Result{}

	for _, candidate := range candidates {
		match := e.findMatch(&candidate, current)

		if match != nil && e.isNoOp(&candidate, match) {
			// Same information re-sent; the existing item stands untouched.
			result.Discarded++
			metrics.IncrementReconcileOutcome("discarded")
			e.logger.Debug("Discarded no-op candidate",
				zap.String("matched_item_id", match.ID.String()),
			)
			continue
		}

		item := &model.Item{
			ID:                  uuid.New(),
			EmailID:             emailID,
			Content:             candidate.Content,
			DateStart:           candidate.DateStart,
			DateEnd:             candidate.DateEnd,
			ExternalURLs:        candidate.ExternalURLs,
			IsCurrent:           true,
			CreatedAt:           time.Now().UTC(),
			AttachmentFilenames: candidate.AttachmentFilenames,
		}
		if err := store.Insert(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to insert item: %w", err)
		}
		result.Inserted = append(result.Inserted, *item)
		metrics.IncrementReconcileOutcome("inserted")

		if match == nil {
			current = append(current, *item)
			continue
		}

		// Refinement of an existing item: the new one replaces it. Triage
		// statuses are not carried over, the change may be material enough
		// that every user should look again.
		supersededID, err := e.supersede(ctx, store, match.ID, item.ID)
		if err != nil {
			return nil, err
		}
		if supersededID != nil {
			result.Superseded = append(result.Superseded, SupersededPair{OldID: *supersededID, NewID: item.ID})
			metrics.IncrementReconcileOutcome("superseded")
			current = removeItem(current, *supersededID)
		}
		current = append(current, *item)
	}

	return result, nil
}

// findMatch looks for an existing current item that is the same logical item
// as the candidate. URL-set intersection is the primary, deterministic rule;
// content similarity on equal dates is the conservative fallback for
// candidates without URLs.
func (e *Engine) findMatch(candidate *model.CandidateItem, current []model.Item) *model.Item {
	for i := range current {
		if util.URLSetsIntersect(candidate.ExternalURLs, current[i].ExternalURLs) {
			return &current[i]
		}
	}

	if len(candidate.ExternalURLs) > 0 {
		return nil
	}

	var best *model.Item
	bestScore := 0.0
	for i := range current {
		if !datesEqual(candidate.DateStart, current[i].DateStart) {
			continue
		}
		score := textsim.Ratio(candidate.Content, current[i].Content)
		if score >= e.threshold && score > bestScore {
			best = &current[i]
			bestScore = score
		}
	}
	return best
}

// isNoOp reports whether the candidate carries no new information over the
// matched item.
func (e *Engine) isNoOp(candidate *model.CandidateItem, match *model.Item) bool {
	return textsim.Normalize(candidate.Content) == textsim.Normalize(match.Content) &&
		datesEqual(candidate.DateStart, match.DateStart) &&
		datesEqual(candidate.DateEnd, match.DateEnd) &&
		util.URLSetsEqual(candidate.ExternalURLs, match.ExternalURLs)
}

// supersede claims the supersession of oldID by newID. If a concurrent
// reconcile already superseded oldID, chase superseded_by to the current
// leaf and claim that instead. Returns the id actually superseded, or nil
// when the lineage vanished and the insert stands alone.
func (e *Engine) supersede(ctx context.Context, store ports.ItemStore, oldID, newID uuid.UUID) (*uuid.UUID, error) {
	targetID := oldID

	for attempt := 0; attempt < maxSupersedeRetries; attempt++ {
		ok, err := store.SupersedeIfCurrent(ctx, targetID, newID)
		if err != nil {
			return nil, fmt.Errorf("failed to supersede item: %w", err)
		}
		if ok {
			return &targetID, nil
		}

		// Lost the claim: somebody else superseded targetID first. Follow
		// the chain to the new leaf and try again.
		target, err := store.Find(ctx, targetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load superseded item: %w", err)
		}
		if target.SupersededBy == nil {
			// Not current yet no successor: should not happen, treat the
			// insert as a fresh item.
			e.logger.Warn("Supersession target is non-current without successor",
				zap.String("item_id", targetID.String()),
			)
			return nil, nil
		}
		targetID = *target.SupersededBy
	}

	e.logger.Warn("Gave up supersession chase, keeping insert as fresh item",
		zap.String("start_item_id", oldID.String()),
	)
	return nil, nil
}

func datesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func removeItem(items []model.Item, id uuid.UUID) []model.Item {
	out := items[:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}
