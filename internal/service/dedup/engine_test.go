package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"schoolmail/internal/model"
)

// fakeItemStore is an in-memory stand-in for the item repository.
type fakeItemStore struct {
	items map[uuid.UUID]*model.Item
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: make(map[uuid.UUID]*model.Item)}
}

func (s *fakeItemStore) Insert(_ context.Context, item *model.Item) error {
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *fakeItemStore) ListCurrent(_ context.Context) ([]model.Item, error) {
	var out []model.Item
	for _, item := range s.items {
		if item.IsCurrent {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *fakeItemStore) Find(_ context.Context, id uuid.UUID) (*model.Item, error) {
	item := s.items[id]
	cp := *item
	return &cp, nil
}

func (s *fakeItemStore) SupersedeIfCurrent(_ context.Context, oldID, newID uuid.UUID) (bool, error) {
	item, ok := s.items[oldID]
	if !ok || !item.IsCurrent {
		return false, nil
	}
	item.IsCurrent = false
	item.SupersededBy = &newID
	return true, nil
}

func (s *fakeItemStore) seed(item model.Item) uuid.UUID {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.IsCurrent = true
	s.items[item.ID] = &item
	return item.ID
}

func date(y int, m time.Month, d int) *time.Time {
	ts := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &ts
}

func newTestEngine() *Engine {
	return NewEngine(DefaultSimilarityThreshold, zap.NewNop())
}

func TestReconcileInsertsNewItem(t *testing.T) {
	t.Parallel()

	store := newFakeItemStore()
	engine := newTestEngine()

	result, err := engine.Reconcile(context.Background(), store, uuid.New(), []model.CandidateItem{
		{Content: "Book fair Friday", DateStart: date(2026, 9, 4)},
	})
	require.NoError(t, err)

	assert.Len(t, result.Inserted, 1)
	assert.Empty(t, result.Superseded)
	assert.Equal(t, 0, result.Discarded)

	current, _ := store.ListCurrent(context.Background())
	require.Len(t, current, 1)
	assert.Equal(t, "Book fair Friday", current[0].Content)
	assert.True(t, current[0].IsCurrent)
}

func TestReconcileURLMatchSupersedesAcrossDates(t *testing.T) {
	t.Parallel()

	store := newFakeItemStore()
	engine := newTestEngine()

	// Same signup link, the event got rescheduled a week out.
	oldID := store.seed(model.Item{
		Content:      "Picture day October 10, order at https://photos.example.com/order",
		DateStart:    date(2026, 10, 10),
		ExternalURLs: []string{"https://photos.example.com/order"},
	})

	result, err := engine.Reconcile(context.Background(), store, uuid.New(), []model.CandidateItem{
		{
			Content:      "Picture day moved to October 17, order at https://photos.example.com/order",
			DateStart:    date(2026, 10, 17),
			ExternalURLs: []string{"https://photos.example.com/order"},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Superseded, 1)
	assert.Equal(t, oldID, result.Superseded[0].OldID)

	old, _ := store.Find(context.Background(), oldID)
	assert.False(t, old.IsCurrent)
	require.NotNil(t, old.SupersededBy)
	assert.Equal(t, result.Inserted[0].ID, *old.SupersededBy)

	current, _ := store.ListCurrent(context.Background())
	require.Len(t, current, 1)
	assert.Equal(t, result.Inserted[0].ID, current[0].ID)
}

func TestReconcileDiscardsNoOpRepeat(t *testing.T) {
	t.Parallel()

	store := newFakeItemStore()
	engine := newTestEngine()

	store.seed(model.Item{
		Content:      "Return permission slips by Friday https://forms.example.com/slip",
		DateStart:    date(2026, 9, 4),
		ExternalURLs: []string{"https://forms.example.com/slip"},
	})

	// Weekly digest repeats the announcement verbatim (whitespace aside).
	result, err := engine.Reconcile(context.Background(), store, uuid.New(), []model.CandidateItem{
		{
			Content:      "Return permission slips  by Friday https://forms.example.com/slip",
			DateStart:    date(2026, 9, 4),
			ExternalURLs: []string{"https://forms.example.com/slip"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Discarded)
	assert.Empty(t, result.Inserted)
	assert.Empty(t, result.Superseded)

	current, _ := store.ListCurrent(context.Background())
	assert.Len(t, current, 1)
}

func TestReconcileSimilarityFallback(t *testing.T) {
	t.Parallel()

	store := newFakeItemStore()
	engine := newTestEngine()

	oldID := store.seed(model.Item{
		Content:   "Spirit week kicks off Monday morning, wear your house colors to school",
		DateStart: date(2026, 9, 7),
	})

	result, err := engine.Reconcile(context.Background(), store, uuid.New(), []model.CandidateItem{
		{
			Content:   "Spirit week kicks off Monday morning, wear your house colors to school in the gym",
			DateStart: date(2026, 9, 7),
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Superseded, 1)
	assert.Equal(t, oldID, result.Superseded[0].OldID)
}

func TestReconcileSimilarityRequiresEqualDates(t *testing.T) {
	t.Parallel()

	store := newFakeItemStore()
	engine := newTestEngine()

	store.seed(model.Item{
		Content:   "Early dismissal at noon for teacher training",
		DateStart: date(2026, 9, 7),
	})

	// Same wording, different date, no URLs: a recurring event, not an update.
	result, err := engine.Reconcile(context.Background(), store, uuid.New(), []model.CandidateItem{
		{
			Content:   "Early dismissal at noon for teacher training",
			DateStart: date(2026, 10, 5),
		},
	})
	require.NoError(t, err)

	assert.Len(t, result.Inserted, 1)
	assert.Empty(t, result.Superseded)

	current, _ := store.ListCurrent(context.Background())
	assert.Len(t, current, 2)
}

func TestReconcileNoSimilarityFallbackWhenCandidateHasURLs(t *testing.T) {
	t.Parallel()

	store := newFakeItemStore()
	engine := newTestEngine()

	store.seed(model.Item{
		Content:   "Bake sale Saturday at the gym entrance",
		DateStart: date(2026, 9, 12),
	})

	// Near-identical wording, but the candidate carries a URL the stored item
	// lacks, so the deterministic rule decides and no fallback applies.
	result, err := engine.Reconcile(context.Background(), store, uuid.New(), []model.CandidateItem{
		{
			Content:      "Bake sale Saturday at the gym entrance https://bake.example.com",
			DateStart:    date(2026, 9, 12),
			ExternalURLs: []string{"https://bake.example.com"},
		},
	})
	require.NoError(t, err)

	assert.Len(t, result.Inserted, 1)
	assert.Empty(t, result.Superseded)
}

func TestReconcileDissimilarContentInsertsBoth(t *testing.T) {
	t.Parallel()

	store := newFakeItemStore()
	engine := newTestEngine()

	store.seed(model.Item{
		Content:   "Band rehearsal moved to the auditorium",
		DateStart: date(2026, 9, 7),
	})

	result, err := engine.Reconcile(context.Background(), store, uuid.New(), []model.CandidateItem{
		{
			Content:   "Library volunteers needed for the reading hour",
			DateStart: date(2026, 9, 7),
		},
	})
	require.NoError(t, err)

	assert.Len(t, result.Inserted, 1)
	assert.Empty(t, result.Superseded)

	current, _ := store.ListCurrent(context.Background())
	assert.Len(t, current, 2)
}

func TestSupersedeChasesToLeafOnClaimLoss(t *testing.T) {
	t.Parallel()

	store := newFakeItemStore()
	engine := newTestEngine()

	// A concurrent run already superseded the matched item; the chain must be
	// followed to its current leaf.
	leafID := store.seed(model.Item{
		Content:      "Fun run rescheduled, sign up https://run.example.com",
		DateStart:    date(2026, 9, 20),
		ExternalURLs: []string{"https://run.example.com"},
	})
	staleID := uuid.New()
	store.items[staleID] = &model.Item{
		ID:           staleID,
		Content:      "Fun run, sign up https://run.example.com",
		DateStart:    date(2026, 9, 13),
		ExternalURLs: []string{"https://run.example.com"},
		IsCurrent:    false,
		SupersededBy: &leafID,
	}

	newID := uuid.New()
	superseded, err := engine.supersede(context.Background(), store, staleID, newID)
	require.NoError(t, err)
	require.NotNil(t, superseded)
	assert.Equal(t, leafID, *superseded)

	leaf, _ := store.Find(context.Background(), leafID)
	assert.False(t, leaf.IsCurrent)
	assert.Equal(t, newID, *leaf.SupersededBy)
}

func TestReconcileLineageStaysAcyclic(t *testing.T) {
	t.Parallel()

	store := newFakeItemStore()
	engine := newTestEngine()

	emailA := uuid.New()
	first, err := engine.Reconcile(context.Background(), store, emailA, []model.CandidateItem{
		{Content: "Science fair projects due https://fair.example.com", ExternalURLs: []string{"https://fair.example.com"}},
	})
	require.NoError(t, err)

	// Two follow-up corrections, each superseding the previous leaf.
	for i := 0; i < 2; i++ {
		_, err := engine.Reconcile(context.Background(), store, uuid.New(), []model.CandidateItem{
			{
				Content:      "Science fair projects due, updated details https://fair.example.com",
				DateStart:    date(2026, 11, 10+i),
				ExternalURLs: []string{"https://fair.example.com"},
			},
		})
		require.NoError(t, err)
	}

	// Exactly one current leaf, and walking superseded_by from the root
	// terminates there without revisiting a node.
	current, _ := store.ListCurrent(context.Background())
	require.Len(t, current, 1)

	visited := map[uuid.UUID]bool{}
	id := first.Inserted[0].ID
	for {
		require.False(t, visited[id], "cycle in supersession chain")
		visited[id] = true
		item, _ := store.Find(context.Background(), id)
		if item.SupersededBy == nil {
			assert.Equal(t, current[0].ID, item.ID)
			return
		}
		id = *item.SupersededBy
	}
}
