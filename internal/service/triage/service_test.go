package triage

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

// fakeTriageStore mirrors the view the repository builds: every current item
// joined with the user's status row, implicit inbox when there is none.
type fakeTriageStore struct {
	views    map[uuid.UUID]*model.ItemView
	statuses map[uuid.UUID]*model.UserItemStatus
}

func newFakeTriageStore() *fakeTriageStore {
	return &fakeTriageStore{
		views:    make(map[uuid.UUID]*model.ItemView),
		statuses: make(map[uuid.UUID]*model.UserItemStatus),
	}
}

func (s *fakeTriageStore) UpsertStatus(_ context.Context, st *model.UserItemStatus) error {
	cp := *st
	s.statuses[st.ItemID] = &cp
	return nil
}

func (s *fakeTriageStore) ListCurrentForUser(_ context.Context, _ int) ([]model.ItemView, error) {
	var out []model.ItemView
	for id, v := range s.views {
		view := *v
		view.Status = model.StatusInbox
		if st, ok := s.statuses[id]; ok {
			view.Status = st.Status
			view.RemindAt = st.RemindAt
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *fakeTriageStore) seed(content string, receivedAt time.Time, dateStart, dateEnd *time.Time) uuid.UUID {
	id := uuid.New()
	s.views[id] = &model.ItemView{
		Item: model.Item{
			ID:        id,
			Content:   content,
			DateStart: dateStart,
			DateEnd:   dateEnd,
			IsCurrent: true,
		},
		EmailReceivedAt: receivedAt,
	}
	return id
}

func date(y int, m time.Month, d int) *time.Time {
	ts := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &ts
}

var testNow = time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeTriageStore) *Service {
	svc := NewService(store, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestSetStatusValidation(t *testing.T) {
	t.Parallel()

	store := newFakeTriageStore()
	svc := newTestService(store)

	err := svc.SetStatus(context.Background(), 1, uuid.New(), model.Status("archived"), nil)
	assert.Error(t, err)
	assert.Empty(t, store.statuses)
}

func TestSetStatusClearsRemindAtOutsideRemind(t *testing.T) {
	t.Parallel()

	store := newFakeTriageStore()
	svc := newTestService(store)
	itemID := uuid.New()
	remindAt := testNow.Add(48 * time.Hour)

	require.NoError(t, svc.SetStatus(context.Background(), 1, itemID, model.StatusRemind, &remindAt))
	require.NotNil(t, store.statuses[itemID].RemindAt)

	require.NoError(t, svc.SetStatus(context.Background(), 1, itemID, model.StatusDone, &remindAt))
	assert.Nil(t, store.statuses[itemID].RemindAt)
}

func TestSetStatusLastWriteWins(t *testing.T) {
	t.Parallel()

	store := newFakeTriageStore()
	svc := newTestService(store)
	itemID := uuid.New()

	require.NoError(t, svc.SetStatus(context.Background(), 1, itemID, model.StatusDone, nil))
	require.NoError(t, svc.SetStatus(context.Background(), 1, itemID, model.StatusInbox, nil))

	assert.Equal(t, model.StatusInbox, store.statuses[itemID].Status)
}

func TestInboxFiltersTriagedAndExpired(t *testing.T) {
	t.Parallel()

	store := newFakeTriageStore()
	svc := newTestService(store)

	keptID := store.seed("Book fair Friday", testNow.Add(-2*time.Hour), date(2026, 9, 18), nil)
	doneID := store.seed("Return forms", testNow.Add(-3*time.Hour), nil, nil)
	store.seed("Last week's bake sale", testNow.Add(-96*time.Hour), date(2026, 9, 12), nil)
	undatedID := store.seed("Bring a water bottle daily", testNow.Add(-1*time.Hour), nil, nil)

	require.NoError(t, svc.SetStatus(context.Background(), 1, doneID, model.StatusDone, nil))

	items, err := svc.Inbox(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, items, 2)
	// newest source email first
	assert.Equal(t, undatedID, items[0].ID)
	assert.Equal(t, keptID, items[1].ID)
}

func TestRemindersOrderSoonestFirstNullsLast(t *testing.T) {
	t.Parallel()

	store := newFakeTriageStore()
	svc := newTestService(store)

	laterID := store.seed("Science fair", testNow.Add(-1*time.Hour), date(2026, 10, 1), nil)
	soonID := store.seed("Picture day", testNow.Add(-5*time.Hour), date(2026, 9, 20), nil)
	undatedID := store.seed("Sign the handbook", testNow.Add(-2*time.Hour), nil, nil)
	pastID := store.seed("Missed deadline", testNow.Add(-50*time.Hour), date(2026, 9, 10), nil)

	for _, id := range []uuid.UUID{laterID, soonID, undatedID, pastID} {
		require.NoError(t, svc.SetStatus(context.Background(), 1, id, model.StatusRemind, nil))
	}

	items, err := svc.Reminders(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, items, 4)
	// expired reminders stay visible, sorted by event date with undated last
	assert.Equal(t, pastID, items[0].ID)
	assert.Equal(t, soonID, items[1].ID)
	assert.Equal(t, laterID, items[2].ID)
	assert.Equal(t, undatedID, items[3].ID)
}

// A superseding item arrives with a fresh id and no status row, so it shows
// up in the inbox again regardless of how its predecessor was triaged.
func TestSupersessionResetsTriage(t *testing.T) {
	t.Parallel()

	store := newFakeTriageStore()
	svc := newTestService(store)

	oldID := store.seed("Fun run September 13", testNow.Add(-24*time.Hour), date(2026, 9, 20), nil)
	require.NoError(t, svc.SetStatus(context.Background(), 1, oldID, model.StatusDone, nil))

	// pipeline supersedes: old item drops out of the current set, successor
	// appears with a new id
	delete(store.views, oldID)
	newID := store.seed("Fun run moved to September 27", testNow, date(2026, 9, 27), nil)

	items, err := svc.Inbox(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, newID, items[0].ID)
	assert.Equal(t, model.StatusInbox, items[0].Status)
}
