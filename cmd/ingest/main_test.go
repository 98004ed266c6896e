package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWatermarks struct {
	saved *time.Time
}

func (f *fakeWatermarks) Load(_ context.Context, _ string) (*time.Time, error) {
	return f.saved, nil
}

type fakeEmailHistory struct {
	latest *time.Time
}

func (f *fakeEmailHistory) LatestReceivedAt(_ context.Context) (*time.Time, error) {
	return f.latest, nil
}

func ts(hour int) time.Time {
	return time.Date(2026, 9, 1, hour, 0, 0, 0, time.UTC)
}

func TestResolveSinceFlagWins(t *testing.T) {
	t.Parallel()

	saved := ts(10)
	since, err := resolveSince(context.Background(), "2026-08-01T00:00:00Z",
		&fakeWatermarks{saved: &saved}, &fakeEmailHistory{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), since)
}

// The saved watermark must beat max(received_at). After a run where an email
// in the middle of the batch failed transiently while a later one committed,
// the newest stored email lies past the failure; starting there would drop
// the failed email forever instead of retrying it.
func TestResolveSincePrefersSavedWatermark(t *testing.T) {
	t.Parallel()

	saved := ts(10)  // run stopped here, before the failed email
	latest := ts(12) // a later email still committed
	since, err := resolveSince(context.Background(), "",
		&fakeWatermarks{saved: &saved}, &fakeEmailHistory{latest: &latest})
	require.NoError(t, err)
	assert.Equal(t, ts(10), since)
}

func TestResolveSinceFallsBackToNewestEmail(t *testing.T) {
	t.Parallel()

	latest := ts(12)
	since, err := resolveSince(context.Background(), "",
		&fakeWatermarks{}, &fakeEmailHistory{latest: &latest})
	require.NoError(t, err)
	assert.Equal(t, ts(12), since)
}

func TestResolveSinceBackfillsFreshDatabase(t *testing.T) {
	t.Parallel()

	since, err := resolveSince(context.Background(), "",
		&fakeWatermarks{}, &fakeEmailHistory{})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), since, time.Minute)
}

func TestResolveSinceRejectsBadFlag(t *testing.T) {
	t.Parallel()

	_, err := resolveSince(context.Background(), "yesterday",
		&fakeWatermarks{}, &fakeEmailHistory{})
	assert.Error(t, err)
}
