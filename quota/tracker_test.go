package quota_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/bank/store"
	"github.com/warp/points-engine/quota"
)

func newTestTracker(t *testing.T, cap int) (*quota.Tracker, *bank.FixedClock) {
	t.Helper()
	clock := &bank.FixedClock{T: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	cal, err := bank.NewCalendar(clock, "UTC")
	require.NoError(t, err)
	return quota.NewTracker(store.NewMemory(), cal, cap), clock
}

func TestTracker_MissingRowReadsAsFullQuota(t *testing.T) {
	tracker, _ := newTestTracker(t, quota.DefaultDailyCap)

	remaining, err := tracker.RemainingToday(context.Background(), "kid")

	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestTracker_ConsumeUntilExhausted(t *testing.T) {
	// GIVEN: cap 3
	// WHEN: consuming four times
	// THEN: the fourth fails with QuotaExhausted and remaining stays 0

	tracker, _ := newTestTracker(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.ConsumeOne(ctx, "kid"))
	}
	err := tracker.ConsumeOne(ctx, "kid")

	var qe *bank.QuotaExhaustedError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 3, qe.Cap)
	assert.Equal(t, bank.Day("2025-03-10"), qe.Day)

	remaining, err := tracker.RemainingToday(ctx, "kid")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestTracker_ResetsOnNextDay(t *testing.T) {
	tracker, clock := newTestTracker(t, 3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.ConsumeOne(ctx, "kid"))
	}

	clock.Advance(24 * time.Hour)

	remaining, err := tracker.RemainingToday(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
	assert.NoError(t, tracker.ConsumeOne(ctx, "kid"))
}

func TestTracker_MembersAreIndependent(t *testing.T) {
	tracker, _ := newTestTracker(t, 1)
	ctx := context.Background()

	require.NoError(t, tracker.ConsumeOne(ctx, "kid-a"))
	assert.NoError(t, tracker.ConsumeOne(ctx, "kid-b"))
	assert.ErrorIs(t, tracker.ConsumeOne(ctx, "kid-a"), bank.ErrQuotaExhausted)
}

func TestTracker_ZeroCapAlwaysExhausted(t *testing.T) {
	tracker, _ := newTestTracker(t, 0)

	assert.ErrorIs(t, tracker.ConsumeOne(context.Background(), "kid"), bank.ErrQuotaExhausted)
}

func TestTracker_ConcurrentConsumersNeverExceedCap(t *testing.T) {
	tracker, _ := newTestTracker(t, 3)
	ctx := context.Background()

	var ok atomic.Int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			if err := tracker.ConsumeOne(ctx, "kid"); err == nil {
				ok.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(3), ok.Load())
	used, err := tracker.UsedToday(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, 3, used)
}

func TestTracker_PruneKeepsRecentDays(t *testing.T) {
	tracker, clock := newTestTracker(t, 3)
	ctx := context.Background()

	require.NoError(t, tracker.ConsumeOne(ctx, "kid"))
	clock.Advance(10 * 24 * time.Hour)
	require.NoError(t, tracker.ConsumeOne(ctx, "kid"))

	n, err := tracker.Prune(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	used, err := tracker.UsedToday(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}
