package rewards_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/rewards"
	"github.com/warp/points-engine/store/sqlstore"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	store *sqlstore.Store
	svc   *rewards.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &bank.FixedClock{T: time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)}
	cal, err := bank.NewCalendar(clock, "UTC")
	require.NoError(t, err)

	ctx := context.Background()
	members := []bank.Member{
		{ID: "mom", FamilyID: "fam-1", Name: "Mom", Role: bank.RoleAdmin, CreatedAt: clock.T},
		{ID: "kid", FamilyID: "fam-1", Name: "Kid", Role: bank.RoleChild, CreatedAt: clock.T},
		{ID: "stranger", FamilyID: "fam-2", Name: "Stranger", Role: bank.RoleAdmin, CreatedAt: clock.T},
	}
	for _, m := range members {
		require.NoError(t, store.SaveMember(ctx, m))
	}

	return &fixture{
		store: store,
		svc:   rewards.NewService(store, cal, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
}

func (f *fixture) fund(t *testing.T, points int64) {
	t.Helper()
	_, err := bank.NewLedger(f.store, nil).Append(context.Background(), bank.Transaction{
		MemberID: "kid", FamilyID: "fam-1", Title: "Chores", Points: points, Kind: bank.KindEarn,
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	b, err := bank.NewBalanceView(f.store).CurrentBalance(context.Background(), "kid")
	require.NoError(t, err)
	return b
}

var iceCream = rewards.NewReward{Title: "Ice cream", Category: rewards.CategoryTreat, Cost: 30}

// =============================================================================
// CATALOG
// =============================================================================

func TestCreate_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, "mom", iceCream)
	require.NoError(t, err)
	assert.Equal(t, bank.RewardActive, r.Status)
	assert.Equal(t, bank.FamilyID("fam-1"), r.FamilyID)

	_, err = f.svc.Create(ctx, "kid", iceCream)
	assert.ErrorIs(t, err, bank.ErrForbidden)
}

func TestCreate_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "mom", rewards.NewReward{Title: "", Cost: 5})
	assert.ErrorIs(t, err, bank.ErrInvalidArgument)

	_, err = f.svc.Create(ctx, "mom", rewards.NewReward{Title: "Free", Cost: 0})
	assert.ErrorIs(t, err, bank.ErrInvalidArgument)
}

// =============================================================================
// WISHLIST WORKFLOW
// =============================================================================

func TestWishlist_ProposeApproveRedeem(t *testing.T) {
	// GIVEN: a child proposes a reward
	// WHEN: a parent approves it
	// THEN: it becomes redeemable

	f := newFixture(t)
	ctx := context.Background()

	proposed, err := f.svc.Propose(ctx, "kid", iceCream)
	require.NoError(t, err)
	assert.Equal(t, bank.RewardPending, proposed.Status)

	pending, err := f.svc.ListPending(ctx, "fam-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	redeemable, err := f.svc.ListRedeemable(ctx, "fam-1")
	require.NoError(t, err)
	assert.Empty(t, redeemable)

	approved, err := f.svc.Approve(ctx, "mom", proposed.ID)
	require.NoError(t, err)
	assert.Equal(t, bank.RewardActive, approved.Status)
	assert.Equal(t, bank.MemberID("mom"), approved.DecidedBy)
	assert.NotNil(t, approved.DecidedAt)

	redeemable, err = f.svc.ListRedeemable(ctx, "fam-1")
	require.NoError(t, err)
	assert.Len(t, redeemable, 1)
}

func TestWishlist_RejectedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	proposed, err := f.svc.Propose(ctx, "kid", iceCream)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, "mom", proposed.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, "mom", proposed.ID)
	assert.ErrorIs(t, err, bank.ErrInvalidTransition)
	assert.ErrorIs(t, err, bank.ErrInvalidArgument)

	_, err = f.svc.Redeem(ctx, "kid", proposed.ID)
	assert.ErrorIs(t, err, bank.ErrInvalidArgument)
}

func TestWishlist_DecisionsRequireSameFamilyAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	proposed, err := f.svc.Propose(ctx, "kid", iceCream)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, "kid", proposed.ID)
	assert.ErrorIs(t, err, bank.ErrForbidden)

	_, err = f.svc.Approve(ctx, "stranger", proposed.ID)
	assert.ErrorIs(t, err, bank.ErrNotFound)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, rewards.CanTransition(bank.RewardPending, bank.RewardActive))
	assert.True(t, rewards.CanTransition(bank.RewardPending, bank.RewardRejected))
	assert.False(t, rewards.CanTransition(bank.RewardRejected, bank.RewardActive))
	assert.False(t, rewards.CanTransition(bank.RewardActive, bank.RewardPending))
}

// =============================================================================
// REDEMPTION
// =============================================================================

func TestRedeem_DebitsCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 50)
	r, err := f.svc.Create(ctx, "mom", iceCream)
	require.NoError(t, err)

	tx, err := f.svc.Redeem(ctx, "kid", r.ID)
	require.NoError(t, err)

	assert.Equal(t, bank.KindRedeem, tx.Kind)
	assert.Equal(t, int64(-30), tx.Points)
	assert.Equal(t, string(r.ID), tx.ReferenceID)
	assert.Equal(t, int64(20), f.balance(t))
}

func TestRedeem_BeyondBalanceFailsAndLeavesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 29)
	r, err := f.svc.Create(ctx, "mom", iceCream)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, "kid", r.ID)

	assert.ErrorIs(t, err, bank.ErrInsufficientFunds)
	assert.Equal(t, int64(29), f.balance(t))
}

func TestRedeem_OtherFamilyRewardNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)
	theirs, err := f.svc.Create(ctx, "stranger", iceCream)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, "kid", theirs.ID)

	assert.ErrorIs(t, err, bank.ErrRewardNotFound)
	assert.Equal(t, int64(100), f.balance(t))
}
