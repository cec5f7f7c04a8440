package lottery_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/bank/store"
	"github.com/warp/points-engine/lottery"
	"github.com/warp/points-engine/quota"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// zeroSource always lands in the first weight band and the lowest value.
type zeroSource struct{}

func (zeroSource) IntN(int) int { return 0 }

// topSource always lands in the last band at its highest value.
type topSource struct{}

func (topSource) IntN(n int) int { return n - 1 }

type fixture struct {
	mem     *store.Memory
	ledger  *bank.Ledger
	tracker *quota.Tracker
	engine  *lottery.Engine
}

func newFixture(t *testing.T, src lottery.Source) *fixture {
	t.Helper()
	mem := store.NewMemory()
	clock := &bank.FixedClock{T: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	cal, err := bank.NewCalendar(clock, "UTC")
	require.NoError(t, err)
	tracker := quota.NewTracker(mem, cal, quota.DefaultDailyCap)

	ctx := context.Background()
	for _, id := range []bank.MemberID{"kid", "sibling"} {
		require.NoError(t, mem.SaveMember(ctx, bank.Member{ID: id, FamilyID: "fam-1", Name: string(id), Role: bank.RoleChild}))
	}

	return &fixture{
		mem:     mem,
		ledger:  bank.NewLedger(mem, clock),
		tracker: tracker,
		engine: lottery.NewEngine(mem, tracker, cal, lottery.Config{
			Source: src,
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		}),
	}
}

func (f *fixture) fund(t *testing.T, member bank.MemberID, points int64) {
	t.Helper()
	_, err := f.ledger.Append(context.Background(), bank.Transaction{
		MemberID: member, FamilyID: "fam-1", Title: "Chores", Points: points, Kind: bank.KindEarn,
	})
	require.NoError(t, err)
}

func (f *fixture) badge(t *testing.T, member bank.MemberID, id bank.BadgeID) {
	t.Helper()
	ok, err := f.mem.InsertBadge(context.Background(), bank.Badge{
		ID: id, MemberID: member, FamilyID: "fam-1", ConditionKey: string(id), Title: "Badge " + string(id),
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *fixture) balance(t *testing.T, member bank.MemberID) int64 {
	t.Helper()
	b, err := bank.NewBalanceView(f.mem).CurrentBalance(context.Background(), member)
	require.NoError(t, err)
	return b
}

// =============================================================================
// TABLE
// =============================================================================

func TestTable_DistributionMatchesWeights(t *testing.T) {
	table := lottery.DefaultTable()
	src := lottery.NewSeededSource(42)

	const n = 100_000
	tiers := make(map[int]int)
	tier1Values := make(map[int64]int)
	for i := 0; i < n; i++ {
		tier, points := table.Resolve(src)
		tiers[tier]++
		if tier == 1 {
			tier1Values[points]++
		}
	}

	want := map[int]float64{0: 0.30, 1: 0.40, 2: 0.20, 3: 0.10}
	for tier, p := range want {
		got := float64(tiers[tier]) / n
		assert.InDelta(t, p, got, 0.01, "tier %d", tier)
	}

	require.Len(t, tier1Values, 5)
	for v := int64(1); v <= 5; v++ {
		got := float64(tier1Values[v]) / float64(tiers[1])
		assert.InDelta(t, 0.2, got, 0.015, "tier 1 value %d", v)
	}
}

func TestTable_PointsStayInTierRange(t *testing.T) {
	table := lottery.DefaultTable()
	src := lottery.NewSeededSource(7)
	ranges := map[int][2]int64{0: {0, 0}, 1: {1, 5}, 2: {6, 10}, 3: {11, 15}}

	for i := 0; i < 10_000; i++ {
		tier, points := table.Resolve(src)
		r := ranges[tier]
		require.GreaterOrEqual(t, points, r[0])
		require.LessOrEqual(t, points, r[1])
	}
}

func TestNewTable_Validation(t *testing.T) {
	tests := []struct {
		name  string
		tiers []lottery.Tier
	}{
		{"empty", nil},
		{"sum below 100", []lottery.Tier{{Tier: 0, Probability: decimal.NewFromInt(99)}}},
		{"three decimals", []lottery.Tier{
			{Tier: 0, Probability: decimal.RequireFromString("99.995")},
			{Tier: 1, MinPoints: 1, MaxPoints: 1, Probability: decimal.RequireFromString("0.005")},
		}},
		{"inverted range", []lottery.Tier{{Tier: 0, MinPoints: 5, MaxPoints: 1, Probability: decimal.NewFromInt(100)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lottery.NewTable(tt.tiers)
			assert.ErrorIs(t, err, bank.ErrInvalidArgument)
		})
	}

	_, err := lottery.NewTable([]lottery.Tier{
		{Tier: 0, Probability: decimal.RequireFromString("33.33")},
		{Tier: 1, MinPoints: 1, MaxPoints: 2, Probability: decimal.RequireFromString("66.67")},
	})
	assert.NoError(t, err)
}

// =============================================================================
// BADGE DRAWS
// =============================================================================

func TestDrawFromBadge_ConsumesTicketOnce(t *testing.T) {
	f := newFixture(t, topSource{})
	ctx := context.Background()
	f.badge(t, "kid", "b1")

	draw, err := f.engine.DrawFromBadge(ctx, "kid", "b1")
	require.NoError(t, err)
	assert.Equal(t, bank.DrawResolved, draw.State)
	assert.Equal(t, 3, draw.Tier)
	assert.Equal(t, int64(15), draw.PointsWon)
	assert.NotEmpty(t, draw.TransactionID)
	assert.Equal(t, int64(15), f.balance(t, "kid"))

	_, err = f.engine.DrawFromBadge(ctx, "kid", "b1")
	assert.ErrorIs(t, err, bank.ErrTicketAlreadyUsed)
	assert.Equal(t, int64(15), f.balance(t, "kid"))
}

func TestDrawFromBadge_TicketNotFound(t *testing.T) {
	f := newFixture(t, topSource{})
	ctx := context.Background()
	f.badge(t, "sibling", "theirs")

	_, err := f.engine.DrawFromBadge(ctx, "kid", "missing")
	assert.ErrorIs(t, err, bank.ErrTicketNotFound)

	_, err = f.engine.DrawFromBadge(ctx, "kid", "theirs")
	assert.ErrorIs(t, err, bank.ErrTicketNotFound)
}

func TestDrawFromBadge_ZeroWinRecordedWithoutLedgerRow(t *testing.T) {
	f := newFixture(t, zeroSource{})
	ctx := context.Background()
	f.badge(t, "kid", "b1")

	draw, err := f.engine.DrawFromBadge(ctx, "kid", "b1")
	require.NoError(t, err)
	assert.Zero(t, draw.PointsWon)
	assert.Empty(t, draw.TransactionID)

	txs, err := f.mem.LoadTransactions(ctx, "kid")
	require.NoError(t, err)
	assert.Empty(t, txs)

	stats, err := f.engine.Stats(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalLotteryCount)
	assert.Equal(t, 1, stats.BadgeLotteryCount)
	assert.Zero(t, stats.PendingBadgeCount)
}

func TestDrawFromBadge_ConcurrentDrawsUseTicketOnce(t *testing.T) {
	f := newFixture(t, lottery.NewSeededSource(1))
	ctx := context.Background()
	f.badge(t, "kid", "b1")

	var mu sync.Mutex
	var wins, used int
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := f.engine.DrawFromBadge(ctx, "kid", "b1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, bank.ErrTicketAlreadyUsed):
				used++
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, wins)
	assert.Equal(t, 9, used)
}

// =============================================================================
// EXCHANGE DRAWS
// =============================================================================

func TestDrawFromExchange_DebitsPriceAndConsumesQuota(t *testing.T) {
	f := newFixture(t, topSource{})
	ctx := context.Background()
	f.fund(t, "kid", 30)

	draw, err := f.engine.DrawFromExchange(ctx, "kid")
	require.NoError(t, err)

	assert.Equal(t, bank.SourceExchange, draw.Source)
	assert.NotEmpty(t, draw.CostTransactionID)
	assert.Equal(t, int64(30-10+15), f.balance(t, "kid"))

	remaining, err := f.tracker.RemainingToday(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestDrawFromExchange_InsufficientFundsKeepsQuota(t *testing.T) {
	// GIVEN: balance 9
	// THEN: InsufficientFunds, quota not consumed, balance unchanged

	f := newFixture(t, topSource{})
	ctx := context.Background()
	f.fund(t, "kid", 9)

	_, err := f.engine.DrawFromExchange(ctx, "kid")

	var funds *bank.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, int64(9), funds.Balance)
	assert.Equal(t, int64(9), f.balance(t, "kid"))

	used, err := f.tracker.UsedToday(ctx, "kid")
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestDrawFromExchange_QuotaExhaustedKeepsBalance(t *testing.T) {
	f := newFixture(t, zeroSource{})
	ctx := context.Background()
	f.fund(t, "kid", 100)

	for i := 0; i < 3; i++ {
		_, err := f.engine.DrawFromExchange(ctx, "kid")
		require.NoError(t, err)
	}
	before := f.balance(t, "kid")

	_, err := f.engine.DrawFromExchange(ctx, "kid")

	assert.ErrorIs(t, err, bank.ErrQuotaExhausted)
	assert.Equal(t, before, f.balance(t, "kid"))
	assert.Equal(t, int64(70), before)
}

func TestDrawFromExchange_ConcurrentDrawsWithExactlyOnePrice(t *testing.T) {
	// GIVEN: balance exactly 10 and a source that never pays out
	// WHEN: two exchange draws race
	// THEN: exactly one succeeds; final balance 0; quota used 1

	f := newFixture(t, zeroSource{})
	ctx := context.Background()
	f.fund(t, "kid", 10)

	errs := make([]error, 2)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = f.engine.DrawFromExchange(ctx, "kid")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, funds int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, bank.ErrInsufficientFunds):
			funds++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, funds)
	assert.Zero(t, f.balance(t, "kid"))

	used, err := f.tracker.UsedToday(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

// =============================================================================
// STATS
// =============================================================================

func TestStats_AggregatesDrawsQuotaAndTickets(t *testing.T) {
	f := newFixture(t, topSource{})
	ctx := context.Background()
	f.fund(t, "kid", 50)
	f.badge(t, "kid", "b1")
	f.badge(t, "kid", "b2")

	_, err := f.engine.DrawFromBadge(ctx, "kid", "b1")
	require.NoError(t, err)
	_, err = f.engine.DrawFromExchange(ctx, "kid")
	require.NoError(t, err)

	stats, err := f.engine.Stats(ctx, "kid")
	require.NoError(t, err)

	assert.Equal(t, lottery.Stats{
		TotalLotteryCount:      2,
		TotalPointsWon:         30,
		BadgeLotteryCount:      1,
		ExchangeLotteryCount:   1,
		TodayExchangeCount:     1,
		RemainingExchangeCount: 2,
		PendingBadgeCount:      1,
	}, stats)

	tickets, err := f.engine.PendingTickets(ctx, "kid")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, bank.BadgeID("b2"), tickets[0].TicketID)
	assert.Equal(t, "Badge b2", tickets[0].BadgeTitle)
}
