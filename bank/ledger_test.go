package bank_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/bank/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*bank.Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	clock := &bank.FixedClock{T: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)}
	return bank.NewLedger(mem, clock), mem
}

func earnTx(member string, points int64) bank.Transaction {
	return bank.Transaction{
		MemberID: bank.MemberID(member),
		FamilyID: "fam-1",
		Title:    "Dishes",
		Points:   points,
		Kind:     bank.KindEarn,
	}
}

// =============================================================================
// APPEND VALIDATION
// =============================================================================

func TestLedger_Append_RejectsZeroPoints(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Append(context.Background(), earnTx("kid", 0))

	assert.ErrorIs(t, err, bank.ErrInvalidArgument)
}

func TestLedger_Append_RejectsSignMismatch(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		kind   bank.Kind
		points int64
	}{
		{"negative earn", bank.KindEarn, -5},
		{"positive penalty", bank.KindPenalty, 5},
		{"positive redeem", bank.KindRedeem, 10},
		{"positive exchange", bank.KindExchange, 10},
		{"negative lottery", bank.KindLottery, -3},
		{"unknown kind", bank.Kind("bonus"), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := earnTx("kid", tt.points)
			tx.Kind = tt.kind
			_, err := ledger.Append(ctx, tx)
			assert.ErrorIs(t, err, bank.ErrInvalidArgument)
		})
	}
}

func TestLedger_Append_TransferNeedsCounterparty(t *testing.T) {
	ledger, _ := newTestLedger(t)

	tx := earnTx("kid", -5)
	tx.Kind = bank.KindTransfer
	_, err := ledger.Append(context.Background(), tx)
	assert.ErrorIs(t, err, bank.ErrInvalidArgument)

	tx.CounterpartyID = "sibling"
	_, err = ledger.Append(context.Background(), tx)
	assert.NoError(t, err)
}

func TestLedger_Append_AssignsIdentityAndOrder(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := ledger.Append(ctx, earnTx("kid", 5))
	require.NoError(t, err)
	second, err := ledger.Append(ctx, earnTx("kid", 7))
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.False(t, first.CreatedAt.IsZero())

	txs, err := ledger.ListForMember(ctx, "kid")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, first.ID, txs[0].ID)
	assert.Equal(t, second.ID, txs[1].ID)
}

// =============================================================================
// CHECKED DEBITS
// =============================================================================

func TestLedger_AppendChecked_InsufficientFundsLeavesLedgerUnchanged(t *testing.T) {
	// GIVEN: balance 10
	// WHEN: redeeming 11
	// THEN: InsufficientFunds, balance still 10

	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	_, err := ledger.Append(ctx, earnTx("kid", 10))
	require.NoError(t, err)

	redeem := bank.Transaction{MemberID: "kid", FamilyID: "fam-1", Title: "Toy", Points: -11, Kind: bank.KindRedeem}
	_, err = ledger.AppendChecked(ctx, redeem)

	var funds *bank.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, int64(10), funds.Balance)
	assert.Equal(t, int64(11), funds.Required)

	balance, err := bank.NewBalanceView(mem).CurrentBalance(ctx, "kid")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestLedger_AppendChecked_ExactBalanceAllowed(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	_, err := ledger.Append(ctx, earnTx("kid", 10))
	require.NoError(t, err)

	_, err = ledger.AppendChecked(ctx, bank.Transaction{MemberID: "kid", FamilyID: "fam-1", Title: "Ticket", Points: -10, Kind: bank.KindExchange})
	require.NoError(t, err)

	balance, err := bank.NewBalanceView(mem).CurrentBalance(ctx, "kid")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

// =============================================================================
// FOLDS
// =============================================================================

func TestSummarize_EarnedIncludesTransfersAndLottery(t *testing.T) {
	txs := []bank.Transaction{
		{Points: 20, Kind: bank.KindEarn},
		{Points: 5, Kind: bank.KindTransfer},
		{Points: -10, Kind: bank.KindExchange},
		{Points: 7, Kind: bank.KindLottery},
		{Points: -3, Kind: bank.KindPenalty},
	}

	s := bank.Summarize("kid", txs)

	assert.Equal(t, int64(19), s.Balance)
	assert.Equal(t, int64(32), s.TotalEarned)
	assert.Equal(t, int64(13), s.TotalSpent)
	assert.Equal(t, bank.FoldBalance(txs), s.Balance)
	assert.Equal(t, bank.FoldEarned(txs), s.TotalEarned)
}

func TestBalanceView_EmptyLedger(t *testing.T) {
	_, mem := newTestLedger(t)
	view := bank.NewBalanceView(mem)

	balance, err := view.CurrentBalance(context.Background(), "nobody")
	require.NoError(t, err)
	earned, err := view.TotalEarned(context.Background(), "nobody")
	require.NoError(t, err)

	assert.Zero(t, balance)
	assert.Zero(t, earned)
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

func TestMemory_WithMemberTx_RollsBackOnError(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	_, err := ledger.Append(ctx, earnTx("kid", 10))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = mem.WithMemberTx(ctx, []bank.MemberID{"kid"}, func(s bank.Store) error {
		if _, err := bank.NewLedger(s, nil).Append(ctx, earnTx("kid", 99)); err != nil {
			return err
		}
		if _, err := s.IncrementQuota(ctx, "kid", "2025-03-10", 3); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	txs, err := mem.LoadTransactions(ctx, "kid")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	used, err := mem.QuotaUsed(ctx, "kid", "2025-03-10")
	require.NoError(t, err)
	assert.Zero(t, used)
}

// =============================================================================
// RETRY
// =============================================================================

func TestWithRetry_RetriesConflicts(t *testing.T) {
	calls := 0
	err := bank.WithRetry(context.Background(), 5, func(context.Context) error {
		calls++
		if calls < 3 {
			return bank.ErrConcurrencyConflict
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_SurfacesConflictWhenExhausted(t *testing.T) {
	calls := 0
	err := bank.WithRetry(context.Background(), 3, func(context.Context) error {
		calls++
		return bank.ErrConcurrencyConflict
	})

	var conflict *bank.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 3, conflict.Attempts)
	assert.True(t, bank.IsRetryable(err))
	assert.Equal(t, 3, calls)
}

func TestWithRetry_DoesNotRetryBusinessErrors(t *testing.T) {
	calls := 0
	err := bank.WithRetry(context.Background(), 5, func(context.Context) error {
		calls++
		return bank.ErrInsufficientFunds
	})

	assert.ErrorIs(t, err, bank.ErrInsufficientFunds)
	assert.Equal(t, 1, calls)
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestCalendar_DayUsesReferenceTimezone(t *testing.T) {
	clock := &bank.FixedClock{T: time.Date(2025, time.March, 10, 17, 30, 0, 0, time.UTC)}
	cal, err := bank.NewCalendar(clock, "Asia/Shanghai")
	require.NoError(t, err)

	// 17:30 UTC is 01:30 the next day in UTC+8.
	assert.Equal(t, bank.Day("2025-03-11"), cal.Today())

	utc, err := bank.NewCalendar(clock, "")
	require.NoError(t, err)
	assert.Equal(t, bank.Day("2025-03-10"), utc.Today())
}

func TestDay_Arithmetic(t *testing.T) {
	d, err := bank.ParseDay("2025-02-28")
	require.NoError(t, err)

	assert.Equal(t, bank.Day("2025-03-01"), d.AddDays(1))
	assert.Equal(t, bank.Day("2025-02-27"), d.AddDays(-1))
	assert.True(t, d.Before(d.AddDays(1)))

	_, err = bank.ParseDay("28/02/2025")
	assert.ErrorIs(t, err, bank.ErrInvalidArgument)
}
