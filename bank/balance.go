/*
balance.go - Balance folds over the ledger

PURPOSE:
  Answers "how many points does this member have?" and "how many points has
  this member ever earned?" by folding the ledger. Nothing here is stored.

DEFINITIONS:
  Balance:     sum of all points
  TotalEarned: sum of all positive points (task earnings, incoming transfers,
               lottery wins, positive system corrections). Drives levels and
               the cumulative-points badges.
  TotalSpent:  sum of the magnitudes of all negative points

EXAMPLE:
  Ledger [+20, +5, -10 (exchange), +7 (lottery), -3 (penalty)]
  Balance = 19, TotalEarned = 32, TotalSpent = 13
*/
package bank

import "context"

// =============================================================================
// FOLDS - Pure functions over a transaction slice
// =============================================================================

// FoldBalance returns the sum of all points.
func FoldBalance(txs []Transaction) int64 {
	var sum int64
	for _, tx := range txs {
		sum += tx.Points
	}
	return sum
}

// FoldEarned returns the sum of all positive points.
func FoldEarned(txs []Transaction) int64 {
	var sum int64
	for _, tx := range txs {
		if tx.Points > 0 {
			sum += tx.Points
		}
	}
	return sum
}

// Summary is a point-in-time view of a member's account.
type Summary struct {
	MemberID    MemberID `json:"memberId"`
	Balance     int64    `json:"balance"`
	TotalEarned int64    `json:"totalEarned"`
	TotalSpent  int64    `json:"totalSpent"`
	Count       int      `json:"transactionCount"`
	LastSeq     int64    `json:"lastSeq"`
}

// Summarize folds txs into a Summary in one pass.
func Summarize(memberID MemberID, txs []Transaction) Summary {
	s := Summary{MemberID: memberID, Count: len(txs)}
	for _, tx := range txs {
		s.Balance += tx.Points
		if tx.Points > 0 {
			s.TotalEarned += tx.Points
		} else {
			s.TotalSpent -= tx.Points
		}
		if tx.Seq > s.LastSeq {
			s.LastSeq = tx.Seq
		}
	}
	return s
}

// =============================================================================
// BALANCE VIEW
// =============================================================================

// BalanceView reads balances from the ledger store.
type BalanceView struct {
	Store LedgerStore
}

func NewBalanceView(store LedgerStore) *BalanceView {
	return &BalanceView{Store: store}
}

// CurrentBalance returns the member's spendable points.
func (v *BalanceView) CurrentBalance(ctx context.Context, memberID MemberID) (int64, error) {
	txs, err := v.Store.LoadTransactions(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return FoldBalance(txs), nil
}

// TotalEarned returns the member's lifetime positive points.
func (v *BalanceView) TotalEarned(ctx context.Context, memberID MemberID) (int64, error) {
	txs, err := v.Store.LoadTransactions(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return FoldEarned(txs), nil
}

// Summary returns balance, earned and spent from a single ledger read.
func (v *BalanceView) Summary(ctx context.Context, memberID MemberID) (Summary, error) {
	txs, err := v.Store.LoadTransactions(ctx, memberID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(memberID, txs), nil
}
