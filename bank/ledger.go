/*
ledger.go - Append-only points ledger

PURPOSE:
  The Ledger is the immutable source of truth for every point movement.
  Earning, penalties, redemptions, transfers, lottery wins and exchange
  purchases are all recorded here. Balance is always computed by folding
  transactions; there is no stored balance that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: rows are never updated
  2. NON-ZERO: a transaction with 0 points is rejected
  3. SIGNED BY KIND: earn/lottery > 0; penalty/redeem/exchange < 0
  4. ORDERED: the store assigns a per-member Seq

DELETION:
  The only removal path is the admin batch delete in the economy service.
  Corrections are otherwise made with a compensating system transaction.

CHECKED DEBITS:
  AppendChecked folds the current balance and refuses a debit that would
  overdraw. It is only race-free inside TxStore.WithMemberTx.

SEE ALSO:
  - store.go: Persistence interfaces
  - balance.go: Folds
*/
package bank

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger validates and appends transactions and lists them back.
type Ledger struct {
	Store LedgerStore
	Clock Clock
}

// NewLedger creates a ledger over store. A nil clock uses the system clock.
func NewLedger(store LedgerStore, clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ledger{Store: store, Clock: clock}
}

// Append validates tx, fills in ID and CreatedAt when empty, and persists it.
func (l *Ledger) Append(ctx context.Context, tx Transaction) (Transaction, error) {
	if err := Validate(tx); err != nil {
		return Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = TransactionID(uuid.NewString())
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = l.Clock.Now()
	}
	return l.Store.AppendTransaction(ctx, tx)
}

// AppendChecked appends tx, refusing a debit that would take the member's
// balance below zero. Credits are appended unchecked.
func (l *Ledger) AppendChecked(ctx context.Context, tx Transaction) (Transaction, error) {
	if tx.Points < 0 {
		txs, err := l.Store.LoadTransactions(ctx, tx.MemberID)
		if err != nil {
			return Transaction{}, err
		}
		balance := FoldBalance(txs)
		if balance+tx.Points < 0 {
			return Transaction{}, &InsufficientFundsError{
				MemberID: tx.MemberID,
				Balance:  balance,
				Required: -tx.Points,
			}
		}
	}
	return l.Append(ctx, tx)
}

// ListForMember returns a member's transactions in ledger order.
func (l *Ledger) ListForMember(ctx context.Context, memberID MemberID) ([]Transaction, error) {
	return l.Store.LoadTransactions(ctx, memberID)
}

// Get returns a single transaction.
func (l *Ledger) Get(ctx context.Context, id TransactionID) (*Transaction, error) {
	return l.Store.GetTransaction(ctx, id)
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks a transaction before it is persisted.
func Validate(tx Transaction) error {
	switch {
	case tx.MemberID == "":
		return Invalidf("transaction requires a member")
	case tx.FamilyID == "":
		return Invalidf("transaction requires a family")
	case strings.TrimSpace(tx.Title) == "":
		return Invalidf("transaction requires a title")
	case tx.Points == 0:
		return Invalidf("transaction points must be non-zero")
	case !tx.Kind.Valid():
		return Invalidf("unknown transaction kind %q", tx.Kind)
	case !tx.Kind.SignOK(tx.Points):
		return Invalidf("%s transaction cannot carry %d points", tx.Kind, tx.Points)
	case tx.Kind == KindTransfer && tx.CounterpartyID == "":
		return Invalidf("transfer requires a counterparty")
	}
	return nil
}
