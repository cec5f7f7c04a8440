/*
store.go - Persistence interfaces for the points bank

PURPOSE:
  Defines the interface between the engine and the database. Components
  depend on these interfaces only; SQLite, PostgreSQL and in-memory
  implementations satisfy them.

KEY INTERFACES:
  LedgerStore:  Append-only transaction rows (plus admin batch delete)
  MemberStore:  Member records (balance is never stored)
  QuotaStore:   Per-member per-day counters with an atomic capped increment
  BadgeStore:   Badges with (member, condition) uniqueness and ticket flag
  DrawStore:    Resolved lottery draws
  RewardStore:  Reward catalog and wishlist workflow rows
  TxStore:      Member-scoped atomic units of work

ATOMICITY:
  WithMemberTx runs fn against a transactional view of the store. Every
  check-then-write (balance >= price, then debit) happens inside it, so two
  concurrent debits for the same member are serialized. Implementations
  lock the named member rows (PostgreSQL), hold the single writer
  connection (SQLite) or a mutex (memory). If fn returns an error nothing
  it wrote is persisted.

BACKSTOPS:
  Even outside WithMemberTx the store guarantees:
  - (member_id, seq) unique: a racing append fails with ErrConcurrencyConflict
  - (member_id, condition_key) unique: InsertBadge reports inserted=false
  - IncrementQuota never exceeds cap
  - UseTicket flips the flag at most once

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL
  - bank/store: In-memory for testing
*/
package bank

import (
	"context"
	"time"
)

// =============================================================================
// LEDGER
// =============================================================================

// LedgerStore persists transactions. Rows are never updated.
type LedgerStore interface {
	// AppendTransaction assigns the next per-member Seq and persists tx.
	// Returns the stored transaction.
	AppendTransaction(ctx context.Context, tx Transaction) (Transaction, error)

	// LoadTransactions returns a member's transactions ordered by Seq.
	LoadTransactions(ctx context.Context, memberID MemberID) ([]Transaction, error)

	// GetTransaction returns ErrTransactionNotFound if id doesn't exist.
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	// DeleteTransactions removes rows by id. Admin-only; callers authorize.
	DeleteTransactions(ctx context.Context, ids []TransactionID) (int64, error)
}

// =============================================================================
// MEMBERS
// =============================================================================

// MemberStore persists member records.
type MemberStore interface {
	SaveMember(ctx context.Context, m Member) error
	GetMember(ctx context.Context, id MemberID) (*Member, error)
	ListMembers(ctx context.Context, familyID FamilyID) ([]Member, error)
}

// =============================================================================
// QUOTA
// =============================================================================

// QuotaStore persists daily usage counters.
type QuotaStore interface {
	// QuotaUsed returns the count for (member, day); zero if no row exists.
	QuotaUsed(ctx context.Context, memberID MemberID, day Day) (int, error)

	// IncrementQuota atomically increments the counter if it is below cap
	// and returns the new count. Returns ErrQuotaExhausted otherwise.
	IncrementQuota(ctx context.Context, memberID MemberID, day Day, cap int) (int, error)

	// PruneQuota deletes counters for days before the given day.
	PruneQuota(ctx context.Context, before Day) (int64, error)
}

// =============================================================================
// BADGES
// =============================================================================

// BadgeStore persists awarded badges.
type BadgeStore interface {
	// InsertBadge inserts b unless the member already holds ConditionKey.
	// inserted is false when the badge already existed.
	InsertBadge(ctx context.Context, b Badge) (inserted bool, err error)

	ListBadges(ctx context.Context, memberID MemberID) ([]Badge, error)
	GetBadge(ctx context.Context, id BadgeID) (*Badge, error)

	// UseTicket marks the badge's ticket used. Returns ErrTicketAlreadyUsed
	// if it was already used and ErrBadgeNotFound if the badge is missing.
	UseTicket(ctx context.Context, id BadgeID, at time.Time) error
}

// =============================================================================
// DRAWS
// =============================================================================

// DrawStore persists resolved lottery draws.
type DrawStore interface {
	RecordDraw(ctx context.Context, d Draw) error
	ListDraws(ctx context.Context, memberID MemberID) ([]Draw, error)
}

// =============================================================================
// REWARDS
// =============================================================================

// RewardStore persists the reward catalog and wishlist.
type RewardStore interface {
	SaveReward(ctx context.Context, r Reward) error
	GetReward(ctx context.Context, id RewardID) (*Reward, error)

	// ListRewards returns a family's rewards, optionally filtered by status.
	ListRewards(ctx context.Context, familyID FamilyID, statuses ...RewardStatus) ([]Reward, error)

	// TransitionReward moves a reward from one status to another. Returns
	// ErrInvalidTransition if the reward is not currently in from.
	TransitionReward(ctx context.Context, id RewardID, from, to RewardStatus, actor MemberID, at time.Time) error
}

// =============================================================================
// COMPOSITES
// =============================================================================

// Store combines every persistence capability.
type Store interface {
	LedgerStore
	MemberStore
	QuotaStore
	BadgeStore
	DrawStore
	RewardStore

	// DeleteFamilyData removes every row belonging to a family.
	DeleteFamilyData(ctx context.Context, familyID FamilyID) (PurgeResult, error)
}

// TxStore is a Store that supports member-scoped atomic units of work.
type TxStore interface {
	Store

	// WithMemberTx runs fn atomically while holding exclusive access to the
	// given members' accounts. If fn returns an error, all of its writes are
	// rolled back.
	WithMemberTx(ctx context.Context, members []MemberID, fn func(Store) error) error
}

// PurgeResult counts rows removed by DeleteFamilyData.
type PurgeResult struct {
	Transactions int64 `json:"transactions"`
	Badges       int64 `json:"badges"`
	Quota        int64 `json:"quota"`
	Draws        int64 `json:"draws"`
	Rewards      int64 `json:"rewards"`
	Members      int64 `json:"members"`
}
