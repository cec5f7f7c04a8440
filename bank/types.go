/*
types.go - Core domain types for the points bank

PURPOSE:
  Defines the vocabulary shared by every component: members, ledger
  transactions, badges, lottery draws, quota counters, rewards and tasks.
  Components above this package (quota, badges, lottery, levels, rewards,
  economy) operate only on these types.

KEY CONCEPTS:
  Transaction: An immutable, signed point movement for one member.
               The ledger is the single source of truth for balances.
  Kind:        Why the points moved (earn, penalty, redeem, ...).
               The sign of Points must agree with the kind.
  Seq:         Per-member monotonic sequence number assigned by the store.
               (MemberID, Seq) is unique and defines ledger order.

SEE ALSO:
  - ledger.go: Appending and listing transactions
  - balance.go: Folds over the ledger
  - store.go: Persistence interfaces
*/
package bank

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// MemberID identifies a family member.
type MemberID string

// FamilyID identifies a family (the isolation boundary for all data).
type FamilyID string

// TransactionID identifies a ledger row.
type TransactionID string

// BadgeID identifies an awarded badge. A badge doubles as a lottery ticket.
type BadgeID string

// DrawID identifies a resolved lottery draw.
type DrawID string

// RewardID identifies a reward or wishlist item.
type RewardID string

// =============================================================================
// MEMBERS
// =============================================================================

// Role controls which operations a member may perform.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleChild Role = "child"
)

// Member is a participant holding a points account.
// Balance is never stored on the member; it is always folded from the ledger.
type Member struct {
	ID        MemberID
	FamilyID  FamilyID
	Name      string
	Role      Role
	CreatedAt time.Time
}

// IsAdmin reports whether the member may approve, reject or delete.
func (m Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Kind classifies a ledger row.
type Kind string

const (
	KindEarn     Kind = "earn"     // task completion or manual award
	KindPenalty  Kind = "penalty"  // deduction by an admin
	KindRedeem   Kind = "redeem"   // reward redemption
	KindTransfer Kind = "transfer" // member-to-member movement, one row per side
	KindLottery  Kind = "lottery"  // lottery win credit
	KindExchange Kind = "exchange" // purchase of an exchange lottery ticket
	KindSystem   Kind = "system"   // administrative correction
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEarn, KindPenalty, KindRedeem, KindTransfer, KindLottery, KindExchange, KindSystem:
		return true
	}
	return false
}

// SignOK reports whether points carries the sign this kind requires.
func (k Kind) SignOK(points int64) bool {
	switch k {
	case KindEarn, KindLottery:
		return points > 0
	case KindPenalty, KindRedeem, KindExchange:
		return points < 0
	default:
		return points != 0
	}
}

// Transaction is an immutable record of a point change for one member.
type Transaction struct {
	ID          TransactionID
	MemberID    MemberID
	FamilyID    FamilyID
	Seq         int64 // assigned by the store on append
	Title       string
	Points      int64 // signed, never zero
	Kind        Kind
	Category    string // task category for earn rows
	ReferenceID string // task key, reward id, badge id or draw id

	// CounterpartyID is the other member of a transfer.
	CounterpartyID MemberID

	Metadata  map[string]string
	CreatedAt time.Time
}

// =============================================================================
// BADGES
// =============================================================================

// Badge records that a member met a badge condition. Each badge carries
// exactly one free lottery ticket, tracked by TicketUsed.
type Badge struct {
	ID           BadgeID
	MemberID     MemberID
	FamilyID     FamilyID
	ConditionKey string
	Title        string
	Icon         string
	AwardedAt    time.Time
	TicketUsed   bool
	TicketUsedAt *time.Time
}

// =============================================================================
// LOTTERY DRAWS
// =============================================================================

// DrawSource is how a lottery ticket was obtained.
type DrawSource string

const (
	SourceBadge    DrawSource = "badge"
	SourceExchange DrawSource = "exchange"
)

// DrawState tracks a ticket through its lifecycle.
// Idle -> Committed (ticket consumed) -> Resolved (points determined).
type DrawState string

const (
	DrawIdle      DrawState = "idle"
	DrawCommitted DrawState = "committed"
	DrawResolved  DrawState = "resolved"
)

// Draw is a resolved lottery outcome. Every draw is persisted, including
// zero-point outcomes, which have no ledger row (TransactionID is empty).
type Draw struct {
	ID                DrawID
	MemberID          MemberID
	FamilyID          FamilyID
	Source            DrawSource
	BadgeID           BadgeID // set for badge draws
	Tier              int
	PointsWon         int64
	CostTransactionID TransactionID // exchange debit
	TransactionID     TransactionID // lottery credit
	State             DrawState
	CreatedAt         time.Time
}

// =============================================================================
// QUOTA
// =============================================================================

// QuotaCounter counts exchange-lottery uses for one member on one day.
// A missing counter means zero uses.
type QuotaCounter struct {
	MemberID  MemberID
	Day       Day
	UsedCount int
}

// =============================================================================
// REWARDS
// =============================================================================

// RewardStatus is the wishlist workflow state.
type RewardStatus string

const (
	RewardActive   RewardStatus = "active"   // redeemable
	RewardPending  RewardStatus = "pending"  // proposed, awaiting an admin
	RewardRejected RewardStatus = "rejected" // terminal
)

// Reward is a redeemable catalog item or a proposed wishlist entry.
type Reward struct {
	ID          RewardID
	FamilyID    FamilyID
	Title       string
	Description string
	Category    string
	Cost        int64
	Status      RewardStatus
	ProposedBy  MemberID
	DecidedBy   MemberID
	DecidedAt   *time.Time
	CreatedAt   time.Time
}

// =============================================================================
// TASKS
// =============================================================================

// Task is a catalog entry describing a completable chore. Task management is
// external; the engine only needs the points and category of a completion.
type Task struct {
	Key      string `json:"key" toml:"key"`
	Title    string `json:"title" toml:"title"`
	Category string `json:"category" toml:"category"`
	Points   int64  `json:"points" toml:"points"`
}
