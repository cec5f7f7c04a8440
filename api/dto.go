/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

  RPC bodies use snake_case keys (member_id, family_id); RPC results use
  the camelCase keys clients already read (pointsWon, ticketId).

VALIDATION:
  Validation is done by the economy service, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/points-engine/bank"
)

// =============================================================================
// RPC
// =============================================================================

// RPCRequest is the union of every RPC argument. Each RPC reads the
// fields it needs.
type RPCRequest struct {
	MemberID string `json:"member_id"`
	FamilyID string `json:"family_id"`
	BadgeID  string `json:"badge_id"`
	ActorID  string `json:"actor_id"`
}

// GrantResponse is the result of grant_eligible_badges.
type GrantResponse struct {
	Count  int        `json:"count"`
	Badges []BadgeDTO `json:"badges"`
}

// LotteryResultDTO is the result of a lottery draw.
type LotteryResultDTO struct {
	PointsWon  int64  `json:"pointsWon"`
	Tier       int    `json:"tier"`
	DrawID     string `json:"drawId"`
	SourceType string `json:"sourceType"`
	BadgeID    string `json:"sourceBadgeId,omitempty"`
	Balance    int64  `json:"balance"`
}

// =============================================================================
// MEMBERS
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID        string `json:"id"`
	FamilyID  string `json:"family_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SaveMemberRequest creates or updates a member of the path family.
type SaveMemberRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// BalanceDTO is a member's ledger summary.
type BalanceDTO struct {
	MemberID    string `json:"member_id"`
	Balance     int64  `json:"balance"`
	TotalEarned int64  `json:"total_earned"`
	TotalSpent  int64  `json:"total_spent"`
	Count       int    `json:"transaction_count"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a ledger row.
type TransactionDTO struct {
	ID             string            `json:"id"`
	MemberID       string            `json:"member_id"`
	Seq            int64             `json:"seq"`
	Title          string            `json:"title"`
	Points         int64             `json:"points"`
	Kind           string            `json:"kind"`
	Category       string            `json:"category,omitempty"`
	ReferenceID    string            `json:"reference_id,omitempty"`
	CounterpartyID string            `json:"counterparty_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// PointsRequest is the body of earn and penalty.
type PointsRequest struct {
	Title    string `json:"title"`
	Points   int64  `json:"points"`
	Category string `json:"category"`
}

// TransferRequest moves points to another member.
type TransferRequest struct {
	To     string `json:"to"`
	Points int64  `json:"points"`
	Title  string `json:"title"`
}

// TransferResponse holds both ledger rows of a transfer.
type TransferResponse struct {
	Debit  TransactionDTO `json:"debit"`
	Credit TransactionDTO `json:"credit"`
}

// CompleteTaskRequest names a catalog task.
type CompleteTaskRequest struct {
	TaskKey string `json:"task_key"`
}

// CompleteTaskResponse is the credited row, the new balance and the badges
// the member can now claim.
type CompleteTaskResponse struct {
	Transaction    TransactionDTO `json:"transaction"`
	Balance        int64          `json:"balance"`
	EligibleBadges []string       `json:"eligible_badges"`
}

// DeleteTransactionsRequest is an admin batch delete.
type DeleteTransactionsRequest struct {
	ActorID string   `json:"actor_id"`
	IDs     []string `json:"ids"`
}

// =============================================================================
// BADGES
// =============================================================================

// BadgeDTO represents an awarded badge.
type BadgeDTO struct {
	ID           string `json:"id"`
	ConditionKey string `json:"conditionKey"`
	Title        string `json:"title"`
	Icon         string `json:"icon"`
	AwardedAt    string `json:"awardedAt"`
	TicketUsed   bool   `json:"ticketUsed"`
}

// =============================================================================
// REWARDS
// =============================================================================

// RewardDTO represents a catalog reward or wishlist entry.
type RewardDTO struct {
	ID          string `json:"id"`
	FamilyID    string `json:"family_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Cost        int64  `json:"cost"`
	Status      string `json:"status"`
	ProposedBy  string `json:"proposed_by"`
	DecidedBy   string `json:"decided_by,omitempty"`
	DecidedAt   string `json:"decided_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// RewardRequest creates or proposes a reward.
type RewardRequest struct {
	ActorID     string `json:"actor_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Cost        int64  `json:"cost"`
}

// ActorRequest carries the acting member of an admin decision.
type ActorRequest struct {
	ActorID string `json:"actor_id"`
}

// RedeemRequest spends points on a reward.
type RedeemRequest struct {
	RewardID string `json:"reward_id"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toMemberDTO(m bank.Member) MemberDTO {
	return MemberDTO{
		ID:        string(m.ID),
		FamilyID:  string(m.FamilyID),
		Name:      m.Name,
		Role:      string(m.Role),
		CreatedAt: formatTime(m.CreatedAt),
	}
}

func toTransactionDTO(tx bank.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             string(tx.ID),
		MemberID:       string(tx.MemberID),
		Seq:            tx.Seq,
		Title:          tx.Title,
		Points:         tx.Points,
		Kind:           string(tx.Kind),
		Category:       tx.Category,
		ReferenceID:    tx.ReferenceID,
		CounterpartyID: string(tx.CounterpartyID),
		Metadata:       tx.Metadata,
		CreatedAt:      formatTime(tx.CreatedAt),
	}
}

func toTransactionDTOs(txs []bank.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toBadgeDTOs(bs []bank.Badge) []BadgeDTO {
	dtos := make([]BadgeDTO, len(bs))
	for i, b := range bs {
		dtos[i] = BadgeDTO{
			ID:           string(b.ID),
			ConditionKey: b.ConditionKey,
			Title:        b.Title,
			Icon:         b.Icon,
			AwardedAt:    formatTime(b.AwardedAt),
			TicketUsed:   b.TicketUsed,
		}
	}
	return dtos
}

func toRewardDTO(r bank.Reward) RewardDTO {
	dto := RewardDTO{
		ID:          string(r.ID),
		FamilyID:    string(r.FamilyID),
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Cost:        r.Cost,
		Status:      string(r.Status),
		ProposedBy:  string(r.ProposedBy),
		DecidedBy:   string(r.DecidedBy),
		CreatedAt:   formatTime(r.CreatedAt),
	}
	if r.DecidedAt != nil {
		dto.DecidedAt = formatTime(*r.DecidedAt)
	}
	return dto
}

func toRewardDTOs(rs []bank.Reward) []RewardDTO {
	dtos := make([]RewardDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toRewardDTO(r)
	}
	return dtos
}

func toLotteryResultDTO(d bank.Draw, balance int64) LotteryResultDTO {
	return LotteryResultDTO{
		PointsWon:  d.PointsWon,
		Tier:       d.Tier,
		DrawID:     string(d.ID),
		SourceType: string(d.Source),
		BadgeID:    string(d.BadgeID),
		Balance:    balance,
	}
}
