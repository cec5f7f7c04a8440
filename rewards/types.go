/*
Package rewards provides the family reward catalog, the wishlist approval
workflow and point redemption.

PURPOSE:
  Parents publish rewards children can buy with points. Children may also
  propose rewards ("wishlist"); a parent approves or rejects each proposal.

WISHLIST FLOW:
  ┌──────────┐  propose   ┌─────────┐  approve   ┌────────┐
  │  member  │──────────▶ │ pending │──────────▶ │ active │──▶ redeemable
  └──────────┘            └─────────┘            └────────┘
                               │ reject
                               ▼
                          ┌──────────┐
                          │ rejected │ (terminal)
                          └──────────┘

  Rewards created by an admin start active.

REDEMPTION:
  Redeem appends a redeem transaction of -cost inside a member-scoped
  store transaction, after checking balance >= cost. A failed redemption
  leaves the ledger untouched.

SEE ALSO:
  - bank/ledger.go: AppendChecked
*/
package rewards

import (
	"strings"

	"github.com/warp/points-engine/bank"
)

// Category groups rewards in the catalog.
type Category string

const (
	CategoryTreat      Category = "treat"
	CategoryScreenTime Category = "screen_time"
	CategoryOuting     Category = "outing"
	CategoryToy        Category = "toy"
	CategoryPrivilege  Category = "privilege"
	CategoryOther      Category = "other"
)

// NewReward is the input for Create and Propose.
type NewReward struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Cost        int64    `json:"cost"`
}

func (n NewReward) validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return bank.Invalidf("reward title is required")
	}
	if n.Cost <= 0 {
		return bank.Invalidf("reward cost must be positive, got %d", n.Cost)
	}
	return nil
}

// transitions lists the legal wishlist moves.
var transitions = map[bank.RewardStatus][]bank.RewardStatus{
	bank.RewardPending: {bank.RewardActive, bank.RewardRejected},
}

// CanTransition reports whether a reward may move from one status to another.
func CanTransition(from, to bank.RewardStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
