/*
Package lottery resolves probability-weighted point rewards.

PURPOSE:
  Members draw with either a free badge ticket (one per badge) or a
  purchased exchange ticket (10 points plus one unit of daily quota).
  Resolution happens here, on the server; clients only see the result.

DEFAULT TIERS:
  Tier  Points   Probability
  0     0        30%
  1     1-5      40%
  2     6-10     20%
  3     11-15    10%

  Probabilities are decimals that must sum to exactly 100. They are
  converted to integer weights out of 10000 so a draw is one uniform pick
  plus, within the tier, one uniform pick of the point value.

DRAW LIFECYCLE:
  Idle -> Committed (ticket consumed, purchase debited) -> Resolved.
  A resolved draw is final. Zero-point outcomes are recorded as draws but
  produce no ledger row.
*/
package lottery

import (
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/bank"
)

// weightScale converts percent probabilities to integer weights.
const weightScale = 100

// Tier is one band of the payout table.
type Tier struct {
	Tier        int             `json:"tier" toml:"tier"`
	MinPoints   int64           `json:"minPoints" toml:"min_points"`
	MaxPoints   int64           `json:"maxPoints" toml:"max_points"`
	Probability decimal.Decimal `json:"probability" toml:"probability"` // percent
}

// DefaultTiers is the standard payout table.
var DefaultTiers = []Tier{
	{Tier: 0, MinPoints: 0, MaxPoints: 0, Probability: decimal.NewFromInt(30)},
	{Tier: 1, MinPoints: 1, MaxPoints: 5, Probability: decimal.NewFromInt(40)},
	{Tier: 2, MinPoints: 6, MaxPoints: 10, Probability: decimal.NewFromInt(20)},
	{Tier: 3, MinPoints: 11, MaxPoints: 15, Probability: decimal.NewFromInt(10)},
}

// Source supplies uniform random integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// globalSource uses the runtime-seeded math/rand/v2 generator, which is
// safe for concurrent use.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource returns the production random source.
func DefaultSource() Source { return globalSource{} }

// seededSource is a deterministic, mutex-guarded PCG source.
type seededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededSource returns a reproducible source, for tests and simulations.
func NewSeededSource(seed uint64) Source {
	return &seededSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// Table is a validated payout table.
type Table struct {
	tiers   []Tier
	weights []int
	total   int
}

// NewTable validates tiers: non-empty, MinPoints <= MaxPoints, no negative
// points, probabilities positive with at most two decimal places and
// summing to exactly 100.
func NewTable(tiers []Tier) (*Table, error) {
	if len(tiers) == 0 {
		return nil, bank.Invalidf("lottery table is empty")
	}
	hundred := decimal.NewFromInt(100)
	sum := decimal.Zero
	t := &Table{}
	for _, tier := range tiers {
		if tier.MinPoints < 0 || tier.MaxPoints < tier.MinPoints {
			return nil, bank.Invalidf("tier %d has invalid range %d-%d", tier.Tier, tier.MinPoints, tier.MaxPoints)
		}
		if !tier.Probability.IsPositive() {
			return nil, bank.Invalidf("tier %d probability must be positive", tier.Tier)
		}
		w := tier.Probability.Mul(decimal.NewFromInt(weightScale))
		if !w.Equal(w.Truncate(0)) {
			return nil, bank.Invalidf("tier %d probability %s has more than two decimals", tier.Tier, tier.Probability)
		}
		sum = sum.Add(tier.Probability)
		t.tiers = append(t.tiers, tier)
		t.weights = append(t.weights, int(w.IntPart()))
		t.total += int(w.IntPart())
	}
	if !sum.Equal(hundred) {
		return nil, bank.Invalidf("tier probabilities sum to %s, want 100", sum)
	}
	return t, nil
}

// DefaultTable returns the standard table.
func DefaultTable() *Table {
	t, err := NewTable(DefaultTiers)
	if err != nil {
		panic(err)
	}
	return t
}

// Tiers returns a copy of the table's tiers.
func (t *Table) Tiers() []Tier {
	return append([]Tier(nil), t.tiers...)
}

// Resolve picks a tier by weight and a point value uniformly within it.
func (t *Table) Resolve(src Source) (tier int, points int64) {
	r := src.IntN(t.total)
	idx := len(t.tiers) - 1
	for i, w := range t.weights {
		if r < w {
			idx = i
			break
		}
		r -= w
	}
	chosen := t.tiers[idx]
	points = chosen.MinPoints
	if span := chosen.MaxPoints - chosen.MinPoints; span > 0 {
		points += int64(src.IntN(int(span) + 1))
	}
	return chosen.Tier, points
}
