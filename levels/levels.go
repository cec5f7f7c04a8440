/*
Package levels maps cumulative earned points to a level.

PURPOSE:
  A member's level is a pure function of lifetime earned points
  (bank.FoldEarned). Spending points never lowers a level.

DEFAULT TABLE:
  Level 1:     0 points
  Level 2:    50
  Level 3:   200
  Level 4:   500
  Level 5:  1000
  Level 6:  5000 (top)

PROGRESS:
  progress = (earned - current.min) / (next.min - current.min) * 100,
  computed in decimal and rounded to two places. At the top level the
  progress is 100 and there is no next threshold.
*/
package levels

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/bank"
)

// Threshold is the minimum lifetime points for a level.
type Threshold struct {
	Level     int    `json:"level" toml:"level"`
	MinPoints int64  `json:"minPoints" toml:"min_points"`
	Title     string `json:"title" toml:"title"`
}

// DefaultTable is the standard level ladder.
var DefaultTable = []Threshold{
	{Level: 1, MinPoints: 0, Title: "Seedling"},
	{Level: 2, MinPoints: 50, Title: "Sprout"},
	{Level: 3, MinPoints: 200, Title: "Sapling"},
	{Level: 4, MinPoints: 500, Title: "Young Tree"},
	{Level: 5, MinPoints: 1000, Title: "Great Tree"},
	{Level: 6, MinPoints: 5000, Title: "Ancient Forest"},
}

// Info describes a member's position on the ladder.
type Info struct {
	Level           int             `json:"level"`
	Title           string          `json:"title"`
	MinPoints       int64           `json:"minPoints"`
	NextPoints      *int64          `json:"nextPoints,omitempty"`
	ProgressPercent decimal.Decimal `json:"progressPercent"`
	TotalEarned     int64           `json:"totalEarned"`
}

// Calculator evaluates a validated threshold table.
type Calculator struct {
	table []Threshold
}

// NewCalculator validates table: non-empty, first threshold 0, strictly
// ascending points and levels.
func NewCalculator(table []Threshold) (*Calculator, error) {
	if len(table) == 0 {
		return nil, bank.Invalidf("level table is empty")
	}
	if table[0].MinPoints != 0 {
		return nil, bank.Invalidf("first level must start at 0 points, got %d", table[0].MinPoints)
	}
	for i := 1; i < len(table); i++ {
		if table[i].MinPoints <= table[i-1].MinPoints {
			return nil, bank.Invalidf("level %d threshold %d is not above %d",
				table[i].Level, table[i].MinPoints, table[i-1].MinPoints)
		}
		if table[i].Level <= table[i-1].Level {
			return nil, bank.Invalidf("level numbers must ascend at index %d", i)
		}
	}
	return &Calculator{table: append([]Threshold(nil), table...)}, nil
}

// Default returns a calculator over DefaultTable.
func Default() *Calculator {
	c, err := NewCalculator(DefaultTable)
	if err != nil {
		panic(err)
	}
	return c
}

// Table returns a copy of the thresholds.
func (c *Calculator) Table() []Threshold {
	return append([]Threshold(nil), c.table...)
}

// index returns the position of the highest threshold <= total.
func (c *Calculator) index(total int64) int {
	i := sort.Search(len(c.table), func(i int) bool { return c.table[i].MinPoints > total })
	if i == 0 {
		return 0
	}
	return i - 1
}

// Level returns the level for total earned points.
func (c *Calculator) Level(total int64) int {
	return c.table[c.index(total)].Level
}

// Info returns the level, next threshold and progress for total.
func (c *Calculator) Info(total int64) Info {
	i := c.index(total)
	cur := c.table[i]
	info := Info{
		Level:       cur.Level,
		Title:       cur.Title,
		MinPoints:   cur.MinPoints,
		TotalEarned: total,
	}
	if i == len(c.table)-1 {
		info.ProgressPercent = decimal.NewFromInt(100)
		return info
	}

	next := c.table[i+1].MinPoints
	info.NextPoints = &next

	span := decimal.NewFromInt(next - cur.MinPoints)
	done := decimal.NewFromInt(max(total, 0) - cur.MinPoints)
	pct := done.Mul(decimal.NewFromInt(100)).Div(span).Round(2)
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	info.ProgressPercent = pct
	return info
}
