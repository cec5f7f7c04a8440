/*
Package badges evaluates badge conditions against the ledger and awards
badges idempotently.

PURPOSE:
  A badge is awarded once per (member, condition key) when a monotonic
  progress metric reaches the badge's requirement. Every awarded badge
  carries one free lottery ticket (see the lottery package).

METRICS:
  task_count:   number of earn transactions (optionally one category)
  streak_days:  longest run of consecutive days with an earn transaction
                (optionally one category), in the reference timezone
  total_earned: lifetime positive points
  lottery_wins: number of lottery credits

  All metrics only grow as the ledger grows, so a badge never becomes
  unearned. streak_days uses the longest run ever, not the current run.

IDEMPOTENCY:
  GrantEligible relies on the store's (member, condition key) uniqueness.
  Two concurrent grants for the same member produce each badge once.
*/
package badges

import (
	"github.com/warp/points-engine/bank"
)

// Metric names a progress function.
type Metric string

const (
	MetricTaskCount   Metric = "task_count"
	MetricStreakDays  Metric = "streak_days"
	MetricTotalEarned Metric = "total_earned"
	MetricLotteryWins Metric = "lottery_wins"
)

func (m Metric) valid() bool {
	switch m {
	case MetricTaskCount, MetricStreakDays, MetricTotalEarned, MetricLotteryWins:
		return true
	}
	return false
}

// Definition describes one badge condition.
type Definition struct {
	Key         string `json:"key" toml:"key"`
	Title       string `json:"title" toml:"title"`
	Icon        string `json:"icon" toml:"icon"`
	Description string `json:"description" toml:"description"`
	Metric      Metric `json:"metric" toml:"metric"`
	Category    string `json:"category,omitempty" toml:"category"`
	Requirement int64  `json:"requirement" toml:"requirement"`
}

// DefaultDefinitions is the built-in, ordered badge catalog.
var DefaultDefinitions = []Definition{
	{Key: "first_task", Title: "First Step", Icon: "🌱", Description: "Complete your first task", Metric: MetricTaskCount, Requirement: 1},
	{Key: "tasks_10", Title: "Helping Hand", Icon: "🖐️", Description: "Complete 10 tasks", Metric: MetricTaskCount, Requirement: 10},
	{Key: "tasks_50", Title: "Hard Worker", Icon: "💪", Description: "Complete 50 tasks", Metric: MetricTaskCount, Requirement: 50},
	{Key: "tasks_100", Title: "Centurion", Icon: "🏛️", Description: "Complete 100 tasks", Metric: MetricTaskCount, Requirement: 100},
	{Key: "chores_20", Title: "Tidy Star", Icon: "🧹", Description: "Complete 20 chores", Metric: MetricTaskCount, Category: "chores", Requirement: 20},
	{Key: "study_20", Title: "Bookworm", Icon: "📚", Description: "Complete 20 study tasks", Metric: MetricTaskCount, Category: "study", Requirement: 20},
	{Key: "streak_3", Title: "On a Roll", Icon: "🔥", Description: "Earn points 3 days in a row", Metric: MetricStreakDays, Requirement: 3},
	{Key: "streak_7", Title: "Week Warrior", Icon: "📅", Description: "Earn points 7 days in a row", Metric: MetricStreakDays, Requirement: 7},
	{Key: "streak_30", Title: "Unstoppable", Icon: "🏆", Description: "Earn points 30 days in a row", Metric: MetricStreakDays, Requirement: 30},
	{Key: "points_100", Title: "Saver", Icon: "🪙", Description: "Earn 100 points in total", Metric: MetricTotalEarned, Requirement: 100},
	{Key: "points_500", Title: "Treasurer", Icon: "💰", Description: "Earn 500 points in total", Metric: MetricTotalEarned, Requirement: 500},
	{Key: "points_1000", Title: "Tycoon", Icon: "💎", Description: "Earn 1000 points in total", Metric: MetricTotalEarned, Requirement: 1000},
	{Key: "lucky_5", Title: "Lucky Charm", Icon: "🍀", Description: "Win the lottery 5 times", Metric: MetricLotteryWins, Requirement: 5},
}

// Catalog is an ordered, validated set of definitions.
type Catalog struct {
	defs  []Definition
	byKey map[string]int
}

// NewCatalog validates defs: unique non-empty keys, known metrics and
// positive requirements. Order is preserved.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]int, len(defs))}
	for i, d := range defs {
		switch {
		case d.Key == "":
			return nil, bank.Invalidf("badge %d has no key", i)
		case d.Title == "":
			return nil, bank.Invalidf("badge %q has no title", d.Key)
		case !d.Metric.valid():
			return nil, bank.Invalidf("badge %q has unknown metric %q", d.Key, d.Metric)
		case d.Requirement <= 0:
			return nil, bank.Invalidf("badge %q requirement must be positive", d.Key)
		}
		if _, dup := c.byKey[d.Key]; dup {
			return nil, bank.Invalidf("duplicate badge key %q", d.Key)
		}
		c.byKey[d.Key] = i
		c.defs = append(c.defs, d)
	}
	return c, nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions)
	if err != nil {
		panic(err)
	}
	return c
}

// Definitions returns the ordered definitions.
func (c *Catalog) Definitions() []Definition {
	return append([]Definition(nil), c.defs...)
}

// Lookup returns the definition for key.
func (c *Catalog) Lookup(key string) (Definition, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}
