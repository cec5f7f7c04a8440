package badges

import (
	"sort"

	"github.com/warp/points-engine/bank"
)

// =============================================================================
// PROGRESS FUNCTIONS - Pure folds over a member's ledger
// =============================================================================

// Measure returns the metric value for def over txs.
func Measure(def Definition, txs []bank.Transaction, cal bank.Calendar) int64 {
	switch def.Metric {
	case MetricTaskCount:
		return taskCount(txs, def.Category)
	case MetricStreakDays:
		return longestStreak(txs, def.Category, cal)
	case MetricTotalEarned:
		return bank.FoldEarned(txs)
	case MetricLotteryWins:
		var n int64
		for _, tx := range txs {
			if tx.Kind == bank.KindLottery {
				n++
			}
		}
		return n
	}
	return 0
}

func isTask(tx bank.Transaction, category string) bool {
	return tx.Kind == bank.KindEarn && (category == "" || tx.Category == category)
}

func taskCount(txs []bank.Transaction, category string) int64 {
	var n int64
	for _, tx := range txs {
		if isTask(tx, category) {
			n++
		}
	}
	return n
}

// longestStreak returns the longest run of consecutive calendar days that
// each contain at least one matching earn transaction.
func longestStreak(txs []bank.Transaction, category string, cal bank.Calendar) int64 {
	seen := make(map[bank.Day]struct{})
	for _, tx := range txs {
		if isTask(tx, category) {
			seen[cal.DayOf(tx.CreatedAt)] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return 0
	}

	days := make([]bank.Day, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	var best, run int64 = 1, 1
	for i := 1; i < len(days); i++ {
		if days[i-1].AddDays(1) == days[i] {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
	}
	return best
}
