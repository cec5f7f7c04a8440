package levels_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/levels"
)

func TestCalculator_Thresholds(t *testing.T) {
	calc := levels.Default()

	tests := []struct {
		total int64
		level int
	}{
		{0, 1}, {49, 1}, {50, 2}, {199, 2}, {200, 3},
		{499, 3}, {500, 4}, {501, 4}, {999, 4}, {1000, 5},
		{4999, 5}, {5000, 6}, {1_000_000, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, calc.Level(tt.total), "total=%d", tt.total)
	}
}

func TestCalculator_ProgressAtFiveHundred(t *testing.T) {
	// GIVEN: totalEarned 500 and 501
	// THEN: level 4 with ~0% progress toward 1000

	calc := levels.Default()

	at500 := calc.Info(500)
	assert.Equal(t, 4, at500.Level)
	require.NotNil(t, at500.NextPoints)
	assert.Equal(t, int64(1000), *at500.NextPoints)
	assert.True(t, at500.ProgressPercent.Equal(decimal.Zero))

	at501 := calc.Info(501)
	assert.Equal(t, 4, at501.Level)
	assert.Equal(t, "0.2", at501.ProgressPercent.String())
}

func TestCalculator_TopLevelProgressIsHundred(t *testing.T) {
	info := levels.Default().Info(7500)

	assert.Equal(t, 6, info.Level)
	assert.Nil(t, info.NextPoints)
	assert.True(t, info.ProgressPercent.Equal(decimal.NewFromInt(100)))
}

func TestCalculator_Monotonic(t *testing.T) {
	calc := levels.Default()
	prev := calc.Level(0)
	for total := int64(1); total <= 6000; total++ {
		lvl := calc.Level(total)
		require.GreaterOrEqual(t, lvl, prev, "total=%d", total)
		prev = lvl
	}
}

func TestNewCalculator_RejectsBadTables(t *testing.T) {
	tests := []struct {
		name  string
		table []levels.Threshold
	}{
		{"empty", nil},
		{"not starting at zero", []levels.Threshold{{Level: 1, MinPoints: 10}}},
		{"not ascending", []levels.Threshold{{Level: 1, MinPoints: 0}, {Level: 2, MinPoints: 0}}},
		{"levels out of order", []levels.Threshold{{Level: 2, MinPoints: 0}, {Level: 1, MinPoints: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := levels.NewCalculator(tt.table)
			assert.ErrorIs(t, err, bank.ErrInvalidArgument)
		})
	}
}
