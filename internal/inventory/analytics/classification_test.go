package analytics_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrostock/agrostock-backend/internal/inventory/analytics"
	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
)

func abcInput(id string, dailyOutflow, unitCost float64) analytics.ABCInput {
	return analytics.ABCInput{
		ItemID:          id,
		ItemName:        id,
		UnitCost:        decimal.NewFromFloat(unitCost),
		AvgDailyOutflow: decimal.NewFromFloat(dailyOutflow),
	}
}

func TestClassifyABC_ParetoCuts(t *testing.T) {
	// Annualized values: a=36500, b=7300, c=3650, d=365 (total 47815)
	entries := analytics.ClassifyABC([]analytics.ABCInput{
		abcInput("d", 0.1, 10),
		abcInput("a", 10, 10),
		abcInput("c", 1, 10),
		abcInput("b", 2, 10),
	})
	require.Len(t, entries, 4)

	// Sorted by value descending; classed by the share accrued before each item
	assert.Equal(t, "a", entries[0].ItemID)
	assert.Equal(t, "A", entries[0].Class) // before 0%
	assert.Equal(t, "b", entries[1].ItemID)
	assert.Equal(t, "A", entries[1].Class) // before 76.3%, crosses the 80% cut
	assert.Equal(t, "c", entries[2].ItemID)
	assert.Equal(t, "B", entries[2].Class) // before 91.6%
	assert.Equal(t, "d", entries[3].ItemID)
	assert.Equal(t, "C", entries[3].Class) // before 99.2%
}

func TestClassifyABC_ClassACoversEightyPercent(t *testing.T) {
	// The item crossing the 80% cut belongs to A, so A's cumulative share
	// never ends below 80%.
	entries := analytics.ClassifyABC([]analytics.ABCInput{
		abcInput("big", 7, 10),
		abcInput("small", 3, 10),
	})
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Class)
	assert.Equal(t, "A", entries[1].Class)

	lastA := decimal.Zero
	for _, e := range entries {
		if e.Class == "A" {
			lastA = e.CumulativeShare
		}
	}
	assert.True(t, lastA.GreaterThanOrEqual(decimal.NewFromFloat(0.80)),
		"class A cumulative share %s should reach 80%%", lastA)
}

func TestClassifyABC_TiesBrokenByItemID(t *testing.T) {
	entries := analytics.ClassifyABC([]analytics.ABCInput{
		abcInput("z", 5, 10),
		abcInput("a", 5, 10),
		abcInput("m", 5, 10),
	})
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].ItemID)
	assert.Equal(t, "m", entries[1].ItemID)
	assert.Equal(t, "z", entries[2].ItemID)
}

func TestClassifyABC_SingleItemIsClassA(t *testing.T) {
	entries := analytics.ClassifyABC([]analytics.ABCInput{abcInput("only", 3, 7)})
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].Class)
	assert.True(t, entries[0].CumulativeShare.Equal(decimal.NewFromInt(1)))
}

func TestClassifyABC_ZeroConsumptionIsClassC(t *testing.T) {
	entries := analytics.ClassifyABC([]analytics.ABCInput{
		abcInput("active", 4, 10),
		abcInput("idle", 0, 10),
	})
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Class)
	assert.Equal(t, "idle", entries[1].ItemID)
	assert.Equal(t, "C", entries[1].Class)
}

func TestClassifyABC_SharesSumToWhole(t *testing.T) {
	entries := analytics.ClassifyABC([]analytics.ABCInput{
		abcInput("a", 7, 3),
		abcInput("b", 2, 11),
		abcInput("c", 5, 2),
	})

	last := entries[len(entries)-1]
	assert.True(t, last.CumulativeShare.Equal(decimal.NewFromInt(1)),
		"cumulative share of last item should be 1, got %s", last.CumulativeShare)
}

func TestTurnover_COGSOverAverageValue(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	from := base.AddDate(0, 0, 10)
	to := base.AddDate(0, 0, 40)

	movements := []*repository.Movement{
		mv(t, repository.MovementPurchase, 100, costOf(2), base, 1),
		mv(t, repository.MovementUsage, 50, nil, base.AddDate(0, 0, 20), 2),
	}

	result, err := analytics.Turnover(testLog, "seed-A", movements, from, to, 30)
	require.NoError(t, err)

	// COGS = 50 x 2 = 100; value at start 200, at end 100, avg 150
	assert.True(t, result.COGS.Equal(decimal.NewFromInt(100)), "cogs %s", result.COGS)
	assert.True(t, result.AverageInventoryValue.Equal(decimal.NewFromInt(150)))
	expected := decimal.NewFromInt(100).Div(decimal.NewFromInt(150))
	assert.True(t, result.Ratio.Sub(expected).Abs().LessThan(decimal.NewFromFloat(0.0001)))
}

func TestTurnover_OutboundBeforePeriodNotCounted(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	from := base.AddDate(0, 0, 30)
	to := base.AddDate(0, 0, 60)

	movements := []*repository.Movement{
		mv(t, repository.MovementPurchase, 100, costOf(2), base, 1),
		mv(t, repository.MovementUsage, 40, nil, base.AddDate(0, 0, 5), 2),
	}

	result, err := analytics.Turnover(testLog, "seed-A", movements, from, to, 30)
	require.NoError(t, err)
	assert.True(t, result.COGS.IsZero())
	assert.True(t, result.Ratio.IsZero())
}

func TestClassifyAge_SlowAndDead(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	thresholds := analytics.DefaultAgeThresholds()
	qty := decimal.NewFromInt(50)

	recent := now.AddDate(0, 0, -10)
	stale := now.AddDate(0, 0, -90)
	ancient := now.AddDate(0, 0, -200)

	fast := analytics.ClassifyAge("i1", "i1", qty, decimal.NewFromInt(4), &recent, now, thresholds)
	assert.False(t, fast.SlowMoving)
	assert.False(t, fast.DeadStock)

	// Low turnover but recently moved: not yet slow
	lowRecent := analytics.ClassifyAge("i2", "i2", qty, decimal.NewFromFloat(0.5), &recent, now, thresholds)
	assert.False(t, lowRecent.SlowMoving)

	slow := analytics.ClassifyAge("i3", "i3", qty, decimal.NewFromFloat(0.5), &stale, now, thresholds)
	assert.True(t, slow.SlowMoving)
	assert.False(t, slow.DeadStock)

	dead := analytics.ClassifyAge("i4", "i4", qty, decimal.Zero, &ancient, now, thresholds)
	assert.True(t, dead.DeadStock)

	neverMoved := analytics.ClassifyAge("i5", "i5", qty, decimal.Zero, nil, now, thresholds)
	assert.True(t, neverMoved.DeadStock)
}

func TestLastOutboundAt(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, analytics.LastOutboundAt(nil))

	movements := []*repository.Movement{
		mv(t, repository.MovementPurchase, 10, costOf(1), base, 1),
		mv(t, repository.MovementUsage, 2, nil, base.AddDate(0, 0, 3), 2),
		mv(t, repository.MovementUsage, 1, nil, base.AddDate(0, 0, 8), 3),
		mv(t, repository.MovementPurchase, 5, costOf(1), base.AddDate(0, 0, 9), 4),
	}

	last := analytics.LastOutboundAt(movements)
	require.NotNil(t, last)
	assert.Equal(t, base.AddDate(0, 0, 8), *last)
}
