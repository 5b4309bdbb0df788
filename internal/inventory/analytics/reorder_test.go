package analytics_test

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrostock/agrostock-backend/internal/inventory/analytics"
)

func TestRecommend_SafetyStockAndReorderPoint(t *testing.T) {
	rec := analytics.Recommend(analytics.ReorderInput{
		ItemID:            "seed-A",
		CurrentQuantity:   decimal.NewFromInt(50),
		AvgDailyDemand:    4,
		StddevDailyDemand: 1,
		LeadTimeDays:      7,
		ServiceLevel:      0.95,
	})

	// safety stock = 1.65 x 1 x sqrt(7) ~ 4.37, reorder point ~ 32.37
	safety, _ := rec.SafetyStock.Float64()
	assert.InDelta(t, 1.65*math.Sqrt(7), safety, 0.01)

	rop, _ := rec.ReorderPoint.Float64()
	assert.InDelta(t, 28+1.65*math.Sqrt(7), rop, 0.01)
}

func TestRecommend_UrgencyBands(t *testing.T) {
	base := analytics.ReorderInput{
		ItemID:            "seed-A",
		AvgDailyDemand:    4,
		StddevDailyDemand: 0,
		LeadTimeDays:      10, // reorder point = 40 exactly
		ServiceLevel:      0.95,
	}

	cases := []struct {
		quantity int64
		urgency  string
	}{
		{10, analytics.UrgencyCritical}, // < 20
		{19, analytics.UrgencyCritical},
		{20, analytics.UrgencyHigh}, // < 40
		{39, analytics.UrgencyHigh},
		{40, analytics.UrgencyMedium}, // < 50
		{49, analytics.UrgencyMedium},
		{50, analytics.UrgencyLow},
		{200, analytics.UrgencyLow},
	}

	for _, tc := range cases {
		in := base
		in.CurrentQuantity = decimal.NewFromInt(tc.quantity)
		rec := analytics.Recommend(in)
		assert.Equal(t, tc.urgency, rec.Urgency, "quantity %d", tc.quantity)
	}
}

func TestRecommend_EconomicOrderQuantity(t *testing.T) {
	orderCost := decimal.NewFromInt(50)
	holding := decimal.NewFromInt(2)

	rec := analytics.Recommend(analytics.ReorderInput{
		ItemID:             "seed-A",
		CurrentQuantity:    decimal.NewFromInt(100),
		AvgDailyDemand:     4,
		StddevDailyDemand:  1,
		LeadTimeDays:       7,
		OrderCost:          &orderCost,
		HoldingCostPerUnit: &holding,
	})

	annual := 4.0 * 365
	expected := math.Sqrt(2 * annual * 50 / 2)
	got, _ := rec.OrderQuantity.Float64()
	assert.InDelta(t, expected, got, 0.01)
}

func TestRecommend_FallbackOrderQuantities(t *testing.T) {
	maxStock := decimal.NewFromInt(500)

	// Gap to max stock when costs are unknown
	rec := analytics.Recommend(analytics.ReorderInput{
		ItemID:          "seed-A",
		CurrentQuantity: decimal.NewFromInt(120),
		AvgDailyDemand:  4,
		LeadTimeDays:    7,
		MaxStock:        &maxStock,
	})
	assert.True(t, rec.OrderQuantity.Equal(decimal.NewFromInt(380)), "got %s", rec.OrderQuantity)

	// Twice the reorder point when nothing else is known
	rec = analytics.Recommend(analytics.ReorderInput{
		ItemID:          "seed-A",
		CurrentQuantity: decimal.NewFromInt(120),
		AvgDailyDemand:  4,
		LeadTimeDays:    10,
	})
	assert.True(t, rec.OrderQuantity.Equal(decimal.NewFromInt(80)), "got %s", rec.OrderQuantity)
}

func TestRecommend_DefaultsApplied(t *testing.T) {
	rec := analytics.Recommend(analytics.ReorderInput{
		ItemID:          "seed-A",
		CurrentQuantity: decimal.NewFromInt(10),
		AvgDailyDemand:  2,
	})

	require.NotNil(t, rec)
	assert.Equal(t, 0.95, rec.ServiceLevel)
	assert.Equal(t, 1, rec.LeadTimeDays)
}

func TestZScore_ServiceLevels(t *testing.T) {
	assert.InDelta(t, 1.65, analytics.ZScore(0.95), 0.001)
	assert.InDelta(t, 2.33, analytics.ZScore(0.99), 0.001)
	assert.InDelta(t, 1.28, analytics.ZScore(0.90), 0.001)
	// Between listed levels rounds down
	assert.InDelta(t, 1.65, analytics.ZScore(0.96), 0.001)
	assert.InDelta(t, 0, analytics.ZScore(0.10), 0.001)
}
