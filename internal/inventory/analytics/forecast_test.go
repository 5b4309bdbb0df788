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

func constantHistory(days int, value float64) []float64 {
	h := make([]float64, days)
	for i := range h {
		h[i] = value
	}
	return h
}

func TestForecast_MovingAverageConstantDemand(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	history := constantHistory(30, 4)

	series, err := analytics.Forecast("seed-A", history, asOf, 14, analytics.MethodMovingAverage, analytics.ForecastParams{Window: 7})
	require.NoError(t, err)

	assert.False(t, series.LowConfidence)
	assert.Len(t, series.Points, 14)
	assert.InDelta(t, 56, series.ExpectedTotal, 0.001)
	for _, p := range series.Points {
		assert.InDelta(t, 4, p.Quantity, 0.001)
	}

	// Constant history fits itself perfectly
	assert.InDelta(t, 0, series.Uncertainty, 0.2)

	// Forecast starts the day after asOf
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), series.Points[0].Date)
}

func TestForecast_FewerThanSevenNonZeroDaysIsLowConfidence(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	history := constantHistory(90, 0)
	history[10] = 5
	history[40] = 3

	series, err := analytics.Forecast("seed-A", history, asOf, 7, analytics.MethodMovingAverage, analytics.ForecastParams{})
	require.NoError(t, err)

	assert.True(t, series.LowConfidence)
	assert.Zero(t, series.ExpectedTotal)
	assert.Len(t, series.Points, 7)
	for _, p := range series.Points {
		assert.Zero(t, p.Quantity)
	}
}

func TestForecast_SeasonalNaiveRepeatsLastPeriod(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	// Weekly pattern: heavy usage on two days of each week
	history := make([]float64, 28)
	for week := 0; week < 4; week++ {
		history[week*7+0] = 10
		history[week*7+3] = 6
		history[week*7+1] = 1
		history[week*7+2] = 1
		history[week*7+4] = 1
		history[week*7+5] = 1
		history[week*7+6] = 1
	}

	series, err := analytics.Forecast("seed-A", history, asOf, 14, analytics.MethodSeasonalNaive, analytics.ForecastParams{PeriodDays: 7})
	require.NoError(t, err)

	assert.False(t, series.LowConfidence)
	assert.InDelta(t, 10, series.Points[0].Quantity, 0.001)
	assert.InDelta(t, 6, series.Points[3].Quantity, 0.001)
	assert.InDelta(t, 10, series.Points[7].Quantity, 0.001)
}

func TestForecast_ExponentialSmoothingTracksLevelShift(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	history := append(constantHistory(20, 2), constantHistory(20, 8)...)

	series, err := analytics.Forecast("seed-A", history, asOf, 7, analytics.MethodExponentialSmoothing, analytics.ForecastParams{Alpha: 0.5})
	require.NoError(t, err)

	// Level should have converged near the new regime
	assert.Greater(t, series.Points[0].Quantity, 7.5)
	assert.GreaterOrEqual(t, series.ExpectedTotal, 0.0)
}

func TestForecast_WeightedAverageFavorsRecentDays(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	// Old days at 2, recent days at 10
	history := append(constantHistory(10, 2), constantHistory(4, 10)...)

	series, err := analytics.Forecast("seed-A", history, asOf, 1, analytics.MethodWeightedAverage, analytics.ForecastParams{Window: 7})
	require.NoError(t, err)

	flat, err := analytics.Forecast("seed-A", history, asOf, 1, analytics.MethodMovingAverage, analytics.ForecastParams{Window: 7})
	require.NoError(t, err)

	assert.Greater(t, series.Points[0].Quantity, flat.Points[0].Quantity)
}

func TestForecast_NeverNegative(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	history := constantHistory(30, 3)

	for _, method := range []string{
		analytics.MethodMovingAverage, analytics.MethodWeightedAverage,
		analytics.MethodExponentialSmoothing, analytics.MethodSeasonalNaive,
	} {
		series, err := analytics.Forecast("seed-A", history, asOf, 30, method, analytics.ForecastParams{})
		require.NoError(t, err, method)
		assert.GreaterOrEqual(t, series.ExpectedTotal, 0.0, method)
		for _, p := range series.Points {
			assert.GreaterOrEqual(t, p.Quantity, 0.0, method)
		}
	}
}

func TestForecast_RejectsBadInput(t *testing.T) {
	asOf := time.Now().UTC()

	_, err := analytics.Forecast("seed-A", constantHistory(30, 1), asOf, 0, analytics.MethodMovingAverage, analytics.ForecastParams{})
	assert.Error(t, err)

	_, err = analytics.Forecast("seed-A", constantHistory(30, 1), asOf, 7, "oracle", analytics.ForecastParams{})
	assert.Error(t, err)
}

func TestDailyOutflow_BucketsAndZeroFills(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)

	movements := []*repository.Movement{
		{Direction: -1, Quantity: decimal.NewFromInt(5), CreatedAt: asOf.AddDate(0, 0, -2)},
		{Direction: -1, Quantity: decimal.NewFromInt(3), CreatedAt: asOf.AddDate(0, 0, -2).Add(time.Hour)},
		{Direction: 1, Quantity: decimal.NewFromInt(100), CreatedAt: asOf.AddDate(0, 0, -1)},
		{Direction: -1, Quantity: decimal.NewFromInt(2), CreatedAt: asOf},
		// Outside the lookback window
		{Direction: -1, Quantity: decimal.NewFromInt(9), CreatedAt: asOf.AddDate(0, 0, -20)},
	}

	buckets := analytics.DailyOutflow(movements, asOf, 10)
	require.Len(t, buckets, 10)

	assert.InDelta(t, 8, buckets[7], 0.001)
	assert.InDelta(t, 0, buckets[8], 0.001)
	assert.InDelta(t, 2, buckets[9], 0.001)

	var total float64
	for _, b := range buckets {
		total += b
	}
	assert.InDelta(t, 10, total, 0.001)
}
