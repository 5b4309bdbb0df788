// Package analytics implements the read-only inventory computations:
// consumption forecasting, FIFO and weighted-average valuation, ABC
// classification, turnover indicators and reorder recommendations. All
// functions are pure over a ledger snapshot; callers load movements and
// items first.
package analytics

import (
	"math"
	"time"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
)

// Forecast methods
const (
	MethodMovingAverage        = "moving_average"
	MethodWeightedAverage      = "weighted_average"
	MethodExponentialSmoothing = "exponential_smoothing"
	MethodSeasonalNaive        = "seasonal_naive"
)

// ForecastParams tunes the selected method. Zero values fall back to the
// documented defaults.
type ForecastParams struct {
	Window     int     `json:"window,omitempty"`      // moving_average, default 7
	Alpha      float64 `json:"alpha,omitempty"`       // exponential_smoothing, default 0.3
	PeriodDays int     `json:"period_days,omitempty"` // seasonal_naive, default 7
}

// ForecastPoint is one predicted day of demand
type ForecastPoint struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// DailyDemandSeries is the forecaster output: per-day point forecasts plus
// aggregate and uncertainty metadata.
type DailyDemandSeries struct {
	ItemID        string          `json:"item_id"`
	Method        string          `json:"method"`
	Params        ForecastParams  `json:"params"`
	HorizonDays   int             `json:"horizon_days"`
	Points        []ForecastPoint `json:"points"`
	ExpectedTotal float64         `json:"expected_total"`
	Uncertainty   float64         `json:"uncertainty"`
	LowConfidence bool            `json:"low_confidence"`
	LookbackDays  int             `json:"lookback_days"`
	NonZeroDays   int             `json:"non_zero_days"`
}

// DailyOutflow buckets outbound movements by UTC day over the lookback
// window ending at asOf, zero-filling days without outflow. The returned
// slice is ordered oldest first and always has lookbackDays entries.
func DailyOutflow(movements []*repository.Movement, asOf time.Time, lookbackDays int) []float64 {
	start := asOf.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -(lookbackDays - 1))
	buckets := make([]float64, lookbackDays)

	for _, m := range movements {
		if m.Direction >= 0 {
			continue
		}
		day := int(m.CreatedAt.UTC().Truncate(24 * time.Hour).Sub(start).Hours() / 24)
		if day < 0 || day >= lookbackDays {
			continue
		}
		q, _ := m.Quantity.Float64()
		buckets[day] += q
	}

	return buckets
}

// Forecast produces a daily demand series for the item from its bucketed
// outflow history. history is ordered oldest first, one value per day,
// ending the day before the forecast starts.
func Forecast(itemID string, history []float64, asOf time.Time, horizonDays int, method string, params ForecastParams) (*DailyDemandSeries, error) {
	if horizonDays <= 0 {
		return nil, errors.BadRequest("horizon_days must be positive")
	}

	switch method {
	case MethodMovingAverage, MethodWeightedAverage, MethodExponentialSmoothing, MethodSeasonalNaive:
	case "":
		method = MethodMovingAverage
	default:
		return nil, errors.BadRequest("unknown forecast method: " + method)
	}

	series := &DailyDemandSeries{
		ItemID:       itemID,
		Method:       method,
		Params:       params,
		HorizonDays:  horizonDays,
		LookbackDays: len(history),
	}

	for _, v := range history {
		if v > 0 {
			series.NonZeroDays++
		}
	}

	startDay := asOf.UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)

	// Too little signal to extrapolate from
	if series.NonZeroDays < 7 {
		series.LowConfidence = true
		series.Points = make([]ForecastPoint, horizonDays)
		for i := range series.Points {
			series.Points[i] = ForecastPoint{Date: startDay.AddDate(0, 0, i)}
		}
		return series, nil
	}

	var predict func(day int) float64
	var fitted []float64

	switch method {
	case MethodMovingAverage:
		window := params.Window
		if window <= 0 {
			window = 7
		}
		if window > len(history) {
			window = len(history)
		}
		level := mean(history[len(history)-window:])
		predict = func(int) float64 { return level }
		fitted = movingAverageFit(history, window)

	case MethodWeightedAverage:
		window := params.Window
		if window <= 0 {
			window = 7
		}
		if window > len(history) {
			window = len(history)
		}
		level := linearlyWeightedMean(history[len(history)-window:])
		predict = func(int) float64 { return level }
		fitted = weightedAverageFit(history, window)

	case MethodExponentialSmoothing:
		alpha := params.Alpha
		if alpha <= 0 || alpha > 1 {
			alpha = 0.3
		}
		level := history[0]
		fitted = make([]float64, len(history))
		for i, v := range history {
			fitted[i] = level
			level = alpha*v + (1-alpha)*level
		}
		predict = func(int) float64 { return level }

	case MethodSeasonalNaive:
		period := params.PeriodDays
		if period <= 0 {
			period = 7
		}
		if period > len(history) {
			period = len(history)
		}
		lastPeriod := history[len(history)-period:]
		predict = func(day int) float64 { return lastPeriod[day%period] }
		fitted = seasonalNaiveFit(history, period)
	}

	series.Points = make([]ForecastPoint, horizonDays)
	for i := 0; i < horizonDays; i++ {
		q := predict(i)
		if q < 0 {
			q = 0
		}
		series.Points[i] = ForecastPoint{Date: startDay.AddDate(0, 0, i), Quantity: q}
		series.ExpectedTotal += q
	}

	series.Uncertainty = residualStddev(history, fitted)

	return series, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// linearlyWeightedMean weights newer values more, weight i+1 for the i-th
// oldest value
func linearlyWeightedMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum, weightSum float64
	for i, v := range values {
		w := float64(i + 1)
		sum += w * v
		weightSum += w
	}
	return sum / weightSum
}

// movingAverageFit produces one-step-ahead in-sample predictions used only
// for the residual uncertainty estimate
func movingAverageFit(history []float64, window int) []float64 {
	fitted := make([]float64, len(history))
	for i := range history {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		if i == 0 {
			fitted[i] = history[0]
			continue
		}
		fitted[i] = mean(history[lo:i])
	}
	return fitted
}

func weightedAverageFit(history []float64, window int) []float64 {
	fitted := make([]float64, len(history))
	for i := range history {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		if i == 0 {
			fitted[i] = history[0]
			continue
		}
		fitted[i] = linearlyWeightedMean(history[lo:i])
	}
	return fitted
}

func seasonalNaiveFit(history []float64, period int) []float64 {
	fitted := make([]float64, len(history))
	for i := range history {
		if i < period {
			fitted[i] = history[i]
			continue
		}
		fitted[i] = history[i-period]
	}
	return fitted
}

func residualStddev(actual, fitted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(fitted) {
		return 0
	}
	var sumSq float64
	for i := range actual {
		d := actual[i] - fitted[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(actual)))
}

// StddevDailyDemand is the plain standard deviation of the daily outflow
// history, used by the reorder advisor's safety stock formula
func StddevDailyDemand(history []float64) float64 {
	if len(history) < 2 {
		return 0
	}
	m := mean(history)
	var sumSq float64
	for _, v := range history {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(history)-1))
}

// AvgDailyDemand is the mean of the daily outflow history
func AvgDailyDemand(history []float64) float64 {
	return mean(history)
}
