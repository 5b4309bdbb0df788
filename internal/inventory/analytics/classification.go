package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// ABC class cut points as cumulative shares of annualized consumption value
var (
	abcCutA = decimal.NewFromFloat(0.80)
	abcCutB = decimal.NewFromFloat(0.95)
)

// ABCEntry is one classified item
type ABCEntry struct {
	ItemID                     string          `json:"item_id"`
	ItemName                   string          `json:"item_name"`
	Class                      string          `json:"class"`
	AnnualizedConsumptionValue decimal.Decimal `json:"annualized_consumption_value"`
	CumulativeShare            decimal.Decimal `json:"cumulative_share"`
}

// ABCInput carries what the classifier needs per item
type ABCInput struct {
	ItemID          string
	ItemName        string
	UnitCost        decimal.Decimal
	AvgDailyOutflow decimal.Decimal
}

// ClassifyABC segments items into A/B/C Pareto classes by annualized
// consumption value (avg daily outflow x 365 x unit cost). Items are sorted
// by value descending, ties broken by item id ascending. An item is classed
// by the cumulative share accrued before it: below 80% is A, below 95% is B,
// the rest C. The item crossing a cut therefore lands in the lower class, so
// class A always covers at least 80% of total value. Items with zero value
// are class C.
func ClassifyABC(inputs []ABCInput) []*ABCEntry {
	entries := make([]*ABCEntry, 0, len(inputs))
	total := decimal.Zero

	days := decimal.NewFromInt(365)
	for _, in := range inputs {
		value := in.AvgDailyOutflow.Mul(days).Mul(in.UnitCost)
		if value.IsNegative() {
			value = decimal.Zero
		}
		entries = append(entries, &ABCEntry{
			ItemID:                     in.ItemID,
			ItemName:                   in.ItemName,
			AnnualizedConsumptionValue: value,
		})
		total = total.Add(value)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].AnnualizedConsumptionValue.Equal(entries[j].AnnualizedConsumptionValue) {
			return entries[i].AnnualizedConsumptionValue.GreaterThan(entries[j].AnnualizedConsumptionValue)
		}
		return entries[i].ItemID < entries[j].ItemID
	})

	cumulative := decimal.Zero
	for _, e := range entries {
		if total.IsZero() || e.AnnualizedConsumptionValue.IsZero() {
			e.Class = "C"
			e.CumulativeShare = decimal.NewFromInt(1)
			continue
		}

		before := cumulative.Div(total)
		cumulative = cumulative.Add(e.AnnualizedConsumptionValue)
		e.CumulativeShare = cumulative.Div(total)

		switch {
		case before.LessThan(abcCutA):
			e.Class = "A"
		case before.LessThan(abcCutB):
			e.Class = "B"
		default:
			e.Class = "C"
		}
	}

	return entries
}

// TurnoverResult is the turnover ratio for one item over a period
type TurnoverResult struct {
	ItemID                string          `json:"item_id"`
	PeriodDays            int             `json:"period_days"`
	COGS                  decimal.Decimal `json:"cogs"`
	AverageInventoryValue decimal.Decimal `json:"average_inventory_value"`
	Ratio                 decimal.Decimal `json:"ratio"`
}

// Turnover computes COGS over the period divided by the average inventory
// value, both derived from a FIFO replay of the full ledger. The average
// inventory value is approximated as the mean of the value at period start
// and at period end. movements must be the full ledger, oldest first.
func Turnover(log *logger.Logger, itemID string, movements []*repository.Movement, from, to time.Time, periodDays int) (*TurnoverResult, error) {
	cogs, err := FIFOOutboundCost(log, itemID, movements, func(m *repository.Movement) bool {
		return !m.CreatedAt.Before(from) && m.CreatedAt.Before(to)
	})
	if err != nil {
		return nil, err
	}

	startValue, err := valueAt(log, itemID, movements, from)
	if err != nil {
		return nil, err
	}
	endValue, err := valueAt(log, itemID, movements, to)
	if err != nil {
		return nil, err
	}

	avg := startValue.Add(endValue).Div(decimal.NewFromInt(2))

	result := &TurnoverResult{
		ItemID:                itemID,
		PeriodDays:            periodDays,
		COGS:                  cogs,
		AverageInventoryValue: avg,
		Ratio:                 decimal.Zero,
	}
	if avg.IsPositive() {
		result.Ratio = cogs.Div(avg)
	}

	return result, nil
}

// valueAt replays the ledger up to (excluding) cutoff and returns the FIFO
// inventory value at that instant
func valueAt(log *logger.Logger, itemID string, movements []*repository.Movement, cutoff time.Time) (decimal.Decimal, error) {
	upTo := make([]*repository.Movement, 0, len(movements))
	for _, m := range movements {
		if m.CreatedAt.Before(cutoff) {
			upTo = append(upTo, m)
		}
	}

	v, err := valuateFIFO(log, itemID, upTo)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Value, nil
}

// StockAge flags slow-moving and dead items
type StockAge struct {
	ItemID         string          `json:"item_id"`
	ItemName       string          `json:"item_name"`
	Quantity       decimal.Decimal `json:"quantity"`
	TurnoverRatio  decimal.Decimal `json:"turnover_ratio"`
	LastOutboundAt *time.Time      `json:"last_outbound_at,omitempty"`
	SlowMoving     bool            `json:"slow_moving"`
	DeadStock      bool            `json:"dead_stock"`
}

// AgeThresholds configures slow/dead detection
type AgeThresholds struct {
	SlowTurnover decimal.Decimal // default 1.0
	SlowDays     int             // default 60
	DeadDays     int             // default 180
}

// DefaultAgeThresholds returns the documented detection defaults
func DefaultAgeThresholds() AgeThresholds {
	return AgeThresholds{SlowTurnover: decimal.NewFromInt(1), SlowDays: 60, DeadDays: 180}
}

// ClassifyAge marks an item slow-moving when its turnover is below the slow
// threshold and its last outbound movement is older than slowDays, and dead
// when it has had no outbound movement in deadDays.
func ClassifyAge(itemID, itemName string, quantity, turnover decimal.Decimal, lastOutbound *time.Time, now time.Time, t AgeThresholds) *StockAge {
	age := &StockAge{
		ItemID:         itemID,
		ItemName:       itemName,
		Quantity:       quantity,
		TurnoverRatio:  turnover,
		LastOutboundAt: lastOutbound,
	}

	slowCut := now.AddDate(0, 0, -t.SlowDays)
	deadCut := now.AddDate(0, 0, -t.DeadDays)

	if lastOutbound == nil {
		age.DeadStock = true
		age.SlowMoving = turnover.LessThan(t.SlowTurnover)
		return age
	}

	age.DeadStock = lastOutbound.Before(deadCut)
	age.SlowMoving = turnover.LessThan(t.SlowTurnover) && lastOutbound.Before(slowCut)

	return age
}

// LastOutboundAt scans the ledger for the most recent outbound movement
func LastOutboundAt(movements []*repository.Movement) *time.Time {
	var last *time.Time
	for _, m := range movements {
		if m.Direction < 0 {
			t := m.CreatedAt
			last = &t
		}
	}
	return last
}
