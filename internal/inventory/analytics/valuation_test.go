package analytics_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/agrostock/agrostock-backend/internal/inventory/analytics"
	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	apperrors "github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

var testLog = logger.New("analytics-test", "test")

func mv(t *testing.T, movementType string, qty float64, cost *float64, at time.Time, seq int64) *repository.Movement {
	t.Helper()

	direction := repository.MovementDirection(movementType)
	require.NotZero(t, direction, "test movements must have a fixed direction")

	m := &repository.Movement{
		ID:           "m-" + at.Format("150405") + "-" + string(rune('a'+seq%26)),
		ItemID:       "seed-A",
		MovementType: movementType,
		Direction:    direction,
		Quantity:     decimal.NewFromFloat(qty),
		Seq:          seq,
		CreatedAt:    at,
	}
	if cost != nil {
		c := decimal.NewFromFloat(*cost)
		m.UnitCost = &c
	}
	return m
}

func costOf(v float64) *float64 { return &v }

func TestValuate_SinglePurchaseWithUsage(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	movements := []*repository.Movement{
		mv(t, repository.MovementPurchase, 100, costOf(5), base, 1),
		mv(t, repository.MovementUsage, 30, nil, base.Add(time.Hour), 2),
		mv(t, repository.MovementUsage, 30, nil, base.Add(2*time.Hour), 3),
	}

	fifo, err := analytics.Valuate(testLog, "seed-A", analytics.ValuationFIFO, movements)
	require.NoError(t, err)
	assert.True(t, fifo.Quantity.Equal(decimal.NewFromInt(40)), "quantity %s", fifo.Quantity)
	assert.True(t, fifo.Value.Equal(decimal.NewFromInt(200)), "value %s", fifo.Value)

	wa, err := analytics.Valuate(testLog, "seed-A", analytics.ValuationWeightedAverage, movements)
	require.NoError(t, err)
	assert.True(t, wa.Quantity.Equal(decimal.NewFromInt(40)))
	assert.True(t, wa.AverageUnitCost.Equal(decimal.NewFromInt(5)), "avg cost %s", wa.AverageUnitCost)
	assert.True(t, wa.Value.Equal(decimal.NewFromInt(200)))
}

func TestValuate_FIFOLayers(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	movements := []*repository.Movement{
		mv(t, repository.MovementPurchase, 100, costOf(5), base, 1),
		mv(t, repository.MovementPurchase, 50, costOf(7), base.Add(time.Hour), 2),
		mv(t, repository.MovementUsage, 120, nil, base.Add(2*time.Hour), 3),
	}

	// 100@5 fully consumed, 20 taken from the 50@7 layer: 30@7 remain
	fifo, err := analytics.Valuate(testLog, "seed-A", analytics.ValuationFIFO, movements)
	require.NoError(t, err)
	assert.True(t, fifo.Quantity.Equal(decimal.NewFromInt(30)))
	assert.True(t, fifo.Value.Equal(decimal.NewFromInt(210)), "value %s", fifo.Value)
	assert.True(t, fifo.AverageUnitCost.Equal(decimal.NewFromInt(7)))

	// Weighted average: 150 units worth 850, usage of 120 at avg cost leaves
	// value 850 - 120*(850/150) = 170
	wa, err := analytics.Valuate(testLog, "seed-A", analytics.ValuationWeightedAverage, movements)
	require.NoError(t, err)
	assert.True(t, wa.Quantity.Equal(decimal.NewFromInt(30)))
	assert.True(t, wa.Value.Round(4).Equal(decimal.NewFromInt(170)), "value %s", wa.Value)
}

func TestValuate_InboundWithoutCostValuedAtZero(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	movements := []*repository.Movement{
		mv(t, repository.MovementPurchase, 10, nil, base, 1),
		mv(t, repository.MovementPurchase, 10, costOf(4), base.Add(time.Hour), 2),
	}

	fifo, err := analytics.Valuate(testLog, "seed-A", analytics.ValuationFIFO, movements)
	require.NoError(t, err)
	assert.True(t, fifo.Quantity.Equal(decimal.NewFromInt(20)))
	assert.True(t, fifo.Value.Equal(decimal.NewFromInt(40)))
}

func TestValuate_NegativeReplayRaisesLedgerInconsistent(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	movements := []*repository.Movement{
		mv(t, repository.MovementPurchase, 10, costOf(5), base, 1),
		mv(t, repository.MovementUsage, 25, nil, base.Add(time.Hour), 2),
	}

	for _, method := range []string{analytics.ValuationFIFO, analytics.ValuationWeightedAverage} {
		_, err := analytics.Valuate(testLog, "seed-A", method, movements)
		require.Error(t, err, method)

		var appErr *apperrors.AppError
		require.True(t, apperrors.As(err, &appErr))
		assert.Equal(t, "LEDGER_INCONSISTENT", appErr.Code)
	}
}

func TestValuate_UnknownMethod(t *testing.T) {
	_, err := analytics.Valuate(testLog, "seed-A", "lifo", nil)
	assert.Error(t, err)
}

func TestValuate_EmptyLedger(t *testing.T) {
	fifo, err := analytics.Valuate(testLog, "seed-A", analytics.ValuationFIFO, nil)
	require.NoError(t, err)
	assert.True(t, fifo.Quantity.IsZero())
	assert.True(t, fifo.Value.IsZero())
}

// FIFO and weighted average must always agree on quantity; they agree on
// value when every inbound movement carries the same unit cost.
func TestValuate_MethodsAgree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		uniformCost := rapid.Bool().Draw(t, "uniform_cost")
		n := rapid.IntRange(1, 30).Draw(t, "n")

		var movements []*repository.Movement
		onHand := decimal.Zero

		for i := 0; i < n; i++ {
			at := base.Add(time.Duration(i) * time.Hour)
			inbound := onHand.IsZero() || rapid.Bool().Draw(t, "inbound")

			if inbound {
				qty := decimal.NewFromInt(rapid.Int64Range(1, 100).Draw(t, "in_qty"))
				cost := decimal.NewFromInt(5)
				if !uniformCost {
					cost = decimal.NewFromInt(rapid.Int64Range(1, 20).Draw(t, "cost"))
				}
				movements = append(movements, &repository.Movement{
					ID: "p", ItemID: "x", MovementType: repository.MovementPurchase,
					Direction: 1, Quantity: qty, UnitCost: &cost,
					Seq: int64(i), CreatedAt: at,
				})
				onHand = onHand.Add(qty)
				continue
			}

			maxOut := onHand.IntPart()
			qty := decimal.NewFromInt(rapid.Int64Range(1, maxOut).Draw(t, "out_qty"))
			movements = append(movements, &repository.Movement{
				ID: "u", ItemID: "x", MovementType: repository.MovementUsage,
				Direction: -1, Quantity: qty,
				Seq: int64(i), CreatedAt: at,
			})
			onHand = onHand.Sub(qty)
		}

		fifo, err := analytics.Valuate(testLog, "x", analytics.ValuationFIFO, movements)
		require.NoError(t, err)
		wa, err := analytics.Valuate(testLog, "x", analytics.ValuationWeightedAverage, movements)
		require.NoError(t, err)

		assert.True(t, fifo.Quantity.Equal(wa.Quantity),
			"quantities diverged: fifo=%s wa=%s", fifo.Quantity, wa.Quantity)
		assert.True(t, fifo.Quantity.Equal(onHand))

		if uniformCost {
			assert.True(t, fifo.Value.Sub(wa.Value).Abs().LessThan(decimal.NewFromFloat(0.0001)),
				"values diverged under uniform cost: fifo=%s wa=%s", fifo.Value, wa.Value)
		}
	})
}
