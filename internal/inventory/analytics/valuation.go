package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// Valuation methods
const (
	ValuationFIFO            = "fifo"
	ValuationWeightedAverage = "weighted_average"
)

// ItemValuation is the valuator output for one item
type ItemValuation struct {
	ItemID          string          `json:"item_id"`
	Method          string          `json:"method"`
	Quantity        decimal.Decimal `json:"quantity"`
	Value           decimal.Decimal `json:"value"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost"`
}

// TenantValuation aggregates per-item valuations
type TenantValuation struct {
	Method     string           `json:"method"`
	Items      []*ItemValuation `json:"items"`
	TotalValue decimal.Decimal  `json:"total_value"`
}

// costLayer is one surviving FIFO layer
type costLayer struct {
	remaining decimal.Decimal
	unitCost  decimal.Decimal
}

// ValidValuationMethod reports whether m is a known valuation method
func ValidValuationMethod(m string) bool {
	return m == ValuationFIFO || m == ValuationWeightedAverage
}

// Valuate replays the item's ledger in (created_at, seq) order and returns
// the valuation under the given method. movements must be the item's full
// ledger, oldest first. Inbound entries without a unit cost are valued at
// zero and logged. A replay that drives quantity negative means the ledger
// and the cached item quantity have diverged and raises LedgerInconsistent.
func Valuate(log *logger.Logger, itemID, method string, movements []*repository.Movement) (*ItemValuation, error) {
	switch method {
	case ValuationFIFO:
		return valuateFIFO(log, itemID, movements)
	case ValuationWeightedAverage, "":
		return valuateWeightedAverage(log, itemID, movements)
	default:
		return nil, errors.BadRequest("unknown valuation method: " + method)
	}
}

func layerCost(log *logger.Logger, itemID string, m *repository.Movement) decimal.Decimal {
	if m.UnitCost != nil {
		return *m.UnitCost
	}
	log.Warn().
		Str("item_id", itemID).
		Str("movement_id", m.ID).
		Str("movement_type", m.MovementType).
		Msg("inbound movement has no unit cost, valued at zero")
	return decimal.Zero
}

func valuateFIFO(log *logger.Logger, itemID string, movements []*repository.Movement) (*ItemValuation, error) {
	var layers []costLayer

	for _, m := range movements {
		signed := m.SignedQuantity()

		if signed.IsPositive() {
			layers = append(layers, costLayer{remaining: m.Quantity, unitCost: layerCost(log, itemID, m)})
			continue
		}

		// Consume oldest layers first
		outstanding := signed.Neg()
		for outstanding.IsPositive() && len(layers) > 0 {
			head := &layers[0]
			if head.remaining.GreaterThan(outstanding) {
				head.remaining = head.remaining.Sub(outstanding)
				outstanding = decimal.Zero
				break
			}
			outstanding = outstanding.Sub(head.remaining)
			layers = layers[1:]
		}

		if outstanding.IsPositive() {
			return nil, errors.LedgerInconsistent(itemID)
		}
	}

	v := &ItemValuation{ItemID: itemID, Method: ValuationFIFO, Quantity: decimal.Zero, Value: decimal.Zero, AverageUnitCost: decimal.Zero}
	for _, l := range layers {
		v.Quantity = v.Quantity.Add(l.remaining)
		v.Value = v.Value.Add(l.remaining.Mul(l.unitCost))
	}
	if v.Quantity.IsPositive() {
		v.AverageUnitCost = v.Value.Div(v.Quantity)
	}

	return v, nil
}

func valuateWeightedAverage(log *logger.Logger, itemID string, movements []*repository.Movement) (*ItemValuation, error) {
	totalQty := decimal.Zero
	totalValue := decimal.Zero

	for _, m := range movements {
		signed := m.SignedQuantity()

		if signed.IsPositive() {
			totalQty = totalQty.Add(m.Quantity)
			totalValue = totalValue.Add(m.Quantity.Mul(layerCost(log, itemID, m)))
			continue
		}

		out := signed.Neg()
		if out.GreaterThan(totalQty) {
			return nil, errors.LedgerInconsistent(itemID)
		}

		if totalQty.IsPositive() {
			avgCost := totalValue.Div(totalQty)
			totalValue = totalValue.Sub(out.Mul(avgCost))
		}
		totalQty = totalQty.Sub(out)
		if totalQty.IsZero() {
			totalValue = decimal.Zero
		}
	}

	v := &ItemValuation{ItemID: itemID, Method: ValuationWeightedAverage, Quantity: totalQty, Value: totalValue, AverageUnitCost: decimal.Zero}
	if totalQty.IsPositive() {
		v.AverageUnitCost = totalValue.Div(totalQty)
	}

	return v, nil
}

// FIFOOutboundCost replays the ledger and returns the FIFO cost of the
// outbound movements whose created_at falls inside [from, to). Feeds the
// turnover ratio's COGS numerator.
func FIFOOutboundCost(log *logger.Logger, itemID string, movements []*repository.Movement, inPeriod func(m *repository.Movement) bool) (decimal.Decimal, error) {
	var layers []costLayer
	cogs := decimal.Zero

	for _, m := range movements {
		signed := m.SignedQuantity()

		if signed.IsPositive() {
			layers = append(layers, costLayer{remaining: m.Quantity, unitCost: layerCost(log, itemID, m)})
			continue
		}

		counted := inPeriod(m)
		outstanding := signed.Neg()
		for outstanding.IsPositive() && len(layers) > 0 {
			head := &layers[0]
			take := outstanding
			if head.remaining.LessThan(take) {
				take = head.remaining
			}
			if counted {
				cogs = cogs.Add(take.Mul(head.unitCost))
			}
			head.remaining = head.remaining.Sub(take)
			outstanding = outstanding.Sub(take)
			if head.remaining.IsZero() {
				layers = layers[1:]
			}
		}

		if outstanding.IsPositive() {
			return decimal.Zero, errors.LedgerInconsistent(itemID)
		}
	}

	return cogs, nil
}
