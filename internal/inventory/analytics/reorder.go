package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

// Urgency bands for reorder recommendations
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

// zScores maps service level percentages to one-sided normal z-scores.
// Levels between entries round down to the nearest listed level.
var zScores = []struct {
	level float64
	z     float64
}{
	{0.99, 2.33},
	{0.98, 2.05},
	{0.97, 1.88},
	{0.95, 1.65},
	{0.90, 1.28},
	{0.85, 1.04},
	{0.80, 0.84},
	{0.75, 0.67},
	{0.50, 0.00},
}

// ZScore returns the safety-stock z-score for a service level in (0, 1)
func ZScore(serviceLevel float64) float64 {
	for _, entry := range zScores {
		if serviceLevel >= entry.level {
			return entry.z
		}
	}
	return 0
}

// ReorderInput carries the demand statistics and item economics for one
// recommendation
type ReorderInput struct {
	ItemID             string
	CurrentQuantity    decimal.Decimal
	AvgDailyDemand     float64
	StddevDailyDemand  float64
	LeadTimeDays       int
	ServiceLevel       float64 // default 0.95
	MaxStock           *decimal.Decimal
	OrderCost          *decimal.Decimal
	HoldingCostPerUnit *decimal.Decimal
	AnnualDemand       float64 // avg daily demand x 365 unless overridden
}

// Recommendation is the reorder advisor output
type Recommendation struct {
	ItemID        string          `json:"item_id"`
	ReorderPoint  decimal.Decimal `json:"reorder_point"`
	SafetyStock   decimal.Decimal `json:"safety_stock"`
	OrderQuantity decimal.Decimal `json:"order_quantity"`
	Urgency       string          `json:"urgency"`
	ServiceLevel  float64         `json:"service_level"`
	LeadTimeDays  int             `json:"lead_time_days"`
}

// Recommend computes reorder point, order quantity and urgency.
//
// reorder_point = lead_time_days x avg_daily_demand + safety_stock, with
// safety_stock = z(service_level) x stddev_daily_demand x sqrt(lead_time).
// Order quantity is the economic order quantity when order and holding
// costs are known, otherwise the gap to max_stock, otherwise twice the
// reorder point.
func Recommend(in ReorderInput) *Recommendation {
	serviceLevel := in.ServiceLevel
	if serviceLevel <= 0 || serviceLevel >= 1 {
		serviceLevel = 0.95
	}
	leadDays := in.LeadTimeDays
	if leadDays <= 0 {
		leadDays = 1
	}

	z := ZScore(serviceLevel)
	safety := z * in.StddevDailyDemand * math.Sqrt(float64(leadDays))
	rop := float64(leadDays)*in.AvgDailyDemand + safety

	safetyStock := decimal.NewFromFloat(safety).Round(4)
	reorderPoint := decimal.NewFromFloat(rop).Round(4)

	rec := &Recommendation{
		ItemID:       in.ItemID,
		ReorderPoint: reorderPoint,
		SafetyStock:  safetyStock,
		ServiceLevel: serviceLevel,
		LeadTimeDays: leadDays,
	}

	annualDemand := in.AnnualDemand
	if annualDemand <= 0 {
		annualDemand = in.AvgDailyDemand * 365
	}

	switch {
	case in.OrderCost != nil && in.HoldingCostPerUnit != nil && in.HoldingCostPerUnit.IsPositive() && annualDemand > 0:
		orderCost, _ := in.OrderCost.Float64()
		holding, _ := in.HoldingCostPerUnit.Float64()
		eoq := math.Sqrt(2 * annualDemand * orderCost / holding)
		rec.OrderQuantity = decimal.NewFromFloat(eoq).Round(4)
	case in.MaxStock != nil && in.MaxStock.GreaterThan(in.CurrentQuantity):
		rec.OrderQuantity = in.MaxStock.Sub(in.CurrentQuantity)
	default:
		rec.OrderQuantity = reorderPoint.Mul(decimal.NewFromInt(2))
	}

	current := in.CurrentQuantity
	half := reorderPoint.Mul(decimal.NewFromFloat(0.5))
	buffer := reorderPoint.Mul(decimal.NewFromFloat(1.25))

	switch {
	case current.LessThan(half):
		rec.Urgency = UrgencyCritical
	case current.LessThan(reorderPoint):
		rec.Urgency = UrgencyHigh
	case current.LessThan(buffer):
		rec.Urgency = UrgencyMedium
	default:
		rec.Urgency = UrgencyLow
	}

	return rec
}
