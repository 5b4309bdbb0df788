package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/agrostock/agrostock-backend/internal/inventory/analytics"
	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/config"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// analyticsItemStore is the slice of ItemRepository the analytics service needs
type analyticsItemStore interface {
	GetByID(ctx context.Context, id string) (*repository.Item, error)
	GetAllActive(ctx context.Context) ([]*repository.Item, error)
	List(ctx context.Context, page, perPage int, filter repository.ItemFilter) ([]*repository.Item, int64, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

// analyticsMovementStore reads ledgers for replay-based analytics
type analyticsMovementStore interface {
	ListByItem(ctx context.Context, itemID string, filter repository.MovementFilter) ([]*repository.Movement, error)
	OutboundSince(ctx context.Context, itemID string, since time.Time) ([]*repository.Movement, error)
}

// analyticsAlertStore provides alert counters for the dashboard
type analyticsAlertStore interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountOpenByPriority(ctx context.Context) (map[string]int64, error)
}

// AnalyticsService runs the forecaster, valuator, classifier and reorder
// advisor over the movement ledger. Tenant-wide runs fan out over a bounded
// worker pool; items whose ledger replay fails are quarantined and skipped
// until reconciled.
type AnalyticsService struct {
	items      analyticsItemStore
	movements  analyticsMovementStore
	alerts     analyticsAlertStore
	settings   settingsStore
	quarantine *Quarantine
	cfg        config.AnalyticsConfig
	logger     *logger.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	items analyticsItemStore,
	movements analyticsMovementStore,
	alerts analyticsAlertStore,
	settings settingsStore,
	quarantine *Quarantine,
	cfg config.AnalyticsConfig,
	log *logger.Logger,
) *AnalyticsService {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 90
	}
	if cfg.WorkerLimit <= 0 {
		cfg.WorkerLimit = 8
	}
	return &AnalyticsService{
		items:      items,
		movements:  movements,
		alerts:     alerts,
		settings:   settings,
		quarantine: quarantine,
		cfg:        cfg,
		logger:     log,
	}
}

// lookback returns the demand history window, ending now
func (s *AnalyticsService) lookback(now time.Time) time.Time {
	return now.AddDate(0, 0, -s.cfg.LookbackDays)
}

// Forecast predicts the item's daily demand over the horizon from its
// outbound history
func (s *AnalyticsService) Forecast(ctx context.Context, itemID string, horizonDays int, method string, params analytics.ForecastParams) (*analytics.DailyDemandSeries, error) {
	if horizonDays < 1 || horizonDays > 365 {
		return nil, errors.BadRequest("horizon must be between 1 and 365 days")
	}

	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	outbound, err := s.movements.OutboundSince(ctx, itemID, s.lookback(now))
	if err != nil {
		return nil, err
	}

	history := analytics.DailyOutflow(outbound, now, s.cfg.LookbackDays)
	return analytics.Forecast(itemID, history, now, horizonDays, method, params)
}

// Valuation values one item under the given method by replaying its ledger
func (s *AnalyticsService) Valuation(ctx context.Context, itemID, method string) (*analytics.ItemValuation, error) {
	if !analytics.ValidValuationMethod(method) {
		return nil, errors.BadRequest("unknown valuation method: " + method)
	}

	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return nil, err
	}

	ledger, err := s.movements.ListByItem(ctx, itemID, repository.MovementFilter{})
	if err != nil {
		return nil, err
	}

	v, err := analytics.Valuate(s.logger, itemID, method, ledger)
	if err != nil {
		s.quarantineOnInconsistency(ctx, itemID, err)
		return nil, err
	}
	return v, nil
}

// TenantValuation values every active item and sums the results. Items in
// quarantine or whose replay fails are skipped and logged rather than
// failing the whole run.
func (s *AnalyticsService) TenantValuation(ctx context.Context, method string) (*analytics.TenantValuation, error) {
	if !analytics.ValidValuationMethod(method) {
		return nil, errors.BadRequest("unknown valuation method: " + method)
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.activeItems(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	results := make([]*analytics.ItemValuation, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WorkerLimit)

	for i, item := range items {
		g.Go(func() error {
			ledger, err := s.movements.ListByItem(gctx, item.ID, repository.MovementFilter{})
			if err != nil {
				return err
			}
			v, err := analytics.Valuate(s.logger, item.ID, method, ledger)
			if err != nil {
				s.quarantineOnInconsistency(gctx, item.ID, err)
				return nil
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &analytics.TenantValuation{Method: method, TotalValue: decimal.Zero}
	for _, v := range results {
		if v == nil {
			continue
		}
		out.Items = append(out.Items, v)
		out.TotalValue = out.TotalValue.Add(v.Value)
	}
	return out, nil
}

// ABC classifies every active item by annualized consumption value
func (s *AnalyticsService) ABC(ctx context.Context) ([]*analytics.ABCEntry, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.activeItems(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inputs := make([]analytics.ABCInput, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WorkerLimit)

	for i, item := range items {
		g.Go(func() error {
			outbound, err := s.movements.OutboundSince(gctx, item.ID, s.lookback(now))
			if err != nil {
				return err
			}
			history := analytics.DailyOutflow(outbound, now, s.cfg.LookbackDays)
			inputs[i] = analytics.ABCInput{
				ItemID:          item.ID,
				ItemName:        item.Name,
				UnitCost:        item.UnitCost,
				AvgDailyOutflow: decimal.NewFromFloat(analytics.AvgDailyDemand(history)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return analytics.ClassifyABC(inputs), nil
}

// Turnover computes the item's inventory turnover ratio over the trailing
// period
func (s *AnalyticsService) Turnover(ctx context.Context, itemID string, periodDays int) (*analytics.TurnoverResult, error) {
	if periodDays < 1 || periodDays > 730 {
		return nil, errors.BadRequest("period must be between 1 and 730 days")
	}

	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return nil, err
	}

	ledger, err := s.movements.ListByItem(ctx, itemID, repository.MovementFilter{})
	if err != nil {
		return nil, err
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -periodDays)

	result, err := analytics.Turnover(s.logger, itemID, ledger, from, to, periodDays)
	if err != nil {
		s.quarantineOnInconsistency(ctx, itemID, err)
		return nil, err
	}
	return result, nil
}

// StockAges flags slow-moving and dead items using the tenant's configured
// day thresholds
func (s *AnalyticsService) StockAges(ctx context.Context) ([]*analytics.StockAge, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	thresholds := analytics.DefaultAgeThresholds()
	if settings.SlowMovingDays > 0 {
		thresholds.SlowDays = settings.SlowMovingDays
	}
	if settings.DeadStockDays > 0 {
		thresholds.DeadDays = settings.DeadStockDays
	}

	items, err := s.activeItems(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -thresholds.DeadDays)

	ages := make([]*analytics.StockAge, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WorkerLimit)

	for i, item := range items {
		g.Go(func() error {
			ledger, err := s.movements.ListByItem(gctx, item.ID, repository.MovementFilter{})
			if err != nil {
				return err
			}
			turnover, err := analytics.Turnover(s.logger, item.ID, ledger, from, now, thresholds.DeadDays)
			if err != nil {
				s.quarantineOnInconsistency(gctx, item.ID, err)
				return nil
			}
			ages[i] = analytics.ClassifyAge(item.ID, item.Name, item.Quantity, turnover.Ratio, analytics.LastOutboundAt(ledger), now, thresholds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*analytics.StockAge, 0, len(ages))
	for _, a := range ages {
		if a != nil && (a.SlowMoving || a.DeadStock) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

// Reorder recommends a reorder point and order quantity for the item from
// its demand history and economics
func (s *AnalyticsService) Reorder(ctx context.Context, itemID string, serviceLevel float64) (*analytics.Recommendation, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	outbound, err := s.movements.OutboundSince(ctx, itemID, s.lookback(now))
	if err != nil {
		return nil, err
	}

	history := analytics.DailyOutflow(outbound, now, s.cfg.LookbackDays)

	in := analytics.ReorderInput{
		ItemID:             itemID,
		CurrentQuantity:    item.Quantity,
		AvgDailyDemand:     analytics.AvgDailyDemand(history),
		StddevDailyDemand:  analytics.StddevDailyDemand(history),
		ServiceLevel:       serviceLevel,
		MaxStock:           item.MaxStock,
		OrderCost:          item.OrderCost,
		HoldingCostPerUnit: item.HoldingCostPerUnit,
	}
	if item.LeadTimeDays != nil {
		in.LeadTimeDays = *item.LeadTimeDays
	}

	return analytics.Recommend(in), nil
}

// Dashboard is the inventory overview snapshot
type Dashboard struct {
	TotalValue      decimal.Decimal    `json:"total_value"`
	ValuationMethod string             `json:"valuation_method"`
	ItemsByCategory map[string]int64   `json:"items_by_category"`
	AlertsByStatus  map[string]int64   `json:"alerts_by_status"`
	OpenByPriority  map[string]int64   `json:"open_alerts_by_priority"`
	LowStock        []*repository.Item `json:"low_stock"`
	ExpiringSoon    []*repository.Item `json:"expiring_soon"`
}

// Dashboard aggregates the tenant overview: total inventory value, item
// counts by category, alert counters and the most pressing low-stock and
// expiring items.
func (s *AnalyticsService) Dashboard(ctx context.Context, topN int) (*Dashboard, error) {
	if topN <= 0 {
		topN = 10
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	valuation, err := s.TenantValuation(ctx, analytics.ValuationWeightedAverage)
	if err != nil {
		return nil, err
	}

	byCategory, err := s.items.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}

	byStatus, err := s.alerts.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	byPriority, err := s.alerts.CountOpenByPriority(ctx)
	if err != nil {
		return nil, err
	}

	lowStock, _, err := s.items.List(ctx, 1, topN, repository.ItemFilter{LowStock: true})
	if err != nil {
		return nil, err
	}

	expiryDays := settings.ExpiryWarningDays
	if expiryDays <= 0 {
		expiryDays = 30
	}
	expiring, _, err := s.items.List(ctx, 1, topN, repository.ItemFilter{ExpiringIn: expiryDays})
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		TotalValue:      valuation.TotalValue,
		ValuationMethod: analytics.ValuationWeightedAverage,
		ItemsByCategory: byCategory,
		AlertsByStatus:  byStatus,
		OpenByPriority:  byPriority,
		LowStock:        lowStock,
		ExpiringSoon:    expiring,
	}, nil
}

// activeItems loads the tenant's active items with quarantined ones removed
func (s *AnalyticsService) activeItems(ctx context.Context, tenantID string) ([]*repository.Item, error) {
	all, err := s.items.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*repository.Item, 0, len(all))
	for _, item := range all {
		if s.quarantine != nil && s.quarantine.Contains(tenantID, item.ID) {
			s.logger.Warn().Str("item_id", item.ID).Msg("skipping quarantined item in analytics run")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// quarantineOnInconsistency quarantines the item when the error is a ledger
// replay failure. Other errors pass through untouched.
func (s *AnalyticsService) quarantineOnInconsistency(ctx context.Context, itemID string, err error) {
	if !errors.Is(err, errors.ErrLedgerInconsistent) {
		return
	}
	tenantID, terr := tenant.TenantID(ctx)
	if terr != nil {
		return
	}
	if s.quarantine != nil {
		s.quarantine.Add(tenantID, itemID)
		s.logger.Warn().Str("item_id", itemID).Msg("item quarantined after inconsistent ledger replay")
	}
}
