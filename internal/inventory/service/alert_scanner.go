package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/i18n"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/messaging"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// scanItemStore is the slice of ItemRepository the scanner needs
type scanItemStore interface {
	GetAllActive(ctx context.Context) ([]*repository.Item, error)
}

// settingsStore reads the tenant's alert settings
type settingsStore interface {
	Get(ctx context.Context) (*repository.AlertSettings, error)
}

// readingSource provides the latest storage reading per item
type readingSource interface {
	LatestByItem(ctx context.Context, itemID string) (*repository.StorageReading, error)
}

// emission is one alert condition detected during a scan
type emission struct {
	item           *repository.Item
	alertType      string
	priority       string
	currentValue   *decimal.Decimal
	thresholdValue *decimal.Decimal
	expiryDate     *time.Time
	params         map[string]string
}

// AlertScanner reconciles item state with the tenant's alerts: it emits
// alerts for the conditions in force, refreshes open ones instead of
// duplicating them, reactivates expired snoozes and resolves alerts whose
// condition has cleared. One bad item never halts a scan.
type AlertScanner struct {
	items      scanItemStore
	alerts     alertStore
	settings   settingsStore
	readings   readingSource
	quarantine *Quarantine
	publisher  alertPublisher
	logger     *logger.Logger
}

// NewAlertScanner creates a new alert scanner. readings may be nil when no
// storage readings are recorded.
func NewAlertScanner(
	items scanItemStore,
	alerts alertStore,
	settings settingsStore,
	readings readingSource,
	quarantine *Quarantine,
	publisher alertPublisher,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		items:      items,
		alerts:     alerts,
		settings:   settings,
		readings:   readings,
		quarantine: quarantine,
		publisher:  publisher,
		logger:     log,
	}
}

// Scan runs one full alert reconciliation cycle for the tenant in ctx
func (s *AlertScanner) Scan(ctx context.Context) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}

	reactivated, err := s.alerts.ReactivateExpiredSnoozes(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to reactivate snoozed alerts")
	} else if reactivated > 0 {
		s.logger.Info().Int64("count", reactivated).Msg("snoozed alerts reactivated")
	}

	items, err := s.items.GetAllActive(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var candidates []emission

	for _, item := range items {
		if s.quarantine != nil && s.quarantine.Contains(tenantID, item.ID) {
			s.logger.Warn().Str("item_id", item.ID).Msg("item quarantined, skipping scan")
			continue
		}

		candidates = append(candidates, s.evaluateItem(ctx, item, settings, now)...)
	}

	if err := s.emit(ctx, candidates, settings); err != nil {
		return err
	}

	return s.resolveCleared(ctx, items, settings, now)
}

// evaluateItem returns the alert conditions currently in force for one item
func (s *AlertScanner) evaluateItem(ctx context.Context, item *repository.Item, settings *repository.AlertSettings, now time.Time) []emission {
	var out []emission

	reorderLevel := item.ReorderLevel
	if reorderLevel.IsZero() {
		reorderLevel = settings.DefaultReorderLevel
	}

	if settings.LowStockEnabled {
		switch {
		case item.Quantity.IsZero():
			out = append(out, emission{
				item:           item,
				alertType:      repository.AlertOutOfStock,
				priority:       repository.PriorityCritical,
				currentValue:   &item.Quantity,
				thresholdValue: &reorderLevel,
				params:         map[string]string{"item": item.Name},
			})
		case item.Quantity.LessThanOrEqual(reorderLevel):
			out = append(out, emission{
				item:           item,
				alertType:      repository.AlertLowStock,
				priority:       repository.PriorityHigh,
				currentValue:   &item.Quantity,
				thresholdValue: &reorderLevel,
				params: map[string]string{
					"item":      item.Name,
					"current":   item.Quantity.String(),
					"threshold": reorderLevel.String(),
				},
			})
		case item.ReorderPoint != nil && item.Quantity.LessThanOrEqual(*item.ReorderPoint):
			out = append(out, emission{
				item:           item,
				alertType:      repository.AlertReorderPoint,
				priority:       repository.PriorityMedium,
				currentValue:   &item.Quantity,
				thresholdValue: item.ReorderPoint,
				params: map[string]string{
					"item":      item.Name,
					"current":   item.Quantity.String(),
					"threshold": item.ReorderPoint.String(),
				},
			})
		}
	}

	if settings.OverstockEnabled && item.MaxStock != nil && item.Quantity.GreaterThan(*item.MaxStock) {
		out = append(out, emission{
			item:           item,
			alertType:      repository.AlertOverstock,
			priority:       repository.PriorityLow,
			currentValue:   &item.Quantity,
			thresholdValue: item.MaxStock,
			params: map[string]string{
				"item":      item.Name,
				"current":   item.Quantity.String(),
				"threshold": item.MaxStock.String(),
			},
		})
	}

	if settings.ExpiryEnabled && item.ExpiryDate != nil {
		if e := evaluateExpiry(item, settings, now); e != nil {
			out = append(out, *e)
		}
	}

	if settings.StorageConditionEnabled && s.readings != nil && hasStorageConstraints(item) {
		if e := s.evaluateStorage(ctx, item); e != nil {
			out = append(out, *e)
		}
	}

	return out
}

func evaluateExpiry(item *repository.Item, settings *repository.AlertSettings, now time.Time) *emission {
	today := now.Truncate(24 * time.Hour)
	expiry := item.ExpiryDate.UTC().Truncate(24 * time.Hour)
	daysUntil := int(expiry.Sub(today).Hours() / 24)

	switch {
	case daysUntil <= 0:
		return &emission{
			item:       item,
			alertType:  repository.AlertExpired,
			priority:   repository.PriorityCritical,
			expiryDate: item.ExpiryDate,
			params: map[string]string{
				"item":   item.Name,
				"expiry": expiry.Format("2006-01-02"),
			},
		}
	case daysUntil <= settings.ExpiryWarningDays:
		priority := repository.PriorityMedium
		if daysUntil <= settings.ExpiryCriticalDays {
			priority = repository.PriorityHigh
		}
		return &emission{
			item:       item,
			alertType:  repository.AlertExpiringSoon,
			priority:   priority,
			expiryDate: item.ExpiryDate,
			params: map[string]string{
				"item": item.Name,
				"days": decimal.NewFromInt(int64(daysUntil)).String(),
			},
		}
	}

	return nil
}

func hasStorageConstraints(item *repository.Item) bool {
	return item.MinTemperature != nil || item.MaxTemperature != nil ||
		item.MinHumidity != nil || item.MaxHumidity != nil
}

func (s *AlertScanner) evaluateStorage(ctx context.Context, item *repository.Item) *emission {
	reading, err := s.readings.LatestByItem(ctx, item.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to load storage reading")
		return nil
	}
	if reading == nil {
		return nil
	}

	observed := ""
	if reading.Temperature != nil {
		t := *reading.Temperature
		if (item.MinTemperature != nil && t < *item.MinTemperature) ||
			(item.MaxTemperature != nil && t > *item.MaxTemperature) {
			observed = decimal.NewFromFloat(t).String() + "°C"
		}
	}
	if observed == "" && reading.Humidity != nil {
		h := *reading.Humidity
		if (item.MinHumidity != nil && h < *item.MinHumidity) ||
			(item.MaxHumidity != nil && h > *item.MaxHumidity) {
			observed = decimal.NewFromFloat(h).String() + "%RH"
		}
	}
	if observed == "" {
		return nil
	}

	return &emission{
		item:      item,
		alertType: repository.AlertStorageCondition,
		priority:  repository.PriorityHigh,
		params: map[string]string{
			"item":     item.Name,
			"observed": observed,
		},
	}
}

// emit creates or refreshes alerts for the detected conditions. An open
// alert of the same (item, type) is updated in place; new emissions respect
// the tenant's daily cap, deferring the lowest priorities first.
func (s *AlertScanner) emit(ctx context.Context, candidates []emission, settings *repository.AlertSettings) error {
	var fresh []emission

	for _, c := range candidates {
		existing, err := s.alerts.GetOpenByItemAndType(ctx, c.item.ID, c.alertType)
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", c.item.ID).Str("alert_type", c.alertType).Msg("failed to check open alert")
			continue
		}

		if existing != nil {
			existing.Priority = c.priority
			existing.Title = alertTitle(c)
			existing.Message = alertMessage(c)
			action := alertAction(c)
			existing.RecommendedAction = &action
			existing.CurrentValue = c.currentValue
			existing.ThresholdValue = c.thresholdValue
			existing.ExpiryDate = c.expiryDate

			if err := s.alerts.UpdateCondition(ctx, existing); err != nil {
				s.logger.Error().Err(err).Str("alert_id", existing.ID).Msg("failed to refresh alert condition")
			}
			continue
		}

		fresh = append(fresh, c)
	}

	if len(fresh) == 0 {
		return nil
	}

	created, err := s.alerts.CountCreatedToday(ctx)
	if err != nil {
		return err
	}

	capacity := int64(settings.MaxAlertsPerDay) - created
	if capacity < 0 {
		capacity = 0
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		ri, rj := repository.PriorityRank(fresh[i].priority), repository.PriorityRank(fresh[j].priority)
		if ri != rj {
			return ri < rj
		}
		return fresh[i].item.ID < fresh[j].item.ID
	})

	for i, c := range fresh {
		if int64(i) >= capacity {
			s.logger.Warn().
				Int("deferred", len(fresh)-i).
				Int("max_per_day", settings.MaxAlertsPerDay).
				Msg("daily alert cap reached, deferring lowest-priority emissions")
			break
		}

		action := alertAction(c)
		alert := &repository.Alert{
			AlertType:         c.alertType,
			ItemID:            c.item.ID,
			ItemName:          c.item.Name,
			Priority:          c.priority,
			Status:            repository.AlertStatusActive,
			Title:             alertTitle(c),
			Message:           alertMessage(c),
			RecommendedAction: &action,
			CurrentValue:      c.currentValue,
			ThresholdValue:    c.thresholdValue,
			ExpiryDate:        c.expiryDate,
		}

		if err := s.alerts.Create(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("item_id", c.item.ID).Str("alert_type", c.alertType).Msg("failed to create alert")
			continue
		}

		if s.publisher != nil {
			s.publisher.PublishAlertEvent(ctx, messaging.EventAlertGenerated, alert, SystemActor)
		}
	}

	return nil
}

func alertTitle(c emission) string {
	return i18n.T("alerts."+c.alertType+".title", c.params)
}

func alertMessage(c emission) string {
	return i18n.T("alerts."+c.alertType+".message", c.params)
}

func alertAction(c emission) string {
	return i18n.T("alerts."+c.alertType+".action", c.params)
}

// resolveCleared resolves open alerts whose trigger condition no longer
// holds, attributed to the system actor
func (s *AlertScanner) resolveCleared(ctx context.Context, items []*repository.Item, settings *repository.AlertSettings, now time.Time) error {
	byID := make(map[string]*repository.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	for _, status := range []string{repository.AlertStatusActive, repository.AlertStatusAcknowledged, repository.AlertStatusSnoozed} {
		alerts, _, err := s.alerts.List(ctx, 1, 1000, repository.AlertFilter{Status: status})
		if err != nil {
			return err
		}

		for _, alert := range alerts {
			item, ok := byID[alert.ItemID]
			if !ok {
				// Item deleted; deletion resolves its alerts explicitly, but
				// clear any straggler.
				s.resolveSystem(ctx, alert)
				continue
			}

			if alertCleared(alert, item, settings, now) {
				s.resolveSystem(ctx, alert)
			}
		}
	}

	return nil
}

func (s *AlertScanner) resolveSystem(ctx context.Context, alert *repository.Alert) {
	now := time.Now().UTC()
	actor := SystemActor
	alert.Status = repository.AlertStatusResolved
	alert.ResolvedBy = &actor
	alert.ResolvedAt = &now
	alert.SnoozeUntil = nil

	if err := s.alerts.SetStatus(ctx, alert); err != nil {
		s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to auto-resolve alert")
		return
	}

	if s.publisher != nil {
		s.publisher.PublishAlertEvent(ctx, messaging.EventAlertResolved, alert, SystemActor)
	}
}

// alertCleared reports whether the alert's trigger condition has gone away
func alertCleared(alert *repository.Alert, item *repository.Item, settings *repository.AlertSettings, now time.Time) bool {
	reorderLevel := item.ReorderLevel
	if reorderLevel.IsZero() {
		reorderLevel = settings.DefaultReorderLevel
	}

	switch alert.AlertType {
	case repository.AlertOutOfStock:
		return item.Quantity.IsPositive()
	case repository.AlertLowStock:
		return item.Quantity.GreaterThan(reorderLevel)
	case repository.AlertReorderPoint:
		return item.ReorderPoint == nil || item.Quantity.GreaterThan(*item.ReorderPoint)
	case repository.AlertOverstock:
		return item.MaxStock == nil || item.Quantity.LessThanOrEqual(*item.MaxStock)
	case repository.AlertExpired:
		return item.ExpiryDate == nil || item.ExpiryDate.After(now)
	case repository.AlertExpiringSoon:
		if item.ExpiryDate == nil {
			return true
		}
		warning := now.AddDate(0, 0, settings.ExpiryWarningDays)
		return item.ExpiryDate.After(warning)
	default:
		// storage_condition clears only via a fresh in-range reading, which
		// the next scan's evaluate step will not re-emit; operators resolve
		// these explicitly.
		return false
	}
}

// OnMovementApplied is the movement applier's post-commit hook. It applies
// the auto-resolution rules without waiting for the next scheduled scan.
func (s *AlertScanner) OnMovementApplied(ctx context.Context, item *repository.Item, m *repository.Movement) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to load settings for movement reconciliation")
		return
	}

	reorderLevel := item.ReorderLevel
	if reorderLevel.IsZero() {
		reorderLevel = settings.DefaultReorderLevel
	}

	inboundRestock := m.MovementType == repository.MovementPurchase || m.MovementType == repository.MovementRestock

	if settings.AutoResolveOnRestock && inboundRestock && item.Quantity.GreaterThan(reorderLevel) {
		resolved, err := s.alerts.ResolveAllForItem(ctx, item.ID, SystemActor,
			repository.AlertLowStock, repository.AlertOutOfStock, repository.AlertReorderPoint)
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to auto-resolve stock alerts after restock")
		} else if resolved > 0 {
			s.logger.Info().Str("item_id", item.ID).Int64("count", resolved).Msg("stock alerts auto-resolved after restock")
		}
	}

	if settings.AutoResolveExpired && m.MovementType == repository.MovementWaste &&
		item.ExpiryDate != nil && !item.ExpiryDate.After(time.Now()) {
		resolved, err := s.alerts.ResolveAllForItem(ctx, item.ID, SystemActor, repository.AlertExpired)
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to auto-resolve expired alert after waste")
		} else if resolved > 0 {
			s.logger.Info().Str("item_id", item.ID).Int64("count", resolved).Msg("expired alert auto-resolved after waste removal")
		}
	}
}
