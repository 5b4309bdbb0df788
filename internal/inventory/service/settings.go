package service

import (
	"context"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// settingsWriter is the slice of SettingsRepository the settings service
// needs beyond reads
type settingsWriter interface {
	settingsStore
	Upsert(ctx context.Context, settings *repository.AlertSettings) error
}

// settingsPublisher publishes settings change events
type settingsPublisher interface {
	PublishSettingsChanged(ctx context.Context)
}

// scanTrigger requests an out-of-band alert scan for a tenant
type scanTrigger interface {
	TriggerTenant(tenantID string)
}

// SettingsService reads and updates the tenant's alert settings
type SettingsService struct {
	settings  settingsWriter
	publisher settingsPublisher
	scheduler scanTrigger
	logger    *logger.Logger
}

// NewSettingsService creates a new settings service. scheduler may be nil
// in tools without a scanner.
func NewSettingsService(settings settingsWriter, publisher settingsPublisher, scheduler scanTrigger, log *logger.Logger) *SettingsService {
	return &SettingsService{
		settings:  settings,
		publisher: publisher,
		scheduler: scheduler,
		logger:    log,
	}
}

// Get returns the tenant's settings, defaults when none are stored
func (s *SettingsService) Get(ctx context.Context) (*repository.AlertSettings, error) {
	return s.settings.Get(ctx)
}

// Update validates and saves the tenant's settings, then emits a
// SettingsChanged event and requests a fresh scan
func (s *SettingsService) Update(ctx context.Context, settings *repository.AlertSettings, actor string) (*repository.AlertSettings, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	if details := validateSettings(settings); len(details) > 0 {
		return nil, errors.InvalidSettings(details)
	}

	settings.UpdatedBy = &actor

	if err := s.settings.Upsert(ctx, settings); err != nil {
		return nil, err
	}

	s.logger.Info().Str("tenant_id", tenantID).Str("actor", actor).Msg("alert settings updated")

	if s.publisher != nil {
		s.publisher.PublishSettingsChanged(ctx)
	}
	if s.scheduler != nil {
		s.scheduler.TriggerTenant(tenantID)
	}

	return settings, nil
}

func validateSettings(settings *repository.AlertSettings) map[string]string {
	details := map[string]string{}

	if settings.ExpiryWarningDays < 0 {
		details["expiry_warning_days"] = "must be at least 0"
	}
	if settings.ExpiryCriticalDays < 0 {
		details["expiry_critical_days"] = "must be at least 0"
	}
	if settings.ExpiryCriticalDays > settings.ExpiryWarningDays {
		details["expiry_critical_days"] = "must not exceed expiry_warning_days"
	}
	if settings.DefaultReorderLevel.IsNegative() {
		details["default_reorder_level"] = "must not be negative"
	}
	if settings.AlertCheckIntervalSeconds < 60 {
		details["alert_check_interval_seconds"] = "must be at least 60"
	}
	if settings.MaxAlertsPerDay < 1 {
		details["max_alerts_per_day"] = "must be at least 1"
	}
	if settings.SlowMovingDays < 0 {
		details["slow_moving_days"] = "must be at least 0"
	}
	if settings.DeadStockDays < 0 {
		details["dead_stock_days"] = "must be at least 0"
	}

	return details
}
