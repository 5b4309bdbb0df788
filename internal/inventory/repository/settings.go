package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// AlertSettings is the per-tenant alert engine configuration. Exactly one
// row per tenant; reads fall back to defaults when none has been saved yet.
type AlertSettings struct {
	TenantID                  string          `db:"tenant_id" json:"-"`
	ExpiryWarningDays         int             `db:"expiry_warning_days" json:"expiry_warning_days"`
	ExpiryCriticalDays        int             `db:"expiry_critical_days" json:"expiry_critical_days"`
	DefaultReorderLevel       decimal.Decimal `db:"default_reorder_level" json:"default_reorder_level"`
	LowStockEnabled           bool            `db:"low_stock_enabled" json:"low_stock_enabled"`
	ExpiryEnabled             bool            `db:"expiry_enabled" json:"expiry_enabled"`
	OverstockEnabled          bool            `db:"overstock_enabled" json:"overstock_enabled"`
	ReorderEnabled            bool            `db:"reorder_enabled" json:"reorder_enabled"`
	StorageConditionEnabled   bool            `db:"storage_condition_enabled" json:"storage_condition_enabled"`
	AlertCheckIntervalSeconds int             `db:"alert_check_interval_seconds" json:"alert_check_interval_seconds"`
	MaxAlertsPerDay           int             `db:"max_alerts_per_day" json:"max_alerts_per_day"`
	AutoResolveOnRestock      bool            `db:"auto_resolve_on_restock" json:"auto_resolve_on_restock"`
	AutoResolveExpired        bool            `db:"auto_resolve_expired" json:"auto_resolve_expired"`
	SlowMovingDays            int             `db:"slow_moving_days" json:"slow_moving_days"`
	DeadStockDays             int             `db:"dead_stock_days" json:"dead_stock_days"`
	UpdatedBy                 *string         `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt                 time.Time       `db:"updated_at" json:"updated_at"`
}

// DefaultAlertSettings returns the settings used before a tenant saves any
func DefaultAlertSettings(tenantID string) *AlertSettings {
	return &AlertSettings{
		TenantID:                  tenantID,
		ExpiryWarningDays:         30,
		ExpiryCriticalDays:        7,
		DefaultReorderLevel:       decimal.NewFromInt(10),
		LowStockEnabled:           true,
		ExpiryEnabled:             true,
		OverstockEnabled:          true,
		ReorderEnabled:            true,
		StorageConditionEnabled:   true,
		AlertCheckIntervalSeconds: 300,
		MaxAlertsPerDay:           200,
		AutoResolveOnRestock:      true,
		AutoResolveExpired:        true,
		SlowMovingDays:            60,
		DeadStockDays:             180,
		UpdatedAt:                 time.Now().UTC(),
	}
}

// SettingsRepository handles alert settings persistence
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the tenant's settings, or defaults when none are stored
func (r *SettingsRepository) Get(ctx context.Context) (*AlertSettings, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var settings AlertSettings

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT tenant_id, expiry_warning_days, expiry_critical_days,
				default_reorder_level, low_stock_enabled, expiry_enabled,
				overstock_enabled, reorder_enabled, storage_condition_enabled,
				alert_check_interval_seconds, max_alerts_per_day,
				auto_resolve_on_restock, auto_resolve_expired,
				slow_moving_days, dead_stock_days, updated_by, updated_at
			FROM alert_settings
			WHERE tenant_id = $1
		`
		return r.db.GetContext(ctx, &settings, query, tenantID)
	})

	if err == sql.ErrNoRows {
		return DefaultAlertSettings(tenantID), nil
	}
	if err != nil {
		return nil, err
	}

	return &settings, nil
}

// Upsert saves the tenant's settings, replacing any previous row
func (r *SettingsRepository) Upsert(ctx context.Context, settings *AlertSettings) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	settings.TenantID = tenantID

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO alert_settings (
				tenant_id, expiry_warning_days, expiry_critical_days,
				default_reorder_level, low_stock_enabled, expiry_enabled,
				overstock_enabled, reorder_enabled, storage_condition_enabled,
				alert_check_interval_seconds, max_alerts_per_day,
				auto_resolve_on_restock, auto_resolve_expired,
				slow_moving_days, dead_stock_days, updated_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				$14, $15, $16)
			ON CONFLICT (tenant_id) DO UPDATE SET
				expiry_warning_days = EXCLUDED.expiry_warning_days,
				expiry_critical_days = EXCLUDED.expiry_critical_days,
				default_reorder_level = EXCLUDED.default_reorder_level,
				low_stock_enabled = EXCLUDED.low_stock_enabled,
				expiry_enabled = EXCLUDED.expiry_enabled,
				overstock_enabled = EXCLUDED.overstock_enabled,
				reorder_enabled = EXCLUDED.reorder_enabled,
				storage_condition_enabled = EXCLUDED.storage_condition_enabled,
				alert_check_interval_seconds = EXCLUDED.alert_check_interval_seconds,
				max_alerts_per_day = EXCLUDED.max_alerts_per_day,
				auto_resolve_on_restock = EXCLUDED.auto_resolve_on_restock,
				auto_resolve_expired = EXCLUDED.auto_resolve_expired,
				slow_moving_days = EXCLUDED.slow_moving_days,
				dead_stock_days = EXCLUDED.dead_stock_days,
				updated_by = EXCLUDED.updated_by,
				updated_at = NOW()
			RETURNING updated_at
		`

		return r.db.QueryRowxContext(ctx, query,
			settings.TenantID, settings.ExpiryWarningDays, settings.ExpiryCriticalDays,
			settings.DefaultReorderLevel, settings.LowStockEnabled, settings.ExpiryEnabled,
			settings.OverstockEnabled, settings.ReorderEnabled, settings.StorageConditionEnabled,
			settings.AlertCheckIntervalSeconds, settings.MaxAlertsPerDay,
			settings.AutoResolveOnRestock, settings.AutoResolveExpired,
			settings.SlowMovingDays, settings.DeadStockDays, settings.UpdatedBy,
		).Scan(&settings.UpdatedAt)
	})
}
