package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// Alert types
const (
	AlertLowStock         = "low_stock"
	AlertOutOfStock       = "out_of_stock"
	AlertOverstock        = "overstock"
	AlertExpiringSoon     = "expiring_soon"
	AlertExpired          = "expired"
	AlertReorderPoint     = "reorder_point"
	AlertStorageCondition = "storage_condition"
)

// Alert priorities
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Alert statuses
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusSnoozed      = "snoozed"
	AlertStatusResolved     = "resolved"
)

// PriorityRank orders priorities for sorting and daily-cap deferral,
// critical first
func PriorityRank(p string) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Alert is one entry produced by the alert engine. At most one open alert
// (active, acknowledged or snoozed) exists per (item, alert_type); the
// scanner updates the open one in place instead of duplicating it.
type Alert struct {
	ID                string           `db:"id" json:"id"`
	AlertType         string           `db:"alert_type" json:"alert_type"`
	ItemID            string           `db:"item_id" json:"item_id"`
	ItemName          string           `db:"item_name" json:"item_name"`
	Priority          string           `db:"priority" json:"priority"`
	Status            string           `db:"status" json:"status"`
	Title             string           `db:"title" json:"title"`
	Message           string           `db:"message" json:"message"`
	RecommendedAction *string          `db:"recommended_action" json:"recommended_action,omitempty"`
	CurrentValue      *decimal.Decimal `db:"current_value" json:"current_value,omitempty"`
	ThresholdValue    *decimal.Decimal `db:"threshold_value" json:"threshold_value,omitempty"`
	ExpiryDate        *time.Time       `db:"expiry_date" json:"expiry_date,omitempty"`
	SnoozeUntil       *time.Time       `db:"snooze_until" json:"snooze_until,omitempty"`
	AcknowledgedBy    *string          `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt    *time.Time       `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedBy        *string          `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolutionNotes   *string          `db:"resolution_notes" json:"resolution_notes,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// Open reports whether the alert still needs attention
func (a *Alert) Open() bool {
	return a.Status != AlertStatusResolved
}

const alertColumns = `
	id, alert_type, item_id, item_name, priority, status, title, message,
	recommended_action, current_value, threshold_value, expiry_date,
	snooze_until, acknowledged_by, acknowledged_at, resolved_by, resolved_at,
	resolution_notes, created_at, updated_at`

// AlertFilter narrows alert listings
type AlertFilter struct {
	Status    string
	AlertType string
	Priority  string
	ItemID    string
}

// AlertRepository handles alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create creates a new alert in active status
func (r *AlertRepository) Create(ctx context.Context, alert *Alert) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Status == "" {
		alert.Status = AlertStatusActive
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO inventory_alerts (
				id, tenant_id, alert_type, item_id, item_name, priority, status,
				title, message, recommended_action, current_value,
				threshold_value, expiry_date
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING created_at, updated_at
		`

		return r.db.QueryRowxContext(ctx, query,
			alert.ID, tenantID, alert.AlertType, alert.ItemID, alert.ItemName,
			alert.Priority, alert.Status, alert.Title, alert.Message,
			alert.RecommendedAction, alert.CurrentValue, alert.ThresholdValue,
			alert.ExpiryDate,
		).Scan(&alert.CreatedAt, &alert.UpdatedAt)
	})
}

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*Alert, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var alert Alert

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + alertColumns + ` FROM inventory_alerts WHERE id = $1`
		return r.db.GetContext(ctx, &alert, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.UnknownAlert(id)
	}
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

// GetOpenByItemAndType returns the open (non-resolved) alert for the
// (item, type) pair, or nil when none exists. Backbone of alert uniqueness.
func (r *AlertRepository) GetOpenByItemAndType(ctx context.Context, itemID, alertType string) (*Alert, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var alert Alert

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + alertColumns + `
			FROM inventory_alerts
			WHERE item_id = $1 AND alert_type = $2 AND status != $3
			LIMIT 1`
		return r.db.GetContext(ctx, &alert, query, itemID, alertType, AlertStatusResolved)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

// List lists alerts with filtering and pagination, critical first
func (r *AlertRepository) List(ctx context.Context, page, perPage int, filter AlertFilter) ([]*Alert, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var alerts []*Alert

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		where := ` WHERE 1=1`
		args := []interface{}{}
		argIndex := 1

		if filter.Status != "" {
			where += ` AND status = $` + itoa(argIndex)
			args = append(args, filter.Status)
			argIndex++
		}
		if filter.AlertType != "" {
			where += ` AND alert_type = $` + itoa(argIndex)
			args = append(args, filter.AlertType)
			argIndex++
		}
		if filter.Priority != "" {
			where += ` AND priority = $` + itoa(argIndex)
			args = append(args, filter.Priority)
			argIndex++
		}
		if filter.ItemID != "" {
			where += ` AND item_id = $` + itoa(argIndex)
			args = append(args, filter.ItemID)
			argIndex++
		}

		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM inventory_alerts`+where, args...); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `SELECT ` + alertColumns + ` FROM inventory_alerts` + where + `
			ORDER BY CASE priority
				WHEN 'critical' THEN 0
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				ELSE 3
			END, created_at DESC
			LIMIT $` + itoa(argIndex) + ` OFFSET $` + itoa(argIndex+1)
		args = append(args, perPage, offset)

		return r.db.SelectContext(ctx, &alerts, query, args...)
	})

	if err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

// UpdateCondition refreshes an open alert's observed values when a scan
// re-detects the same condition. Status and actor fields are untouched.
func (r *AlertRepository) UpdateCondition(ctx context.Context, alert *Alert) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE inventory_alerts
			SET priority = $2, title = $3, message = $4,
				recommended_action = $5, current_value = $6,
				threshold_value = $7, expiry_date = $8,
				updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query,
			alert.ID, alert.Priority, alert.Title, alert.Message,
			alert.RecommendedAction, alert.CurrentValue, alert.ThresholdValue,
			alert.ExpiryDate,
		)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.UnknownAlert(alert.ID)
		}

		return nil
	})
}

// SetStatus applies a state transition. The caller validates the transition;
// this just persists status plus the fields belonging to the new state.
func (r *AlertRepository) SetStatus(ctx context.Context, alert *Alert) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE inventory_alerts
			SET status = $2, snooze_until = $3,
				acknowledged_by = $4, acknowledged_at = $5,
				resolved_by = $6, resolved_at = $7, resolution_notes = $8,
				updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query,
			alert.ID, alert.Status, alert.SnoozeUntil,
			alert.AcknowledgedBy, alert.AcknowledgedAt,
			alert.ResolvedBy, alert.ResolvedAt, alert.ResolutionNotes,
		)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.UnknownAlert(alert.ID)
		}

		return nil
	})
}

// ResolveAllForItem resolves every open alert for an item, attributed to
// the given actor. Used on item deletion and on auto-resolve after restock.
func (r *AlertRepository) ResolveAllForItem(ctx context.Context, itemID, actor string, types ...string) (int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	var affected int64

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE inventory_alerts
			SET status = $3, resolved_by = $4, resolved_at = NOW(), updated_at = NOW()
			WHERE item_id = $1 AND status != $2
		`
		args := []interface{}{itemID, AlertStatusResolved, AlertStatusResolved, actor}

		if len(types) > 0 {
			query += ` AND alert_type = ANY($5)`
			args = append(args, pq.Array(types))
		}

		result, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}

		affected, _ = result.RowsAffected()
		return nil
	})

	return affected, err
}

// ReactivateExpiredSnoozes flips snoozed alerts whose snooze window has
// passed back to active. Runs at the start of each scan cycle.
func (r *AlertRepository) ReactivateExpiredSnoozes(ctx context.Context) (int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	var affected int64

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE inventory_alerts
			SET status = $1, snooze_until = NULL, updated_at = NOW()
			WHERE status = $2 AND snooze_until <= NOW()
		`
		result, err := r.db.ExecContext(ctx, query, AlertStatusActive, AlertStatusSnoozed)
		if err != nil {
			return err
		}

		affected, _ = result.RowsAffected()
		return nil
	})

	return affected, err
}

// CountCreatedToday returns how many alerts were created since UTC midnight.
// Enforces the per-day alert cap.
func (r *AlertRepository) CountCreatedToday(ctx context.Context) (int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	var count int64

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT COUNT(*) FROM inventory_alerts WHERE created_at >= date_trunc('day', NOW() AT TIME ZONE 'utc')`
		return r.db.GetContext(ctx, &count, query)
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CountByStatus returns alert counts grouped by status
func (r *AlertRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	type row struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}

	var rows []row
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT status, COUNT(*) AS count FROM inventory_alerts GROUP BY status`
		return r.db.SelectContext(ctx, &rows, query)
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

// CountOpenByPriority returns unresolved alert counts grouped by priority
func (r *AlertRepository) CountOpenByPriority(ctx context.Context) (map[string]int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	type row struct {
		Priority string `db:"priority"`
		Count    int64  `db:"count"`
	}

	var rows []row
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT priority, COUNT(*) AS count FROM inventory_alerts WHERE status != $1 GROUP BY priority`
		return r.db.SelectContext(ctx, &rows, query, AlertStatusResolved)
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Priority] = rw.Count
	}
	return counts, nil
}

// DeleteOldResolved prunes resolved alerts older than the retention window
func (r *AlertRepository) DeleteOldResolved(ctx context.Context, olderThan time.Duration) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `DELETE FROM inventory_alerts WHERE status = $1 AND resolved_at < $2`
		_, err := r.db.ExecContext(ctx, query, AlertStatusResolved, time.Now().Add(-olderThan))
		return err
	})
}
