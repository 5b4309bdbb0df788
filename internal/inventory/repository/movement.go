package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// Movement types
const (
	MovementPurchase   = "purchase"
	MovementSale       = "sale"
	MovementReturn     = "return"
	MovementAdjustment = "adjustment"
	MovementTransfer   = "transfer"
	MovementWaste      = "waste"
	MovementUsage      = "usage"
	MovementProduction = "production"
	MovementRestock    = "restock"
)

// MovementTypes lists all valid movement types
var MovementTypes = []string{
	MovementPurchase, MovementSale, MovementReturn, MovementAdjustment,
	MovementTransfer, MovementWaste, MovementUsage, MovementProduction,
	MovementRestock,
}

// ValidMovementType reports whether t is a known movement type
func ValidMovementType(t string) bool {
	for _, v := range MovementTypes {
		if v == t {
			return true
		}
	}
	return false
}

// MovementDirection returns the fixed ledger direction for a movement type:
// +1 inbound, -1 outbound, 0 when the caller must supply it explicitly
// (adjustment and transfer go both ways).
func MovementDirection(movementType string) int {
	switch movementType {
	case MovementPurchase, MovementReturn, MovementProduction, MovementRestock:
		return 1
	case MovementSale, MovementUsage, MovementWaste:
		return -1
	default:
		return 0
	}
}

// InboundType reports whether t contributes cost layers during valuation
// replay
func InboundType(t string) bool {
	switch t {
	case MovementPurchase, MovementReturn, MovementProduction, MovementRestock:
		return true
	default:
		return false
	}
}

// Movement is one append-only ledger entry. Quantity is always positive;
// Direction carries the sign. Seq is assigned by the database and, together
// with CreatedAt, gives the total replay order for valuation.
type Movement struct {
	ID            string           `db:"id" json:"id"`
	ItemID        string           `db:"item_id" json:"item_id"`
	MovementType  string           `db:"movement_type" json:"movement_type"`
	Direction     int              `db:"direction" json:"direction"`
	Quantity      decimal.Decimal  `db:"quantity" json:"quantity"`
	UnitCost      *decimal.Decimal `db:"unit_cost" json:"unit_cost,omitempty"`
	QuantityAfter decimal.Decimal  `db:"quantity_after" json:"quantity_after"`
	Reference     *string          `db:"reference" json:"reference,omitempty"`
	ReferenceType *string          `db:"reference_type" json:"reference_type,omitempty"`
	Reason        *string          `db:"reason" json:"reason,omitempty"`
	WarehouseID   *string          `db:"warehouse_id" json:"warehouse_id,omitempty"`
	PerformedBy   string           `db:"performed_by" json:"performed_by"`
	Seq           int64            `db:"seq" json:"seq"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// SignedQuantity returns quantity with the ledger direction applied
func (m *Movement) SignedQuantity() decimal.Decimal {
	if m.Direction < 0 {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

const movementColumns = `
	id, item_id, movement_type, direction, quantity, unit_cost,
	quantity_after, reference, reference_type, reason, warehouse_id,
	performed_by, seq, created_at`

// MovementFilter narrows movement listings
type MovementFilter struct {
	ItemID       string
	MovementType string
	From         *time.Time
	To           *time.Time
}

// MovementRepository handles the append-only stock movement ledger
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Append writes a new ledger entry. Entries are never updated or deleted;
// corrections are recorded as compensating adjustments.
func (r *MovementRepository) Append(ctx context.Context, m *Movement) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO stock_movements (
				id, tenant_id, item_id, movement_type, direction, quantity,
				unit_cost, quantity_after, reference, reference_type, reason,
				warehouse_id, performed_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING seq, created_at
		`

		return r.db.QueryRowxContext(ctx, query,
			m.ID, tenantID, m.ItemID, m.MovementType, m.Direction, m.Quantity,
			m.UnitCost, m.QuantityAfter, m.Reference, m.ReferenceType, m.Reason,
			m.WarehouseID, m.PerformedBy,
		).Scan(&m.Seq, &m.CreatedAt)
	})
}

// GetByReference looks up an existing movement by client reference.
// Used for idempotent movement recording: a repeated reference returns
// the original entry instead of double-applying.
func (r *MovementRepository) GetByReference(ctx context.Context, itemID, reference string) (*Movement, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var m Movement

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + movementColumns + `
			FROM stock_movements
			WHERE item_id = $1 AND reference = $2
			ORDER BY created_at, seq
			LIMIT 1`
		return r.db.GetContext(ctx, &m, query, itemID, reference)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// ListByItem returns an item's ledger in replay order (created_at, seq)
func (r *MovementRepository) ListByItem(ctx context.Context, itemID string, filter MovementFilter) ([]*Movement, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var movements []*Movement

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE item_id = $1`
		args := []interface{}{itemID}
		argIndex := 2

		if filter.MovementType != "" {
			query += ` AND movement_type = $` + itoa(argIndex)
			args = append(args, filter.MovementType)
			argIndex++
		}
		if filter.From != nil {
			query += ` AND created_at >= $` + itoa(argIndex)
			args = append(args, *filter.From)
			argIndex++
		}
		if filter.To != nil {
			query += ` AND created_at < $` + itoa(argIndex)
			args = append(args, *filter.To)
			argIndex++
		}

		query += ` ORDER BY created_at, seq`

		return r.db.SelectContext(ctx, &movements, query, args...)
	})

	if err != nil {
		return nil, err
	}

	return movements, nil
}

// List returns recent movements across all items with pagination
func (r *MovementRepository) List(ctx context.Context, page, perPage int, filter MovementFilter) ([]*Movement, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var movements []*Movement

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		where := ` WHERE 1=1`
		args := []interface{}{}
		argIndex := 1

		if filter.ItemID != "" {
			where += ` AND item_id = $` + itoa(argIndex)
			args = append(args, filter.ItemID)
			argIndex++
		}
		if filter.MovementType != "" {
			where += ` AND movement_type = $` + itoa(argIndex)
			args = append(args, filter.MovementType)
			argIndex++
		}
		if filter.From != nil {
			where += ` AND created_at >= $` + itoa(argIndex)
			args = append(args, *filter.From)
			argIndex++
		}
		if filter.To != nil {
			where += ` AND created_at < $` + itoa(argIndex)
			args = append(args, *filter.To)
			argIndex++
		}

		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_movements`+where, args...); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `SELECT ` + movementColumns + ` FROM stock_movements` + where +
			` ORDER BY created_at DESC, seq DESC LIMIT $` + itoa(argIndex) + ` OFFSET $` + itoa(argIndex+1)
		args = append(args, perPage, offset)

		return r.db.SelectContext(ctx, &movements, query, args...)
	})

	if err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

// OutboundSince returns outbound movements for an item on or after the
// given time, in replay order. The forecaster and classifiers bucket these
// into daily consumption series.
func (r *MovementRepository) OutboundSince(ctx context.Context, itemID string, since time.Time) ([]*Movement, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var movements []*Movement

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + movementColumns + `
			FROM stock_movements
			WHERE item_id = $1 AND direction = -1 AND created_at >= $2
			ORDER BY created_at, seq`
		return r.db.SelectContext(ctx, &movements, query, itemID, since)
	})

	if err != nil {
		return nil, err
	}

	return movements, nil
}

// LastMovementAt returns the time of the item's most recent movement, or
// nil when the ledger is empty for it
func (r *MovementRepository) LastMovementAt(ctx context.Context, itemID string) (*time.Time, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var last time.Time

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT created_at FROM stock_movements WHERE item_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1`
		return r.db.GetContext(ctx, &last, query, itemID)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &last, nil
}
