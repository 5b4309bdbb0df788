package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// Transfer statuses
const (
	TransferPending   = "pending"
	TransferApproved  = "approved"
	TransferInTransit = "in_transit"
	TransferCompleted = "completed"
	TransferCancelled = "cancelled"
)

// Warehouse is a physical storage site (barn, silo, cold store)
type Warehouse struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	NameAr    *string    `db:"name_ar" json:"name_ar,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	IsDefault bool       `db:"is_default" json:"is_default"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// StorageLocation is a named slot inside a warehouse (shelf, bin, zone)
type StorageLocation struct {
	ID          string    `db:"id" json:"id"`
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Name        string    `db:"name" json:"name"`
	Zone        *string   `db:"zone" json:"zone,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Transfer moves stock between warehouses. Stock leaves the source ledger
// when the transfer completes, as a paired out/in movement.
type Transfer struct {
	ID              string          `db:"id" json:"id"`
	ItemID          string          `db:"item_id" json:"item_id"`
	FromWarehouseID string          `db:"from_warehouse_id" json:"from_warehouse_id"`
	ToWarehouseID   string          `db:"to_warehouse_id" json:"to_warehouse_id"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	Status          string          `db:"status" json:"status"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	RequestedBy     string          `db:"requested_by" json:"requested_by"`
	ApprovedBy      *string         `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	CompletedBy     *string         `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// WarehouseRepository handles warehouse, location and transfer persistence
type WarehouseRepository struct {
	db *database.DB
}

// NewWarehouseRepository creates a new warehouse repository
func NewWarehouseRepository(db *database.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// CreateWarehouse creates a new warehouse
func (r *WarehouseRepository) CreateWarehouse(ctx context.Context, w *Warehouse) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if w.ID == "" {
		w.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO warehouses (id, tenant_id, name, name_ar, address, is_default)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`
		return r.db.QueryRowxContext(ctx, query,
			w.ID, tenantID, w.Name, w.NameAr, w.Address, w.IsDefault,
		).Scan(&w.CreatedAt, &w.UpdatedAt)
	})
}

// GetWarehouse gets a warehouse by ID
func (r *WarehouseRepository) GetWarehouse(ctx context.Context, id string) (*Warehouse, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var w Warehouse

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, name, name_ar, address, is_default, created_at, updated_at
			FROM warehouses WHERE id = $1 AND deleted_at IS NULL
		`
		return r.db.GetContext(ctx, &w, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("warehouse")
	}
	if err != nil {
		return nil, err
	}

	return &w, nil
}

// ListWarehouses lists all active warehouses
func (r *WarehouseRepository) ListWarehouses(ctx context.Context) ([]*Warehouse, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var warehouses []*Warehouse

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, name, name_ar, address, is_default, created_at, updated_at
			FROM warehouses WHERE deleted_at IS NULL ORDER BY is_default DESC, name
		`
		return r.db.SelectContext(ctx, &warehouses, query)
	})

	if err != nil {
		return nil, err
	}

	return warehouses, nil
}

// CreateLocation creates a storage location inside a warehouse
func (r *WarehouseRepository) CreateLocation(ctx context.Context, loc *StorageLocation) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO storage_locations (id, tenant_id, warehouse_id, name, zone)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`
		return r.db.QueryRowxContext(ctx, query,
			loc.ID, tenantID, loc.WarehouseID, loc.Name, loc.Zone,
		).Scan(&loc.CreatedAt)
	})
}

// ListLocations lists storage locations for a warehouse
func (r *WarehouseRepository) ListLocations(ctx context.Context, warehouseID string) ([]*StorageLocation, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var locations []*StorageLocation

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, warehouse_id, name, zone, created_at
			FROM storage_locations WHERE warehouse_id = $1 ORDER BY name
		`
		return r.db.SelectContext(ctx, &locations, query, warehouseID)
	})

	if err != nil {
		return nil, err
	}

	return locations, nil
}

// CreateTransfer creates a transfer request in pending status
func (r *WarehouseRepository) CreateTransfer(ctx context.Context, t *Transfer) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = TransferPending
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO stock_transfers (
				id, tenant_id, item_id, from_warehouse_id, to_warehouse_id,
				quantity, status, notes, requested_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`
		return r.db.QueryRowxContext(ctx, query,
			t.ID, tenantID, t.ItemID, t.FromWarehouseID, t.ToWarehouseID,
			t.Quantity, t.Status, t.Notes, t.RequestedBy,
		).Scan(&t.CreatedAt, &t.UpdatedAt)
	})
}

// GetTransfer gets a transfer by ID
func (r *WarehouseRepository) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var t Transfer

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, item_id, from_warehouse_id, to_warehouse_id, quantity,
				status, notes, requested_by, approved_by, approved_at,
				completed_by, completed_at, created_at, updated_at
			FROM stock_transfers WHERE id = $1
		`
		return r.db.GetContext(ctx, &t, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("transfer")
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// ListTransfers lists transfers, newest first, optionally by status
func (r *WarehouseRepository) ListTransfers(ctx context.Context, status string, page, perPage int) ([]*Transfer, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var transfers []*Transfer

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		where := ` WHERE 1=1`
		args := []interface{}{}
		argIndex := 1

		if status != "" {
			where += ` AND status = $` + itoa(argIndex)
			args = append(args, status)
			argIndex++
		}

		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_transfers`+where, args...); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `
			SELECT id, item_id, from_warehouse_id, to_warehouse_id, quantity,
				status, notes, requested_by, approved_by, approved_at,
				completed_by, completed_at, created_at, updated_at
			FROM stock_transfers` + where + `
			ORDER BY created_at DESC
			LIMIT $` + itoa(argIndex) + ` OFFSET $` + itoa(argIndex+1)
		args = append(args, perPage, offset)

		return r.db.SelectContext(ctx, &transfers, query, args...)
	})

	if err != nil {
		return nil, 0, err
	}

	return transfers, total, nil
}

// UpdateTransferStatus persists a transfer state transition. The service
// validates the transition before calling.
func (r *WarehouseRepository) UpdateTransferStatus(ctx context.Context, t *Transfer) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE stock_transfers
			SET status = $2, approved_by = $3, approved_at = $4,
				completed_by = $5, completed_at = $6, updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query, t.ID, t.Status, t.ApprovedBy, t.ApprovedAt, t.CompletedBy, t.CompletedAt)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("transfer")
		}

		return nil
	})
}
