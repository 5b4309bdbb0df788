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

// Item categories
const (
	CategorySeeds       = "seeds"
	CategoryFertilizer  = "fertilizer"
	CategoryPesticide   = "pesticide"
	CategoryHerbicide   = "herbicide"
	CategoryFungicide   = "fungicide"
	CategoryInsecticide = "insecticide"
	CategoryEquipment   = "equipment"
	CategoryTools       = "tools"
	CategoryIrrigation  = "irrigation"
	CategoryPackaging   = "packaging"
	CategoryFuel        = "fuel"
	CategoryOther       = "other"
)

// Categories lists all valid item categories
var Categories = []string{
	CategorySeeds, CategoryFertilizer, CategoryPesticide, CategoryHerbicide,
	CategoryFungicide, CategoryInsecticide, CategoryEquipment, CategoryTools,
	CategoryIrrigation, CategoryPackaging, CategoryFuel, CategoryOther,
}

// ValidCategory reports whether c is a known item category
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Item represents an agricultural inventory item. Quantity is a denormalized
// cache of the movement ledger and is mutated only through the movement
// service.
type Item struct {
	ID           string           `db:"id" json:"id"`
	Name         string           `db:"name" json:"name"`
	NameAr       *string          `db:"name_ar" json:"name_ar,omitempty"`
	Description  *string          `db:"description" json:"description,omitempty"`
	Category     string           `db:"category" json:"category"`
	Quantity     decimal.Decimal  `db:"quantity" json:"quantity"`
	Unit         string           `db:"unit" json:"unit"`
	ReorderLevel decimal.Decimal  `db:"reorder_level" json:"reorder_level"`
	ReorderPoint *decimal.Decimal `db:"reorder_point" json:"reorder_point,omitempty"`
	MaxStock     *decimal.Decimal `db:"max_stock" json:"max_stock,omitempty"`
	UnitCost     decimal.Decimal  `db:"unit_cost" json:"unit_cost"`
	SellingPrice *decimal.Decimal `db:"selling_price" json:"selling_price,omitempty"`
	BatchNumber  *string          `db:"batch_number" json:"batch_number,omitempty"`
	ExpiryDate   *time.Time       `db:"expiry_date" json:"expiry_date,omitempty"`
	// Storage constraints; observed readings outside these bounds raise a
	// storage_condition alert.
	MinTemperature *float64 `db:"min_temperature" json:"min_temperature,omitempty"`
	MaxTemperature *float64 `db:"max_temperature" json:"max_temperature,omitempty"`
	MinHumidity    *float64 `db:"min_humidity" json:"min_humidity,omitempty"`
	MaxHumidity    *float64 `db:"max_humidity" json:"max_humidity,omitempty"`
	Supplier       *string  `db:"supplier" json:"supplier,omitempty"`
	// Reorder economics, used by the reorder advisor when present
	LeadTimeDays       *int             `db:"lead_time_days" json:"lead_time_days,omitempty"`
	OrderCost          *decimal.Decimal `db:"order_cost" json:"order_cost,omitempty"`
	HoldingCostPerUnit *decimal.Decimal `db:"holding_cost_per_unit" json:"holding_cost_per_unit,omitempty"`
	LocationID         *string          `db:"location_id" json:"location_id,omitempty"`
	Notes              *string          `db:"notes" json:"notes,omitempty"`
	NotesAr            *string          `db:"notes_ar" json:"notes_ar,omitempty"`
	LastRestocked      *time.Time       `db:"last_restocked" json:"last_restocked,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
	DeletedAt          *time.Time       `db:"deleted_at" json:"-"`
}

const itemColumns = `
	id, name, name_ar, description, category, quantity, unit,
	reorder_level, reorder_point, max_stock, unit_cost, selling_price,
	batch_number, expiry_date, min_temperature, max_temperature,
	min_humidity, max_humidity, supplier, lead_time_days, order_cost,
	holding_cost_per_unit, location_id, notes, notes_ar, last_restocked,
	created_at, updated_at`

// ItemFilter narrows item listings
type ItemFilter struct {
	Category   string
	Search     string
	LowStock   bool
	ExpiringIn int // days; 0 means no expiry filter
}

// ItemRepository handles inventory item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new inventory item
// TENANT-ISOLATED: Inserts into the tenant's schema
func (r *ItemRepository) Create(ctx context.Context, item *Item) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO items (
				id, tenant_id, name, name_ar, description, category, quantity, unit,
				reorder_level, reorder_point, max_stock, unit_cost, selling_price,
				batch_number, expiry_date, min_temperature, max_temperature,
				min_humidity, max_humidity, supplier, lead_time_days, order_cost,
				holding_cost_per_unit, location_id, notes, notes_ar, last_restocked
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
			RETURNING created_at, updated_at
		`

		return r.db.QueryRowxContext(ctx, query,
			item.ID, tenantID, item.Name, item.NameAr, item.Description,
			item.Category, item.Quantity, item.Unit, item.ReorderLevel,
			item.ReorderPoint, item.MaxStock, item.UnitCost, item.SellingPrice,
			item.BatchNumber, item.ExpiryDate, item.MinTemperature,
			item.MaxTemperature, item.MinHumidity, item.MaxHumidity,
			item.Supplier, item.LeadTimeDays, item.OrderCost,
			item.HoldingCostPerUnit, item.LocationID, item.Notes, item.NotesAr,
			item.LastRestocked,
		).Scan(&item.CreatedAt, &item.UpdatedAt)
	})
}

// GetByID gets an item by ID
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var item Item

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND deleted_at IS NULL`
		return r.db.GetContext(ctx, &item, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.UnknownItem(id)
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// List lists inventory items with pagination
// TENANT-ISOLATED: Returns only items from the tenant's schema
func (r *ItemRepository) List(ctx context.Context, page, perPage int, filter ItemFilter) ([]*Item, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var items []*Item

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		where := ` WHERE deleted_at IS NULL`
		args := []interface{}{}
		argIndex := 1

		if filter.Category != "" {
			where += ` AND category = $` + itoa(argIndex)
			args = append(args, filter.Category)
			argIndex++
		}
		if filter.Search != "" {
			where += ` AND (name ILIKE $` + itoa(argIndex) + ` OR name_ar ILIKE $` + itoa(argIndex) + `)`
			args = append(args, "%"+filter.Search+"%")
			argIndex++
		}
		if filter.LowStock {
			where += ` AND quantity <= reorder_level`
		}
		if filter.ExpiringIn > 0 {
			where += ` AND expiry_date IS NOT NULL AND expiry_date <= NOW() + ($` + itoa(argIndex) + ` * INTERVAL '1 day')`
			args = append(args, filter.ExpiringIn)
			argIndex++
		}

		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM items`+where, args...); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `SELECT ` + itemColumns + ` FROM items` + where +
			` ORDER BY name LIMIT $` + itoa(argIndex) + ` OFFSET $` + itoa(argIndex+1)
		args = append(args, perPage, offset)

		return r.db.SelectContext(ctx, &items, query, args...)
	})

	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// GetAllActive gets all non-deleted items for the tenant
func (r *ItemRepository) GetAllActive(ctx context.Context) ([]*Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var items []*Item

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + itemColumns + ` FROM items WHERE deleted_at IS NULL ORDER BY id`
		return r.db.SelectContext(ctx, &items, query)
	})

	if err != nil {
		return nil, err
	}

	return items, nil
}

// Update updates an inventory item's catalog attributes. Quantity is
// deliberately not part of this statement; it changes only through
// UpdateQuantity inside a movement transaction.
func (r *ItemRepository) Update(ctx context.Context, item *Item) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE items SET
				name = $2, name_ar = $3, description = $4, category = $5, unit = $6,
				reorder_level = $7, reorder_point = $8, max_stock = $9,
				unit_cost = $10, selling_price = $11, batch_number = $12,
				expiry_date = $13, min_temperature = $14, max_temperature = $15,
				min_humidity = $16, max_humidity = $17, supplier = $18,
				lead_time_days = $19, order_cost = $20, holding_cost_per_unit = $21,
				location_id = $22, notes = $23, notes_ar = $24,
				updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
		`

		result, err := r.db.ExecContext(ctx, query,
			item.ID, item.Name, item.NameAr, item.Description, item.Category,
			item.Unit, item.ReorderLevel, item.ReorderPoint, item.MaxStock,
			item.UnitCost, item.SellingPrice, item.BatchNumber, item.ExpiryDate,
			item.MinTemperature, item.MaxTemperature, item.MinHumidity,
			item.MaxHumidity, item.Supplier, item.LeadTimeDays, item.OrderCost,
			item.HoldingCostPerUnit, item.LocationID, item.Notes, item.NotesAr,
		)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.UnknownItem(item.ID)
		}

		return nil
	})
}

// UpdateQuantity applies the new cached quantity for an item. Must run
// inside the movement transaction so the ledger append and the cache update
// commit together. lastRestocked is set only for purchase/restock movements.
func (r *ItemRepository) UpdateQuantity(ctx context.Context, id string, quantity decimal.Decimal, lastRestocked *time.Time) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE items SET
				quantity = $2,
				last_restocked = COALESCE($3, last_restocked),
				updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
		`
		result, err := r.db.ExecContext(ctx, query, id, quantity, lastRestocked)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.UnknownItem(id)
		}

		return nil
	})
}

// SoftDelete soft deletes an item
func (r *ItemRepository) SoftDelete(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `UPDATE items SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.UnknownItem(id)
		}

		return nil
	})
}

// CountByCategory returns item counts grouped by category
func (r *ItemRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	type row struct {
		Category string `db:"category"`
		Count    int64  `db:"count"`
	}

	var rows []row
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT category, COUNT(*) AS count FROM items WHERE deleted_at IS NULL GROUP BY category`
		return r.db.SelectContext(ctx, &rows, query)
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Category] = rw.Count
	}
	return counts, nil
}

// itoa avoids fmt for tiny positional-placeholder indexes
func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
