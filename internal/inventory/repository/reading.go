package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// StorageReading is one recorded temperature/humidity observation for an
// item's storage location. Readings are entered manually or imported in
// batches; the alert scanner compares the latest one against the item's
// storage constraints.
type StorageReading struct {
	ID          string    `db:"id" json:"id"`
	ItemID      string    `db:"item_id" json:"item_id"`
	Temperature *float64  `db:"temperature" json:"temperature,omitempty"`
	Humidity    *float64  `db:"humidity" json:"humidity,omitempty"`
	RecordedBy  string    `db:"recorded_by" json:"recorded_by"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

// ReadingRepository handles storage reading persistence
type ReadingRepository struct {
	db *database.DB
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *database.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Record stores a new reading
func (r *ReadingRepository) Record(ctx context.Context, reading *StorageReading) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if reading.ID == "" {
		reading.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO storage_readings (id, tenant_id, item_id, temperature, humidity, recorded_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING recorded_at
		`
		return r.db.QueryRowxContext(ctx, query,
			reading.ID, tenantID, reading.ItemID, reading.Temperature,
			reading.Humidity, reading.RecordedBy,
		).Scan(&reading.RecordedAt)
	})
}

// LatestByItem returns the most recent reading for an item, or nil when
// none has been recorded
func (r *ReadingRepository) LatestByItem(ctx context.Context, itemID string) (*StorageReading, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var reading StorageReading

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, item_id, temperature, humidity, recorded_by, recorded_at
			FROM storage_readings
			WHERE item_id = $1
			ORDER BY recorded_at DESC
			LIMIT 1
		`
		return r.db.GetContext(ctx, &reading, query, itemID)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &reading, nil
}
