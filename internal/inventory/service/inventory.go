package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// itemRegistry is the slice of ItemRepository the inventory service needs
type itemRegistry interface {
	Create(ctx context.Context, item *repository.Item) error
	GetByID(ctx context.Context, id string) (*repository.Item, error)
	List(ctx context.Context, page, perPage int, filter repository.ItemFilter) ([]*repository.Item, int64, error)
	Update(ctx context.Context, item *repository.Item) error
	SoftDelete(ctx context.Context, id string) error
}

// ledgerReader reads ledger-derived facts about an item
type ledgerReader interface {
	LastMovementAt(ctx context.Context, itemID string) (*time.Time, error)
}

// alertResolver resolves alerts in bulk for an item
type alertResolver interface {
	ResolveAllForItem(ctx context.Context, itemID, actor string, types ...string) (int64, error)
}

// movementApplier records movements; satisfied by MovementService
type movementApplier interface {
	Apply(ctx context.Context, spec MovementSpec) (*repository.Movement, error)
}

// readingRecorder stores storage readings
type readingRecorder interface {
	Record(ctx context.Context, reading *repository.StorageReading) error
}

// InventoryService handles the item registry
type InventoryService struct {
	items    itemRegistry
	ledger   ledgerReader
	alerts   alertResolver
	applier  movementApplier
	readings readingRecorder
	logger   *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(items itemRegistry, ledger ledgerReader, alerts alertResolver, applier movementApplier, readings readingRecorder, log *logger.Logger) *InventoryService {
	return &InventoryService{
		items:    items,
		ledger:   ledger,
		alerts:   alerts,
		applier:  applier,
		readings: readings,
		logger:   log,
	}
}

// CreateItem validates and creates an item. The item row always starts at
// quantity zero so the ledger invariant holds; a positive initialQuantity
// is recorded as an opening adjustment movement.
func (s *InventoryService) CreateItem(ctx context.Context, item *repository.Item, initialQuantity decimal.Decimal, actor string) (*repository.Item, error) {
	if !repository.ValidCategory(item.Category) {
		return nil, errors.BadRequest("unknown category: " + item.Category)
	}
	if initialQuantity.IsNegative() {
		return nil, errors.BadRequest("initial quantity must not be negative")
	}
	if item.ReorderLevel.IsNegative() {
		return nil, errors.BadRequest("reorder_level must not be negative")
	}

	item.Quantity = decimal.Zero

	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}

	if initialQuantity.IsPositive() {
		reason := "opening stock"
		spec := MovementSpec{
			ItemID:       item.ID,
			MovementType: repository.MovementAdjustment,
			Direction:    1,
			Quantity:     initialQuantity,
			UnitCost:     &item.UnitCost,
			Reason:       &reason,
			PerformedBy:  actor,
		}
		if _, err := s.applier.Apply(ctx, spec); err != nil {
			return nil, err
		}
		item.Quantity = initialQuantity
	}

	s.logger.Info().Str("item_id", item.ID).Str("category", item.Category).Msg("item created")
	return item, nil
}

// ItemDetail is an item plus ledger-derived read fields
type ItemDetail struct {
	*repository.Item
	LastMovementAt *time.Time `json:"last_movement_at,omitempty"`
}

// GetItem gets an item by ID, with the time of its most recent movement
func (s *InventoryService) GetItem(ctx context.Context, id string) (*ItemDetail, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	last, err := s.ledger.LastMovementAt(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ItemDetail{Item: item, LastMovementAt: last}, nil
}

// ListItems lists items with filtering and pagination
func (s *InventoryService) ListItems(ctx context.Context, page, perPage int, filter repository.ItemFilter) ([]*repository.Item, int64, error) {
	return s.items.List(ctx, page, perPage, filter)
}

// UpdateItem updates an item's catalog attributes; quantity is untouched
func (s *InventoryService) UpdateItem(ctx context.Context, item *repository.Item) (*repository.Item, error) {
	if !repository.ValidCategory(item.Category) {
		return nil, errors.BadRequest("unknown category: " + item.Category)
	}

	current, err := s.items.GetByID(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	item.Quantity = current.Quantity
	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}

// DeleteItem soft deletes an item. Its open alerts are resolved first so
// nothing depends on cascade behavior.
func (s *InventoryService) DeleteItem(ctx context.Context, id, actor string) error {
	if _, err := s.items.GetByID(ctx, id); err != nil {
		return err
	}

	resolved, err := s.alerts.ResolveAllForItem(ctx, id, actor)
	if err != nil {
		return err
	}
	if resolved > 0 {
		s.logger.Info().Str("item_id", id).Int64("count", resolved).Msg("open alerts resolved before item deletion")
	}

	return s.items.SoftDelete(ctx, id)
}

// RecordReading stores a storage temperature/humidity observation for an
// item. The next alert scan compares it with the item's constraints.
func (s *InventoryService) RecordReading(ctx context.Context, itemID string, temperature, humidity *float64, actor string) (*repository.StorageReading, error) {
	if temperature == nil && humidity == nil {
		return nil, errors.BadRequest("reading requires temperature or humidity")
	}

	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return nil, err
	}

	reading := &repository.StorageReading{
		ItemID:      itemID,
		Temperature: temperature,
		Humidity:    humidity,
		RecordedBy:  actor,
		RecordedAt:  time.Now().UTC(),
	}

	if err := s.readings.Record(ctx, reading); err != nil {
		return nil, err
	}

	return reading, nil
}
