package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// itemStore is the slice of ItemRepository the movement applier needs
type itemStore interface {
	GetByID(ctx context.Context, id string) (*repository.Item, error)
	UpdateQuantity(ctx context.Context, id string, quantity decimal.Decimal, lastRestocked *time.Time) error
}

// movementStore is the slice of MovementRepository the applier needs
type movementStore interface {
	Append(ctx context.Context, m *repository.Movement) error
	GetByReference(ctx context.Context, itemID, reference string) (*repository.Movement, error)
	ListByItem(ctx context.Context, itemID string, filter repository.MovementFilter) ([]*repository.Movement, error)
	List(ctx context.Context, page, perPage int, filter repository.MovementFilter) ([]*repository.Movement, int64, error)
}

// transactor runs a function inside a tenant-scoped transaction
type transactor interface {
	WithTenantRLS(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error
}

// movementPublisher publishes movement events after commit
type movementPublisher interface {
	PublishMovementRecorded(ctx context.Context, m *repository.Movement)
	PublishItemReconciled(ctx context.Context, itemID, previous, replayed string)
}

// movementObserver is notified after a movement commits so the alert engine
// can reconcile the item's alerts
type movementObserver interface {
	OnMovementApplied(ctx context.Context, item *repository.Item, m *repository.Movement)
}

// MovementSpec describes one requested stock movement
type MovementSpec struct {
	ItemID        string           `json:"item_id" validate:"required"`
	MovementType  string           `json:"movement_type" validate:"required"`
	Quantity      decimal.Decimal  `json:"quantity" validate:"required"`
	Direction     int              `json:"direction,omitempty"` // required for adjustment: +1 or -1
	UnitCost      *decimal.Decimal `json:"unit_cost,omitempty"`
	BatchNumber   *string          `json:"batch_number,omitempty"`
	Reference     *string          `json:"reference,omitempty"`
	ReferenceType *string          `json:"reference_type,omitempty"`
	Reason        *string          `json:"reason,omitempty"`
	FromWarehouse *string          `json:"from_warehouse_id,omitempty"`
	ToWarehouse   *string          `json:"to_warehouse_id,omitempty"`
	PerformedBy   string           `json:"performed_by" validate:"required"`
}

// lockStripes serializes movement apply per (tenant, item) pair. 64 stripes
// keep contention low without a mutex per item.
const lockStripes = 64

// MovementService is the movement applier: it owns the only write path that
// touches item.quantity, keeping the cached quantity equal to the signed
// ledger sum at every commit.
type MovementService struct {
	db         transactor
	items      itemStore
	movements  movementStore
	publisher  movementPublisher
	observer   movementObserver
	quarantine *Quarantine
	logger     *logger.Logger
	locks      [lockStripes]sync.Mutex
}

// NewMovementService creates a new movement service. observer and quarantine
// may be nil when no alert engine is attached.
func NewMovementService(db transactor, items itemStore, movements movementStore, publisher movementPublisher, observer movementObserver, quarantine *Quarantine, log *logger.Logger) *MovementService {
	return &MovementService{
		db:         db,
		items:      items,
		movements:  movements,
		publisher:  publisher,
		observer:   observer,
		quarantine: quarantine,
		logger:     log,
	}
}

func (s *MovementService) lockFor(tenantID, itemID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(itemID))
	return &s.locks[h.Sum32()%lockStripes]
}

// Apply records a movement and updates the item's cached quantity in one
// transaction. Repeated applies with the same external reference return the
// original movement without re-applying. Transfers produce a paired
// out-then-in leg pair on the same item; the out leg is returned.
func (s *MovementService) Apply(ctx context.Context, spec MovementSpec) (*repository.Movement, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	mu := s.lockFor(tenantID, spec.ItemID)
	mu.Lock()
	defer mu.Unlock()

	var applied *repository.Movement
	var item *repository.Item
	var idempotentHit bool

	err = s.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		if spec.Reference != nil && *spec.Reference != "" {
			existing, err := s.movements.GetByReference(ctx, spec.ItemID, *spec.Reference)
			if err != nil {
				return err
			}
			if existing != nil {
				applied = existing
				idempotentHit = true
				return nil
			}
		}

		item, err = s.items.GetByID(ctx, spec.ItemID)
		if err != nil {
			return err
		}

		if spec.BatchNumber != nil && item.BatchNumber != nil && *spec.BatchNumber != *item.BatchNumber {
			return errors.InvalidMovement("batch_number does not match the item's current batch")
		}

		if spec.MovementType == repository.MovementTransfer {
			applied, err = s.applyTransferLegs(ctx, item, spec)
			return err
		}

		applied, err = s.applyOne(ctx, item, spec, resolveDirection(spec))
		return err
	})
	if err != nil {
		return nil, err
	}

	if idempotentHit {
		s.logger.Info().
			Str("item_id", spec.ItemID).
			Str("reference", *spec.Reference).
			Msg("movement already recorded for reference, returning existing")
		return applied, nil
	}

	if s.publisher != nil {
		s.publisher.PublishMovementRecorded(ctx, applied)
	}
	if s.observer != nil {
		s.observer.OnMovementApplied(ctx, item, applied)
	}

	return applied, nil
}

// applyOne appends a single ledger entry and moves the cached quantity.
// Runs inside the apply transaction.
func (s *MovementService) applyOne(ctx context.Context, item *repository.Item, spec MovementSpec, direction int) (*repository.Movement, error) {
	delta := spec.Quantity
	if direction < 0 {
		delta = delta.Neg()
	}

	newQuantity := item.Quantity.Add(delta)
	if newQuantity.IsNegative() {
		return nil, errors.InsufficientStock(item.ID, item.Quantity.String(), spec.Quantity.String())
	}

	warehouseID := spec.FromWarehouse
	if direction > 0 && spec.ToWarehouse != nil {
		warehouseID = spec.ToWarehouse
	}

	m := &repository.Movement{
		ItemID:        item.ID,
		MovementType:  spec.MovementType,
		Direction:     direction,
		Quantity:      spec.Quantity,
		UnitCost:      spec.UnitCost,
		QuantityAfter: newQuantity,
		Reference:     spec.Reference,
		ReferenceType: spec.ReferenceType,
		Reason:        spec.Reason,
		WarehouseID:   warehouseID,
		PerformedBy:   spec.PerformedBy,
	}

	if err := s.movements.Append(ctx, m); err != nil {
		return nil, err
	}

	var restocked *time.Time
	if spec.MovementType == repository.MovementPurchase || spec.MovementType == repository.MovementRestock {
		now := time.Now().UTC()
		restocked = &now
	}

	if err := s.items.UpdateQuantity(ctx, item.ID, newQuantity, restocked); err != nil {
		return nil, err
	}

	item.Quantity = newQuantity
	if restocked != nil {
		item.LastRestocked = restocked
	}

	return m, nil
}

// applyTransferLegs writes the out leg then the in leg. The pair nets to
// zero on the item's quantity but stamps both endpoints into the ledger.
func (s *MovementService) applyTransferLegs(ctx context.Context, item *repository.Item, spec MovementSpec) (*repository.Movement, error) {
	outSpec := spec
	outSpec.ToWarehouse = nil
	out, err := s.applyOne(ctx, item, outSpec, -1)
	if err != nil {
		return nil, err
	}

	inSpec := spec
	inSpec.FromWarehouse = nil
	// The in leg shares the transfer reference through reference_type; a
	// bare reference would trip the idempotency lookup on replay.
	inSpec.Reference = nil
	if _, err := s.applyOne(ctx, item, inSpec, 1); err != nil {
		return nil, err
	}

	return out, nil
}

// resolveDirection maps the movement type to a ledger sign, honoring the
// explicit direction for adjustments
func resolveDirection(spec MovementSpec) int {
	if d := repository.MovementDirection(spec.MovementType); d != 0 {
		return d
	}
	return spec.Direction
}

func validateSpec(spec MovementSpec) error {
	if !repository.ValidMovementType(spec.MovementType) {
		return errors.InvalidMovement("unknown movement type: " + spec.MovementType)
	}
	if !spec.Quantity.IsPositive() {
		return errors.InvalidMovement("quantity must be positive")
	}
	if spec.UnitCost != nil && spec.UnitCost.IsNegative() {
		return errors.InvalidMovement("unit_cost must not be negative")
	}
	if spec.PerformedBy == "" {
		return errors.InvalidMovement("performed_by is required")
	}

	switch spec.MovementType {
	case repository.MovementAdjustment:
		if spec.Direction != 1 && spec.Direction != -1 {
			return errors.InvalidMovement("adjustment requires direction +1 or -1")
		}
	case repository.MovementTransfer:
		if spec.FromWarehouse == nil || spec.ToWarehouse == nil {
			return errors.InvalidMovement("transfer requires from and to warehouses")
		}
		if *spec.FromWarehouse == *spec.ToWarehouse {
			return errors.InvalidMovement("transfer endpoints must differ")
		}
	}

	return nil
}

// ListByItem returns an item's ledger entries
func (s *MovementService) ListByItem(ctx context.Context, itemID string, filter repository.MovementFilter) ([]*repository.Movement, error) {
	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	return s.movements.ListByItem(ctx, itemID, filter)
}

// List returns recent movements across items
func (s *MovementService) List(ctx context.Context, page, perPage int, filter repository.MovementFilter) ([]*repository.Movement, int64, error) {
	return s.movements.List(ctx, page, perPage, filter)
}

// ReconcileResult reports a ledger replay against the cached quantity
type ReconcileResult struct {
	ItemID           string          `json:"item_id"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
	ReplayedQuantity decimal.Decimal `json:"replayed_quantity"`
	Drifted          bool            `json:"drifted"`
}

// Reconcile recomputes an item's quantity as the signed sum of its ledger
// and rewrites the cache when they diverge. This is the recovery path for a
// quarantined item.
func (s *MovementService) Reconcile(ctx context.Context, itemID string) (*ReconcileResult, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	mu := s.lockFor(tenantID, itemID)
	mu.Lock()
	defer mu.Unlock()

	var result *ReconcileResult

	err = s.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		item, err := s.items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}

		ledger, err := s.movements.ListByItem(ctx, itemID, repository.MovementFilter{})
		if err != nil {
			return err
		}

		replayed := decimal.Zero
		for _, m := range ledger {
			replayed = replayed.Add(m.SignedQuantity())
		}

		result = &ReconcileResult{
			ItemID:           itemID,
			PreviousQuantity: item.Quantity,
			ReplayedQuantity: replayed,
			Drifted:          !replayed.Equal(item.Quantity),
		}

		if !result.Drifted {
			return nil
		}

		return s.items.UpdateQuantity(ctx, itemID, replayed, nil)
	})
	if err != nil {
		return nil, err
	}

	if s.quarantine != nil {
		s.quarantine.Remove(tenantID, itemID)
	}

	if result.Drifted {
		s.logger.Warn().
			Str("item_id", itemID).
			Str("previous", result.PreviousQuantity.String()).
			Str("replayed", result.ReplayedQuantity.String()).
			Msg("item quantity drifted from ledger, cache rewritten")
		if s.publisher != nil {
			s.publisher.PublishItemReconciled(ctx, itemID, result.PreviousQuantity.String(), result.ReplayedQuantity.String())
		}
	}

	return result, nil
}
