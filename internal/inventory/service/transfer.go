package service

import (
	"context"
	"time"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// transferStore is the slice of WarehouseRepository the transfer service needs
type transferStore interface {
	GetWarehouse(ctx context.Context, id string) (*repository.Warehouse, error)
	CreateTransfer(ctx context.Context, t *repository.Transfer) error
	GetTransfer(ctx context.Context, id string) (*repository.Transfer, error)
	ListTransfers(ctx context.Context, status string, page, perPage int) ([]*repository.Transfer, int64, error)
	UpdateTransferStatus(ctx context.Context, t *repository.Transfer) error
}

// transferItemStore validates items and their stock before a transfer
type transferItemStore interface {
	GetByID(ctx context.Context, id string) (*repository.Item, error)
}

// transferPublisher publishes transfer completion events
type transferPublisher interface {
	PublishTransferCompleted(ctx context.Context, t *repository.Transfer)
}

// TransferService runs the transfer state machine:
// pending -> approved -> in_transit -> completed, with cancellation allowed
// from every state before completion. Stock is recorded through the ledger
// only on completion, as a paired out/in movement.
type TransferService struct {
	transfers transferStore
	items     transferItemStore
	applier   movementApplier
	publisher transferPublisher
	logger    *logger.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(transfers transferStore, items transferItemStore, applier movementApplier, publisher transferPublisher, log *logger.Logger) *TransferService {
	return &TransferService{
		transfers: transfers,
		items:     items,
		applier:   applier,
		publisher: publisher,
		logger:    log,
	}
}

// Create validates and records a transfer request in pending status. Stock
// is checked against the current quantity but only debited on completion.
func (s *TransferService) Create(ctx context.Context, t *repository.Transfer) (*repository.Transfer, error) {
	if !t.Quantity.IsPositive() {
		return nil, errors.InvalidMovement("transfer quantity must be positive")
	}
	if t.FromWarehouseID == t.ToWarehouseID {
		return nil, errors.InvalidMovement("transfer requires distinct source and destination warehouses")
	}

	item, err := s.items.GetByID(ctx, t.ItemID)
	if err != nil {
		return nil, err
	}
	if item.Quantity.LessThan(t.Quantity) {
		return nil, errors.InsufficientStock(t.ItemID, item.Quantity.String(), t.Quantity.String())
	}

	if _, err := s.transfers.GetWarehouse(ctx, t.FromWarehouseID); err != nil {
		return nil, err
	}
	if _, err := s.transfers.GetWarehouse(ctx, t.ToWarehouseID); err != nil {
		return nil, err
	}

	t.Status = repository.TransferPending
	if err := s.transfers.CreateTransfer(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", t.ID).
		Str("item_id", t.ItemID).
		Str("from", t.FromWarehouseID).
		Str("to", t.ToWarehouseID).
		Msg("transfer requested")

	return t, nil
}

// Get gets a transfer by ID
func (s *TransferService) Get(ctx context.Context, id string) (*repository.Transfer, error) {
	return s.transfers.GetTransfer(ctx, id)
}

// List lists transfers, optionally by status
func (s *TransferService) List(ctx context.Context, status string, page, perPage int) ([]*repository.Transfer, int64, error) {
	if status != "" && !validTransferStatus(status) {
		return nil, 0, errors.BadRequest("unknown transfer status: " + status)
	}
	return s.transfers.ListTransfers(ctx, status, page, perPage)
}

// Approve approves a pending transfer
func (s *TransferService) Approve(ctx context.Context, id, actor string) (*repository.Transfer, error) {
	t, err := s.transfers.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != repository.TransferPending {
		return nil, errors.InvalidTransition(t.Status, repository.TransferApproved)
	}

	now := time.Now().UTC()
	t.Status = repository.TransferApproved
	t.ApprovedBy = &actor
	t.ApprovedAt = &now
	if err := s.transfers.UpdateTransferStatus(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Dispatch marks an approved transfer in transit
func (s *TransferService) Dispatch(ctx context.Context, id string) (*repository.Transfer, error) {
	t, err := s.transfers.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != repository.TransferApproved {
		return nil, errors.InvalidTransition(t.Status, repository.TransferInTransit)
	}

	t.Status = repository.TransferInTransit
	if err := s.transfers.UpdateTransferStatus(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Complete finishes an approved or in-transit transfer, debiting and
// crediting the item ledger as one paired movement. The movement carries the
// transfer ID as its reference so a retried completion does not apply twice.
func (s *TransferService) Complete(ctx context.Context, id, actor string) (*repository.Transfer, error) {
	t, err := s.transfers.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != repository.TransferApproved && t.Status != repository.TransferInTransit {
		return nil, errors.InvalidTransition(t.Status, repository.TransferCompleted)
	}

	reference := t.ID
	referenceType := "transfer"
	spec := MovementSpec{
		ItemID:        t.ItemID,
		MovementType:  repository.MovementTransfer,
		Quantity:      t.Quantity,
		Reference:     &reference,
		ReferenceType: &referenceType,
		FromWarehouse: &t.FromWarehouseID,
		ToWarehouse:   &t.ToWarehouseID,
		PerformedBy:   actor,
	}
	if _, err := s.applier.Apply(ctx, spec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t.Status = repository.TransferCompleted
	t.CompletedBy = &actor
	t.CompletedAt = &now
	if err := s.transfers.UpdateTransferStatus(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info().Str("transfer_id", t.ID).Str("item_id", t.ItemID).Msg("transfer completed")
	if s.publisher != nil {
		s.publisher.PublishTransferCompleted(ctx, t)
	}

	return t, nil
}

// Cancel cancels a transfer that has not completed
func (s *TransferService) Cancel(ctx context.Context, id string) (*repository.Transfer, error) {
	t, err := s.transfers.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == repository.TransferCompleted || t.Status == repository.TransferCancelled {
		return nil, errors.InvalidTransition(t.Status, repository.TransferCancelled)
	}

	t.Status = repository.TransferCancelled
	if err := s.transfers.UpdateTransferStatus(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func validTransferStatus(s string) bool {
	switch s {
	case repository.TransferPending, repository.TransferApproved, repository.TransferInTransit, repository.TransferCompleted, repository.TransferCancelled:
		return true
	}
	return false
}
