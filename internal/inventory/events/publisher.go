package events

import (
	"context"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/messaging"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// InventoryEventPublisher publishes inventory domain events. All methods
// are fire-and-forget: failures are logged but never fail the operation
// that triggered them. A nil publisher is a no-op so tests and tools can
// run without a broker.
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishMovementRecorded publishes a movement recorded event
func (p *InventoryEventPublisher) PublishMovementRecorded(ctx context.Context, m *repository.Movement) {
	if p == nil {
		return
	}

	tenantID, _ := tenant.TenantID(ctx)

	data := messaging.MovementRecordedEvent{
		MovementID:   m.ID,
		TenantID:     tenantID,
		ItemID:       m.ItemID,
		MovementType: m.MovementType,
		Quantity:     m.SignedQuantity().String(),
		NewQuantity:  m.QuantityAfter.String(),
		PerformedBy:  m.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", m.ItemID).Msg("failed to publish movement recorded event")
	}
}

// PublishItemReconciled publishes an item reconciled event
func (p *InventoryEventPublisher) PublishItemReconciled(ctx context.Context, itemID, previous, replayed string) {
	if p == nil {
		return
	}

	tenantID, _ := tenant.TenantID(ctx)

	data := messaging.ItemReconciledEvent{
		TenantID:         tenantID,
		ItemID:           itemID,
		PreviousQuantity: previous,
		ReplayedQuantity: replayed,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemReconciled, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", itemID).Msg("failed to publish item reconciled event")
	}
}

// PublishAlertEvent publishes an alert lifecycle event
func (p *InventoryEventPublisher) PublishAlertEvent(ctx context.Context, eventType string, alert *repository.Alert, actor string) {
	if p == nil {
		return
	}

	tenantID, _ := tenant.TenantID(ctx)

	data := messaging.AlertEvent{
		AlertID:   alert.ID,
		TenantID:  tenantID,
		ItemID:    alert.ItemID,
		AlertType: alert.AlertType,
		Priority:  alert.Priority,
		Status:    alert.Status,
		Message:   alert.Message,
		Actor:     actor,
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert event")
	}
}

// PublishSettingsChanged publishes a settings changed event
func (p *InventoryEventPublisher) PublishSettingsChanged(ctx context.Context) {
	if p == nil {
		return
	}

	tenantID, _ := tenant.TenantID(ctx)

	data := messaging.SettingsChangedEvent{TenantID: tenantID}

	if err := p.publisher.Publish(ctx, messaging.EventSettingsChanged, data); err != nil {
		p.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to publish settings changed event")
	}
}

// PublishTransferCompleted publishes a transfer completed event
func (p *InventoryEventPublisher) PublishTransferCompleted(ctx context.Context, t *repository.Transfer) {
	if p == nil {
		return
	}

	tenantID, _ := tenant.TenantID(ctx)

	data := messaging.TransferCompletedEvent{
		TransferID:     t.ID,
		TenantID:       tenantID,
		ItemID:         t.ItemID,
		FromLocationID: t.FromWarehouseID,
		ToLocationID:   t.ToWarehouseID,
		Quantity:       t.Quantity.String(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", t.ID).Msg("failed to publish transfer completed event")
	}
}
