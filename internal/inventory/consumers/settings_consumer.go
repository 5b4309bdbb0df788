package consumers

import (
	"context"

	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/messaging"
)

// scanTrigger requests an immediate alert scan for a tenant
type scanTrigger interface {
	TriggerTenant(tenantID string)
}

// SettingsEventHandler handles settings change events (testable without RabbitMQ)
type SettingsEventHandler struct {
	scheduler scanTrigger
	logger    *logger.Logger
}

// NewSettingsEventHandler creates a new handler for testing purposes
func NewSettingsEventHandler(scheduler scanTrigger, log *logger.Logger) *SettingsEventHandler {
	return &SettingsEventHandler{
		scheduler: scheduler,
		logger:    log,
	}
}

// HandleSettingsChanged re-scans the tenant so new thresholds take effect
// without waiting for the next tick
func (h *SettingsEventHandler) HandleSettingsChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.SettingsChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal SettingsChangedEvent")
		return err
	}

	if data.TenantID == "" {
		h.logger.Warn().Str("event_id", event.ID).Msg("settings changed event without tenant id")
		return nil
	}

	h.scheduler.TriggerTenant(data.TenantID)
	h.logger.Info().Str("tenant_id", data.TenantID).Msg("alert scan triggered by settings change")
	return nil
}

// SettingsEventConsumer consumes settings events so every scanner instance
// picks up threshold changes, not just the one that served the update
type SettingsEventConsumer struct {
	consumer *messaging.Consumer
	handler  *SettingsEventHandler
	logger   *logger.Logger
}

// NewSettingsEventConsumer creates a new settings event consumer
func NewSettingsEventConsumer(rmq *messaging.RabbitMQ, scheduler scanTrigger, log *logger.Logger) (*SettingsEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "inventory-service.settings-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, "inventory.settings.#"); err != nil {
		return nil, err
	}

	handler := NewSettingsEventHandler(scheduler, log)
	consumer.RegisterHandler(messaging.EventSettingsChanged, handler.HandleSettingsChanged)

	return &SettingsEventConsumer{
		consumer: consumer,
		handler:  handler,
		logger:   log,
	}, nil
}

// Start starts consuming messages
func (c *SettingsEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}
