package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Movement events
	EventMovementRecorded = "inventory.movement.recorded"
	EventItemReconciled   = "inventory.item.reconciled"

	// Alert lifecycle events
	EventAlertGenerated    = "inventory.alert.generated"
	EventAlertAcknowledged = "inventory.alert.acknowledged"
	EventAlertSnoozed      = "inventory.alert.snoozed"
	EventAlertResolved     = "inventory.alert.resolved"

	// Settings events
	EventSettingsChanged = "inventory.settings.changed"

	// Transfer events
	EventTransferCompleted = "inventory.transfer.completed"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}

// MovementRecordedEvent is published after a movement has been applied
type MovementRecordedEvent struct {
	MovementID   string `json:"movement_id"`
	TenantID     string `json:"tenant_id"`
	ItemID       string `json:"item_id"`
	MovementType string `json:"movement_type"`
	Quantity     string `json:"quantity"`
	NewQuantity  string `json:"new_quantity"`
	PerformedBy  string `json:"performed_by"`
}

// ItemReconciledEvent is published after a ledger replay recomputed an
// item's cached quantity.
type ItemReconciledEvent struct {
	TenantID         string `json:"tenant_id"`
	ItemID           string `json:"item_id"`
	PreviousQuantity string `json:"previous_quantity"`
	ReplayedQuantity string `json:"replayed_quantity"`
}

// AlertEvent is published on alert lifecycle transitions
type AlertEvent struct {
	AlertID   string `json:"alert_id"`
	TenantID  string `json:"tenant_id"`
	ItemID    string `json:"item_id"`
	AlertType string `json:"alert_type"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Actor     string `json:"actor,omitempty"`
}

// SettingsChangedEvent is published when tenant alert settings are updated.
// Scanner instances re-scan the tenant on receipt.
type SettingsChangedEvent struct {
	TenantID string `json:"tenant_id"`
}

// TransferCompletedEvent is published when a stock transfer reaches the
// completed state and its paired movements were applied.
type TransferCompletedEvent struct {
	TransferID     string `json:"transfer_id"`
	TenantID       string `json:"tenant_id"`
	ItemID         string `json:"item_id"`
	FromLocationID string `json:"from_location_id"`
	ToLocationID   string `json:"to_location_id"`
	Quantity       string `json:"quantity"`
}
