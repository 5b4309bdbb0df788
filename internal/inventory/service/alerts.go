package service

import (
	"context"
	"time"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/messaging"
)

// alertStore is the slice of AlertRepository the alert services need
type alertStore interface {
	Create(ctx context.Context, alert *repository.Alert) error
	GetByID(ctx context.Context, id string) (*repository.Alert, error)
	GetOpenByItemAndType(ctx context.Context, itemID, alertType string) (*repository.Alert, error)
	List(ctx context.Context, page, perPage int, filter repository.AlertFilter) ([]*repository.Alert, int64, error)
	UpdateCondition(ctx context.Context, alert *repository.Alert) error
	SetStatus(ctx context.Context, alert *repository.Alert) error
	ResolveAllForItem(ctx context.Context, itemID, actor string, types ...string) (int64, error)
	ReactivateExpiredSnoozes(ctx context.Context) (int64, error)
	CountCreatedToday(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// alertPublisher publishes alert lifecycle events
type alertPublisher interface {
	PublishAlertEvent(ctx context.Context, eventType string, alert *repository.Alert, actor string)
}

// SystemActor attributes automatic transitions
const SystemActor = "system"

// AlertService handles operator-driven alert lifecycle transitions
type AlertService struct {
	alerts    alertStore
	publisher alertPublisher
	logger    *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(alerts alertStore, publisher alertPublisher, log *logger.Logger) *AlertService {
	return &AlertService{alerts: alerts, publisher: publisher, logger: log}
}

// Get returns an alert by ID
func (s *AlertService) Get(ctx context.Context, id string) (*repository.Alert, error) {
	return s.alerts.GetByID(ctx, id)
}

// List lists alerts with filtering
func (s *AlertService) List(ctx context.Context, page, perPage int, filter repository.AlertFilter) ([]*repository.Alert, int64, error) {
	return s.alerts.List(ctx, page, perPage, filter)
}

// Acknowledge transitions an active alert to acknowledged
func (s *AlertService) Acknowledge(ctx context.Context, id, actor string) (*repository.Alert, error) {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if alert.Status != repository.AlertStatusActive {
		return nil, errors.InvalidTransition(alert.Status, repository.AlertStatusAcknowledged)
	}

	now := time.Now().UTC()
	alert.Status = repository.AlertStatusAcknowledged
	alert.AcknowledgedBy = &actor
	alert.AcknowledgedAt = &now

	if err := s.alerts.SetStatus(ctx, alert); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PublishAlertEvent(ctx, messaging.EventAlertAcknowledged, alert, actor)
	}

	return alert, nil
}

// Snooze transitions an active alert to snoozed until the given time
func (s *AlertService) Snooze(ctx context.Context, id string, until time.Time, actor string) (*repository.Alert, error) {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if alert.Status != repository.AlertStatusActive {
		return nil, errors.InvalidTransition(alert.Status, repository.AlertStatusSnoozed)
	}
	if !until.After(time.Now()) {
		return nil, errors.BadRequest("snooze deadline must be in the future")
	}

	alert.Status = repository.AlertStatusSnoozed
	alert.SnoozeUntil = &until

	if err := s.alerts.SetStatus(ctx, alert); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PublishAlertEvent(ctx, messaging.EventAlertSnoozed, alert, actor)
	}

	return alert, nil
}

// Resolve transitions an open alert to resolved. Resolved is terminal.
func (s *AlertService) Resolve(ctx context.Context, id, actor, notes string) (*repository.Alert, error) {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if alert.Status == repository.AlertStatusResolved {
		return nil, errors.InvalidTransition(alert.Status, repository.AlertStatusResolved)
	}

	now := time.Now().UTC()
	alert.Status = repository.AlertStatusResolved
	alert.ResolvedBy = &actor
	alert.ResolvedAt = &now
	alert.SnoozeUntil = nil
	if notes != "" {
		alert.ResolutionNotes = &notes
	}

	if err := s.alerts.SetStatus(ctx, alert); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PublishAlertEvent(ctx, messaging.EventAlertResolved, alert, actor)
	}

	return alert, nil
}
