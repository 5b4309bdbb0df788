package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/internal/inventory/service"
	apperrors "github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/messaging"
)

func seedAlert(t *testing.T, alerts *fakeAlerts) *repository.Alert {
	t.Helper()
	alert := &repository.Alert{
		AlertType: repository.AlertLowStock,
		ItemID:    "item-1",
		ItemName:  "Copper Sulfate",
		Priority:  repository.PriorityHigh,
		Status:    repository.AlertStatusActive,
		Title:     "Low stock",
		Message:   "Copper Sulfate is below its reorder level",
	}
	require.NoError(t, alerts.Create(testCtx(), alert))
	return alert
}

func TestAcknowledge(t *testing.T) {
	alerts := &fakeAlerts{}
	pub := &fakePublisher{}
	svc := service.NewAlertService(alerts, pub, testLog)
	alert := seedAlert(t, alerts)

	got, err := svc.Acknowledge(testCtx(), alert.ID, "manager-1")
	require.NoError(t, err)

	assert.Equal(t, repository.AlertStatusAcknowledged, got.Status)
	require.NotNil(t, got.AcknowledgedBy)
	assert.Equal(t, "manager-1", *got.AcknowledgedBy)
	assert.NotNil(t, got.AcknowledgedAt)

	require.Len(t, pub.events, 1)
	assert.Equal(t, messaging.EventAlertAcknowledged, pub.events[0].kind)
	assert.Equal(t, "manager-1", pub.events[0].actor)

	// Acknowledging twice is an invalid transition
	_, err = svc.Acknowledge(testCtx(), alert.ID, "manager-1")
	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "INVALID_TRANSITION", appErr.Code)
}

func TestSnooze(t *testing.T) {
	alerts := &fakeAlerts{}
	pub := &fakePublisher{}
	svc := service.NewAlertService(alerts, pub, testLog)
	alert := seedAlert(t, alerts)

	until := time.Now().Add(4 * time.Hour)
	got, err := svc.Snooze(testCtx(), alert.ID, until, "manager-1")
	require.NoError(t, err)

	assert.Equal(t, repository.AlertStatusSnoozed, got.Status)
	require.NotNil(t, got.SnoozeUntil)
	assert.True(t, got.SnoozeUntil.Equal(until))
	assert.Equal(t, []string{messaging.EventAlertSnoozed}, pub.kinds())
}

func TestSnooze_RequiresFutureDeadline(t *testing.T) {
	alerts := &fakeAlerts{}
	svc := service.NewAlertService(alerts, &fakePublisher{}, testLog)
	alert := seedAlert(t, alerts)

	_, err := svc.Snooze(testCtx(), alert.ID, time.Now().Add(-time.Minute), "manager-1")
	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "BAD_REQUEST", appErr.Code)
	assert.Equal(t, repository.AlertStatusActive, alert.Status)
}

func TestSnooze_OnlyFromActive(t *testing.T) {
	alerts := &fakeAlerts{}
	svc := service.NewAlertService(alerts, &fakePublisher{}, testLog)
	alert := seedAlert(t, alerts)
	alert.Status = repository.AlertStatusAcknowledged

	_, err := svc.Snooze(testCtx(), alert.ID, time.Now().Add(time.Hour), "manager-1")
	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "INVALID_TRANSITION", appErr.Code)
}

func TestResolve_IsTerminal(t *testing.T) {
	alerts := &fakeAlerts{}
	pub := &fakePublisher{}
	svc := service.NewAlertService(alerts, pub, testLog)
	alert := seedAlert(t, alerts)

	// Acknowledged alerts can still be resolved
	_, err := svc.Acknowledge(testCtx(), alert.ID, "manager-1")
	require.NoError(t, err)

	got, err := svc.Resolve(testCtx(), alert.ID, "manager-1", "counted during stock take")
	require.NoError(t, err)
	assert.Equal(t, repository.AlertStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedBy)
	assert.Equal(t, "manager-1", *got.ResolvedBy)
	require.NotNil(t, got.ResolutionNotes)
	assert.Equal(t, "counted during stock take", *got.ResolutionNotes)

	_, err = svc.Resolve(testCtx(), alert.ID, "manager-1", "")
	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "INVALID_TRANSITION", appErr.Code)
}

func TestResolve_ClearsSnoozeDeadline(t *testing.T) {
	alerts := &fakeAlerts{}
	svc := service.NewAlertService(alerts, &fakePublisher{}, testLog)
	alert := seedAlert(t, alerts)

	_, err := svc.Snooze(testCtx(), alert.ID, time.Now().Add(time.Hour), "manager-1")
	require.NoError(t, err)

	got, err := svc.Resolve(testCtx(), alert.ID, "manager-1", "")
	require.NoError(t, err)
	assert.Nil(t, got.SnoozeUntil)
	assert.Nil(t, got.ResolutionNotes)
}

func TestAlertGet_Unknown(t *testing.T) {
	svc := service.NewAlertService(&fakeAlerts{}, &fakePublisher{}, testLog)

	_, err := svc.Get(testCtx(), "missing")
	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "UNKNOWN_ALERT", appErr.Code)
}
