package repository_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	apperrors "github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/testutil"
)

var alertColumns = []string{
	"id", "alert_type", "item_id", "item_name", "priority", "status",
	"title", "message", "recommended_action", "current_value",
	"threshold_value", "expiry_date", "snooze_until", "acknowledged_by",
	"acknowledged_at", "resolved_by", "resolved_at", "resolution_notes",
	"created_at", "updated_at",
}

func alertRow(id, alertType, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return testutil.MockRows(alertColumns...).AddRow(
		id, alertType, "item-1", "NPK Fertilizer", "high", status,
		"Low stock: NPK Fertilizer", "Only 8 kg left", nil, "8",
		"10", nil, nil, nil,
		nil, nil, nil, nil, now, now,
	)
}

func TestAlertRepository_Create(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	now := time.Now().UTC()
	mockDB.ExpectTenantQuery(testutil.TestTenantSchema, testutil.TestTenantID,
		"INSERT INTO inventory_alerts",
		testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	repo := repository.NewAlertRepository(mockDB.DB)
	threshold := mustDecimal(t, "10")
	current := mustDecimal(t, "8")
	alert := &repository.Alert{
		AlertType:      repository.AlertLowStock,
		ItemID:         "item-1",
		ItemName:       "NPK Fertilizer",
		Priority:       repository.PriorityHigh,
		Title:          "Low stock: NPK Fertilizer",
		Message:        "Only 8 kg left",
		CurrentValue:   &current,
		ThresholdValue: &threshold,
	}

	require.NoError(t, repo.Create(testutil.TenantContext(), alert))

	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, repository.AlertStatusActive, alert.Status)
	assert.True(t, alert.CreatedAt.Equal(now))

	mockDB.ExpectationsWereMet(t)
}

func TestAlertRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectRLSBegin(testutil.TestTenantSchema, testutil.TestTenantID)
	mockDB.ExpectQuery("FROM inventory_alerts WHERE id = $1").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectRollback()

	repo := repository.NewAlertRepository(mockDB.DB)
	_, err := repo.GetByID(testutil.TenantContext(), "missing")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "UNKNOWN_ALERT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestAlertRepository_GetOpenByItemAndType_Missing(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectRLSBegin(testutil.TestTenantSchema, testutil.TestTenantID)
	mockDB.ExpectQuery("WHERE item_id = $1 AND alert_type = $2 AND status != $3").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectRollback()

	repo := repository.NewAlertRepository(mockDB.DB)
	alert, err := repo.GetOpenByItemAndType(testutil.TenantContext(), "item-1", repository.AlertLowStock)

	require.NoError(t, err)
	assert.Nil(t, alert)

	mockDB.ExpectationsWereMet(t)
}

func TestAlertRepository_GetOpenByItemAndType(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectTenantQuery(testutil.TestTenantSchema, testutil.TestTenantID,
		"WHERE item_id = $1 AND alert_type = $2 AND status != $3",
		alertRow("alert-1", repository.AlertLowStock, repository.AlertStatusAcknowledged))

	repo := repository.NewAlertRepository(mockDB.DB)
	alert, err := repo.GetOpenByItemAndType(testutil.TenantContext(), "item-1", repository.AlertLowStock)

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "alert-1", alert.ID)
	assert.Equal(t, repository.AlertStatusAcknowledged, alert.Status)
	assert.True(t, alert.Open())

	mockDB.ExpectationsWereMet(t)
}

func TestAlertRepository_CountByStatus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	rows := testutil.MockRows("status", "count").
		AddRow(repository.AlertStatusActive, int64(4)).
		AddRow(repository.AlertStatusResolved, int64(11))
	mockDB.ExpectTenantQuery(testutil.TestTenantSchema, testutil.TestTenantID,
		"SELECT status, COUNT(*) AS count FROM inventory_alerts GROUP BY status", rows)

	repo := repository.NewAlertRepository(mockDB.DB)
	counts, err := repo.CountByStatus(testutil.TenantContext())

	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[repository.AlertStatusActive])
	assert.Equal(t, int64(11), counts[repository.AlertStatusResolved])

	mockDB.ExpectationsWereMet(t)
}

func TestAlertRepository_CountOpenByPriority(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	rows := testutil.MockRows("priority", "count").
		AddRow(repository.PriorityCritical, int64(1)).
		AddRow(repository.PriorityHigh, int64(3))
	mockDB.ExpectTenantQuery(testutil.TestTenantSchema, testutil.TestTenantID,
		"SELECT priority, COUNT(*) AS count FROM inventory_alerts WHERE status != $1 GROUP BY priority", rows)

	repo := repository.NewAlertRepository(mockDB.DB)
	counts, err := repo.CountOpenByPriority(testutil.TenantContext())

	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[repository.PriorityCritical])
	assert.Equal(t, int64(3), counts[repository.PriorityHigh])

	mockDB.ExpectationsWereMet(t)
}

func TestAlertRepository_CountCreatedToday(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectTenantQuery(testutil.TestTenantSchema, testutil.TestTenantID,
		"SELECT COUNT(*) FROM inventory_alerts WHERE created_at >=",
		testutil.MockRows("count").AddRow(int64(7)))

	repo := repository.NewAlertRepository(mockDB.DB)
	count, err := repo.CountCreatedToday(testutil.TenantContext())

	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	mockDB.ExpectationsWereMet(t)
}
