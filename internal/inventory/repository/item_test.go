package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	apperrors "github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/testutil"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

var itemColumns = []string{
	"id", "name", "name_ar", "description", "category", "quantity", "unit",
	"reorder_level", "reorder_point", "max_stock", "unit_cost", "selling_price",
	"batch_number", "expiry_date", "min_temperature", "max_temperature",
	"min_humidity", "max_humidity", "supplier", "lead_time_days", "order_cost",
	"holding_cost_per_unit", "location_id", "notes", "notes_ar", "last_restocked",
	"created_at", "updated_at",
}

func itemRow(id, name string) *sqlmock.Rows {
	now := time.Now().UTC()
	return testutil.MockRows(itemColumns...).AddRow(
		id, name, nil, nil, "fertilizer", "120.5", "kg",
		"10", nil, nil, "5.25", nil,
		nil, nil, nil, nil,
		nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil,
		now, now,
	)
}

func TestItemRepository_GetByID(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectTenantQuery(testutil.TestTenantSchema, testutil.TestTenantID,
		"FROM items WHERE id = $1 AND deleted_at IS NULL", itemRow("item-1", "NPK Fertilizer"))

	repo := repository.NewItemRepository(mockDB.DB)
	item, err := repo.GetByID(testutil.TenantContext(), "item-1")
	require.NoError(t, err)

	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, "NPK Fertilizer", item.Name)
	assert.Equal(t, "fertilizer", item.Category)
	assert.True(t, item.Quantity.Equal(mustDecimal(t, "120.5")))
	assert.True(t, item.ReorderLevel.Equal(mustDecimal(t, "10")))
	assert.Nil(t, item.ExpiryDate)

	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectRLSBegin(testutil.TestTenantSchema, testutil.TestTenantID)
	mockDB.ExpectQuery("FROM items WHERE id = $1 AND deleted_at IS NULL").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectRollback()

	repo := repository.NewItemRepository(mockDB.DB)
	_, err := repo.GetByID(testutil.TenantContext(), "missing")

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "UNKNOWN_ITEM", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_GetByID_NoTenant(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewItemRepository(mockDB.DB)
	_, err := repo.GetByID(context.Background(), "item-1")
	assert.Error(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_UpdateQuantity(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectTenantExec(testutil.TestTenantSchema, testutil.TestTenantID,
		"UPDATE items SET", sqlmock.NewResult(0, 1))

	repo := repository.NewItemRepository(mockDB.DB)
	err := repo.UpdateQuantity(testutil.TenantContext(), "item-1", mustDecimal(t, "75"), nil)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_UpdateQuantity_Unknown(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectRLSBegin(testutil.TestTenantSchema, testutil.TestTenantID)
	mockDB.ExpectExec("UPDATE items SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectRollback()

	repo := repository.NewItemRepository(mockDB.DB)
	err := repo.UpdateQuantity(testutil.TenantContext(), "missing", mustDecimal(t, "75"), nil)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "UNKNOWN_ITEM", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_SoftDelete(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectTenantExec(testutil.TestTenantSchema, testutil.TestTenantID,
		"UPDATE items SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL",
		sqlmock.NewResult(0, 1))

	repo := repository.NewItemRepository(mockDB.DB)
	require.NoError(t, repo.SoftDelete(testutil.TenantContext(), "item-1"))

	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_List_LowStockFilter(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectRLSBegin(testutil.TestTenantSchema, testutil.TestTenantID)
	mockDB.ExpectQuery("SELECT COUNT(*) FROM items WHERE deleted_at IS NULL AND quantity <= reorder_level").
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.ExpectQuery("AND quantity <= reorder_level ORDER BY name LIMIT $1 OFFSET $2").
		WillReturnRows(itemRow("item-1", "NPK Fertilizer"))
	mockDB.ExpectCommit()

	repo := repository.NewItemRepository(mockDB.DB)
	items, total, err := repo.List(testutil.TenantContext(), 1, 20, repository.ItemFilter{LowStock: true})
	require.NoError(t, err)

	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)

	mockDB.ExpectationsWereMet(t)
}
