package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/handler"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/service"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/testutil"
)

const testBatchID = "3f2b8c91-5a44-4e0d-9c1a-7d7febc02a51"

func newMovementHandler(mockDB *testutil.MockDB) *handler.MovementHandler {
	testLog := logger.New("test", "test")
	batchRepo := repository.NewBatchRepository(mockDB.DB)
	movementRepo := repository.NewMovementRepository(mockDB.DB)
	productRepo := repository.NewProductRepository(mockDB.DB)
	ledger := service.NewLedgerService(mockDB.DB, batchRepo, movementRepo, productRepo, nil, testLog)
	return handler.NewMovementHandler(ledger, testLog)
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) (*httptest.ResponseRecorder, *httputil.Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h(rec, req)

	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, &resp
}

func batchRows(stock int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "product_id", "number", "expiration_date", "stock", "created_at", "updated_at",
	}).AddRow(testBatchID, "0e1d34c2-91ab-4b2f-8a77-d10ce9b3f604", 1001, now.AddDate(0, 6, 0), stock, now, now)
}

func TestCreateOutput_InsufficientStock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectBegin()
	mockDB.ExpectExec("SET LOCAL lock_timeout = '5s'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT * FROM batches WHERE id = $1 FOR UPDATE").
		WithArgs(testBatchID).
		WillReturnRows(batchRows(60))
	mockDB.Mock.ExpectRollback()

	h := newMovementHandler(mockDB)
	rec, resp := postJSON(t, h.CreateOutput, `{"batchId":"`+testBatchID+`","quantity":70}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "70")
	assert.Contains(t, resp.Error.Message, "60")

	mockDB.AssertExpectations(t)
}

func TestCreateOutput_UnknownBatchReturns404(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectBegin()
	mockDB.ExpectExec("SET LOCAL lock_timeout = '5s'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT * FROM batches WHERE id = $1 FOR UPDATE").
		WithArgs(testBatchID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mockDB.Mock.ExpectRollback()

	h := newMovementHandler(mockDB)
	rec, resp := postJSON(t, h.CreateOutput, `{"batchId":"`+testBatchID+`","quantity":5}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestCreateOutput_MissingFieldsRejected(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	h := newMovementHandler(mockDB)
	rec, resp := postJSON(t, h.CreateOutput, `{"quantity":5}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Details, "batchId")
}

func TestCreateOutput_NegativeQuantityRejected(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	h := newMovementHandler(mockDB)
	rec, resp := postJSON(t, h.CreateOutput, `{"batchId":"`+testBatchID+`","quantity":-5}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Details, "quantity")
}

func TestCreateOutput_MalformedJSONRejected(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	h := newMovementHandler(mockDB)
	rec, resp := postJSON(t, h.CreateOutput, `{"batchId": not-json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
}

func TestCreateInput_NewLotWithoutCaducationRejected(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	productID := "0e1d34c2-91ab-4b2f-8a77-d10ce9b3f604"
	now := time.Now()

	mockDB.ExpectQuery("SELECT * FROM products WHERE id = $1").
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "category_id", "name", "description", "purchase_price", "active", "created_at", "updated_at",
		}).AddRow(productID, "b47f7a47-27ea-4a56-8e12-1f2d27c9e3b1", "Aspirin 500mg", nil, "3.50", true, now, now))

	mockDB.Mock.ExpectBegin()
	mockDB.ExpectExec("SET LOCAL lock_timeout = '5s'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT * FROM batches WHERE product_id = $1 AND number = $2 FOR UPDATE").
		WithArgs(productID, 1001).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mockDB.Mock.ExpectRollback()

	h := newMovementHandler(mockDB)
	rec, resp := postJSON(t, h.CreateInput, `{"productId":"`+productID+`","batchNumber":1001,"quantity":10}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Details, "caducation")
}
