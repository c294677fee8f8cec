package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/testutil"
)

func TestBatchRepository_ListExpiringBefore_BindsCallerCutoff(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	cutoff := time.Date(2024, time.April, 14, 0, 0, 0, 0, time.UTC)
	mockDB.ExpectQuery("WHERE b.stock > 0 AND b.expiration_date <= $1").
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "number", "expiration_date", "stock", "created_at", "updated_at", "product_name", "category_id", "category_name"}))

	repo := repository.NewBatchRepository(mockDB.DB)
	batches, err := repo.ListExpiringBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Empty(t, batches)

	mockDB.AssertExpectations(t)
}

func TestBatchRepository_GetForUpdate_LockTimeout(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM batches WHERE id = $1 FOR UPDATE").
		WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	repo := repository.NewBatchRepository(mockDB.DB)
	_, err = repo.GetForUpdate(context.Background(), tx, "3f2b8c91-5a44-4e0d-9c1a-7d7febc02a51")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrLockTimeout))
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "LOCK_TIMEOUT", appErr.Code)
}
