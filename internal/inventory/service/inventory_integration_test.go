package service_test

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/expiry"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/service"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer suite.Cleanup(ctx)

	os.Exit(m.Run())
}

type testServices struct {
	catalog *service.CatalogService
	ledger  *service.LedgerService
	reports *service.ReportService
}

func newTestServices() *testServices {
	categoryRepo := repository.NewCategoryRepository(suite.DB)
	productRepo := repository.NewProductRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)
	testLog := logger.New("test", "test")

	return &testServices{
		catalog: service.NewCatalogService(categoryRepo, productRepo, nil, testLog),
		ledger:  service.NewLedgerService(suite.DB, batchRepo, movementRepo, productRepo, nil, testLog),
		reports: service.NewReportService(categoryRepo, productRepo, batchRepo, movementRepo, testLog),
	}
}

func createTestProduct(t *testing.T, ctx context.Context, svc *testServices, categoryName, productName string) *repository.Product {
	t.Helper()

	category, err := svc.catalog.CreateCategory(ctx, &service.CreateCategoryInput{Name: categoryName})
	require.NoError(t, err)

	product, err := svc.catalog.CreateProduct(ctx, &service.CreateProductInput{
		Name:          productName,
		CategoryID:    category.ID,
		PurchasePrice: decimal.NewFromFloat(3.50),
	})
	require.NoError(t, err)
	return product
}

func daysFromNow(days int) *time.Time {
	d := time.Now().UTC().AddDate(0, 0, days).Truncate(24 * time.Hour)
	return &d
}

func TestLedger_InputOutputLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Analgesics", "Aspirin 500mg")

	// First input opens the batch implicitly
	movement, batch, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 1001,
		Quantity:    100,
		Caducation:  daysFromNow(10),
	})
	require.NoError(t, err)
	assert.Equal(t, repository.MovementTypeInput, movement.Type)
	assert.Equal(t, 100, batch.Stock)

	// Expiry classification: 10 days out lands in the warning tier
	c := expiry.Classify(batch.ExpirationDate, time.Now())
	assert.Equal(t, expiry.TierWarning, c.Tier)

	// Output reduces stock
	_, batch2, err := svc.ledger.RecordOutput(ctx, &service.RecordOutputInput{
		BatchID:  batch.ID,
		Quantity: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, batch2.Stock)

	// Overdraw is refused with a conflict
	_, _, err = svc.ledger.RecordOutput(ctx, &service.RecordOutputInput{
		BatchID:  batch.ID,
		Quantity: 70,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	// Stock is unchanged after the refused output
	reloaded, err := svc.ledger.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, reloaded.Stock)
}

func TestLedger_SecondInputReusesBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Antibiotics", "Amoxicillin 250mg")

	_, first, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 7,
		Quantity:    30,
		Caducation:  daysFromNow(120),
	})
	require.NoError(t, err)

	// Same lot number again: no caducation needed, stock accumulates
	_, second, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 7,
		Quantity:    20,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 50, second.Stock)
}

func TestLedger_NewLotRequiresCaducation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Vitamins", "Vitamin C 1g")

	_, _, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 55,
		Quantity:    10,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLedger_DeleteMovementReplaysBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Antacids", "Omeprazole 20mg")

	firstInput, batch, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 3,
		Quantity:    100,
		Caducation:  daysFromNow(200),
	})
	require.NoError(t, err)

	_, _, err = svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 3,
		Quantity:    50,
	})
	require.NoError(t, err)

	outputMove, _, err := svc.ledger.RecordOutput(ctx, &service.RecordOutputInput{
		BatchID:  batch.ID,
		Quantity: 120,
	})
	require.NoError(t, err)

	// Removing the first input would leave the output uncovered
	err = svc.ledger.DeleteMovement(ctx, firstInput.ID, repository.MovementTypeInput)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	// Removing the output works and restores the full balance
	err = svc.ledger.DeleteMovement(ctx, outputMove.ID, repository.MovementTypeOutput)
	require.NoError(t, err)

	reloaded, err := svc.ledger.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, reloaded.Stock)

	// Now the first input is free to go
	err = svc.ledger.DeleteMovement(ctx, firstInput.ID, repository.MovementTypeInput)
	require.NoError(t, err)

	reloaded, err = svc.ledger.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, reloaded.Stock)
}

func TestLedger_DeleteMovementTypeScoped(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Sedatives", "Diazepam 5mg")

	inputMove, _, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 12,
		Quantity:    10,
		Caducation:  daysFromNow(300),
	})
	require.NoError(t, err)

	// The output endpoint cannot delete an input movement
	err = svc.ledger.DeleteMovement(ctx, inputMove.ID, repository.MovementTypeOutput)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLedger_ConcurrentOutputsNeverOverdraw(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Analgesics", "Ibuprofen 400mg")

	_, batch, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 42,
		Quantity:    100,
		Caducation:  daysFromNow(90),
	})
	require.NoError(t, err)

	// 20 workers each drawing 10 against stock of 100: exactly 10 succeed
	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.ledger.RecordOutput(ctx, &service.RecordOutputInput{
				BatchID:  batch.ID,
				Quantity: 10,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, refused := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.True(t, errors.Is(err, errors.ErrInsufficientStock))
			refused++
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, refused)

	reloaded, err := svc.ledger.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Stock)
}

func TestLedger_ConcurrentFirstInputsShareOneBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Antacids", "Omeprazole 20mg")

	// Both workers see the lot as absent and race on creating it; the
	// loser must append to the winner's batch rather than fail.
	const workers = 2
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			_, _, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
				ProductID:   product.ID,
				BatchNumber: 77,
				Quantity:    qty,
				Caducation:  daysFromNow(60),
			})
			results <- err
		}(10 * (i + 1))
	}
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}

	batches, err := svc.ledger.ListBatchesByProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 30, batches[0].Stock)
}

func TestCatalog_DeleteCategoryWithProductsConflicts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Dermatology", "Hydrocortisone cream")

	err := svc.catalog.DeleteCategory(ctx, product.CategoryID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	// After the product goes, the category can follow
	require.NoError(t, svc.catalog.DeleteProduct(ctx, product.ID))
	require.NoError(t, svc.catalog.DeleteCategory(ctx, product.CategoryID))
}

func TestCatalog_DuplicateCategoryNameConflicts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()

	_, err := svc.catalog.CreateCategory(ctx, &service.CreateCategoryInput{Name: "Analgesics"})
	require.NoError(t, err)

	_, err = svc.catalog.CreateCategory(ctx, &service.CreateCategoryInput{Name: "Analgesics"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestCatalog_ProductStockAggregatesBatches(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Analgesics", "Paracetamol 500mg")

	_, _, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 1,
		Quantity:    30,
		Caducation:  daysFromNow(60),
	})
	require.NoError(t, err)

	_, _, err = svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 2,
		Quantity:    45,
		Caducation:  daysFromNow(90),
	})
	require.NoError(t, err)

	withStock, err := svc.catalog.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, withStock.Stock)
}

func TestReports_DashboardViews(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Analgesics", "Naproxen 250mg")

	_, batch, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 9,
		Quantity:    80,
		Caducation:  daysFromNow(5),
	})
	require.NoError(t, err)

	_, _, err = svc.ledger.RecordOutput(ctx, &service.RecordOutputInput{
		BatchID:  batch.ID,
		Quantity: 15,
	})
	require.NoError(t, err)

	stats, err := svc.reports.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalProducts)
	assert.EqualValues(t, 1, stats.TotalCategories)
	assert.EqualValues(t, 1, stats.TotalBatches)
	assert.EqualValues(t, 1, stats.InputsThisMonth)
	assert.Equal(t, 1, stats.ExpiringBatches)

	series, err := svc.reports.MovementSeries(ctx)
	require.NoError(t, err)
	require.Len(t, series, service.MovementSeriesDays)
	today := series[len(series)-1]
	assert.Equal(t, 80, today.Inputs)
	assert.Equal(t, 15, today.Outputs)

	byCategory, err := svc.reports.ProductsByCategory(ctx)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Analgesics", byCategory[0].CategoryName)
	assert.EqualValues(t, 1, byCategory[0].ProductCount)

	activity, err := svc.reports.RecentActivity(ctx)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, repository.MovementTypeOutput, activity[0].Type)
	assert.Equal(t, "Naproxen 250mg", activity[0].ProductName)

	alerts, err := svc.reports.ExpirationAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, batch.ID, alerts[0].BatchID)
	assert.Equal(t, string(expiry.TierNearExpiry), alerts[0].Tier)
	assert.Equal(t, 65, alerts[0].Stock)
}

func TestReports_DepletedBatchNotAlerted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(t, ctx)

	svc := newTestServices()
	product := createTestProduct(t, ctx, svc, "Analgesics", "Ketorolac 10mg")

	_, batch, err := svc.ledger.RecordInput(ctx, &service.RecordInputInput{
		ProductID:   product.ID,
		BatchNumber: 77,
		Quantity:    20,
		Caducation:  daysFromNow(3),
	})
	require.NoError(t, err)

	_, _, err = svc.ledger.RecordOutput(ctx, &service.RecordOutputInput{
		BatchID:  batch.ID,
		Quantity: 20,
	})
	require.NoError(t, err)

	alerts, err := svc.reports.ExpirationAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
