package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// InventoryMigrations is the schema applied to the test database. It
// mirrors the production schema: catalog reference data plus the batch
// ledger with its non-negativity constraints.
var InventoryMigrations = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id UUID PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT categories_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		description TEXT,
		category_id UUID NOT NULL REFERENCES categories(id),
		purchase_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT purchase_price_non_negative CHECK (purchase_price >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id UUID PRIMARY KEY,
		product_id UUID NOT NULL REFERENCES products(id),
		number INTEGER NOT NULL,
		expiration_date DATE NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT batches_product_id_number_key UNIQUE (product_id, number),
		CONSTRAINT stock_non_negative CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		id UUID PRIMARY KEY,
		batch_id UUID NOT NULL REFERENCES batches(id),
		type VARCHAR(10) NOT NULL CHECK (type IN ('input', 'output')),
		quantity INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT quantity_positive CHECK (quantity > 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_product ON batches(product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_expiration ON batches(expiration_date)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_batch ON movements(batch_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_created ON movements(created_at)`,
}

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container and applies
// the inventory schema.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    if testing.Short() {
//	        os.Exit(m.Run())
//	    }
//	    ctx := context.Background()
//	    suite, err := testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer suite.Cleanup(ctx)
//	    os.Exit(m.Run())
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	wrappedDB, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	for _, migration := range InventoryMigrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return nil, err
		}
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        wrappedDB,
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// Reset truncates all inventory tables. Call at the start of each test so
// tests do not see each other's rows.
func (s *IntegrationSuite) Reset(t *testing.T, ctx context.Context) {
	t.Helper()

	_, err := s.RawDB.ExecContext(ctx,
		`TRUNCATE movements, batches, products, categories CASCADE`)
	if err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}
}

// Cleanup terminates the shared container
func (s *IntegrationSuite) Cleanup(ctx context.Context) {
	if s.DB != nil {
		s.DB.Close()
	}
	if s.Container != nil {
		s.Container.Terminate(ctx)
	}
}
