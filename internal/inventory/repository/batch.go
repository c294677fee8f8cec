package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
)

// Batch is a lot of a single product: one lot number, one expiration date.
// Stock is derived state, maintained in the same transaction as every
// movement append; the movement log remains the source of truth.
type Batch struct {
	ID             string    `db:"id" json:"id"`
	ProductID      string    `db:"product_id" json:"productId"`
	Number         int       `db:"number" json:"number"`
	ExpirationDate time.Time `db:"expiration_date" json:"expirationDate"`
	Stock          int       `db:"stock" json:"stock"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// BatchWithProduct is a batch row joined with product and category names
// for display expansion.
type BatchWithProduct struct {
	Batch
	ProductName  string `db:"product_name" json:"productName"`
	CategoryID   string `db:"category_id" json:"categoryId"`
	CategoryName string `db:"category_name" json:"categoryName"`
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *Batch) error {
	return r.create(ctx, r.db, batch)
}

// CreateTx creates a new batch inside an open transaction
func (r *BatchRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, batch *Batch) error {
	return r.create(ctx, tx, batch)
}

func (r *BatchRepository) create(ctx context.Context, q sqlx.QueryerContext, batch *Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO batches (id, product_id, number, expiration_date, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := q.QueryRowxContext(ctx, query,
		batch.ID, batch.ProductID, batch.Number, batch.ExpirationDate, batch.Stock,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetForUpdate locks a batch row for the duration of the transaction.
// All stock-affecting operations on the same batch serialize on this lock;
// operations on other batches are unaffected.
func (r *BatchRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return &batch, nil
}

// GetByLotForUpdate resolves a batch by its (product, lot number) pair and
// locks it. Returns NotFound when no such lot exists yet.
func (r *BatchRepository) GetByLotForUpdate(ctx context.Context, tx *sqlx.Tx, productID string, number int) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE product_id = $1 AND number = $2 FOR UPDATE`
	if err := tx.GetContext(ctx, &batch, query, productID, number); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return &batch, nil
}

// List lists all batches with product expansion, soonest expiration first
func (r *BatchRepository) List(ctx context.Context) ([]*BatchWithProduct, error) {
	var batches []*BatchWithProduct
	query := `
		SELECT b.*, p.name AS product_name, c.id AS category_id, c.name AS category_name
		FROM batches b
		JOIN products p ON p.id = b.product_id
		JOIN categories c ON c.id = p.category_id
		ORDER BY b.expiration_date, b.number
	`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListByProduct lists batches for a product, soonest expiration first
func (r *BatchRepository) ListByProduct(ctx context.Context, productID string) ([]*Batch, error) {
	var batches []*Batch
	query := `SELECT * FROM batches WHERE product_id = $1 ORDER BY expiration_date, number`
	if err := r.db.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListExpiringBefore lists batches with remaining stock whose expiration
// date falls on or before the cutoff (including already expired lots),
// soonest first. The cutoff comes from the caller's clock, so filtering
// here and tier classification upstream agree at the window boundary.
func (r *BatchRepository) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*BatchWithProduct, error) {
	var batches []*BatchWithProduct
	query := `
		SELECT b.*, p.name AS product_name, c.id AS category_id, c.name AS category_name
		FROM batches b
		JOIN products p ON p.id = b.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE b.stock > 0 AND b.expiration_date <= $1
		ORDER BY b.expiration_date, p.name
	`
	if err := r.db.SelectContext(ctx, &batches, query, cutoff); err != nil {
		return nil, err
	}
	return batches, nil
}

// Update corrects a batch's lot number or expiration date. Stock is never
// writable through this path.
func (r *BatchRepository) Update(ctx context.Context, batch *Batch) error {
	query := `
		UPDATE batches SET number = $2, expiration_date = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, batch.ID, batch.Number, batch.ExpirationDate)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// SetStockTx sets the derived stock for a locked batch inside the same
// transaction that appends or removes a movement.
func (r *BatchRepository) SetStockTx(ctx context.Context, tx *sqlx.Tx, id string, stock int) error {
	query := `UPDATE batches SET stock = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, stock)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// Delete deletes a batch that has no recorded movements
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM batches WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return errors.Conflict("batch has recorded movements")
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// Count returns the total number of batches
func (r *BatchRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM batches`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, err
	}
	return count, nil
}
