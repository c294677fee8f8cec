package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Its aggregate stock is derived from the stocks
// of its batches, never stored on the product row.
type Product struct {
	ID            string          `db:"id" json:"id"`
	CategoryID    string          `db:"category_id" json:"categoryId"`
	Name          string          `db:"name" json:"name"`
	Description   *string         `db:"description" json:"description,omitempty"`
	PurchasePrice decimal.Decimal `db:"purchase_price" json:"purchasePrice"`
	Active        bool            `db:"active" json:"active"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// ProductWithStock is a product row joined with its category name and the
// sum of its batches' stock.
type ProductWithStock struct {
	Product
	CategoryName string `db:"category_name" json:"categoryName"`
	Stock        int    `db:"stock" json:"stock"`
}

// ProductUpdate carries a partial product update; nil fields are left
// untouched, which lets the dashboard flip `active` alone.
type ProductUpdate struct {
	CategoryID    *string          `json:"categoryId"`
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice"`
	Active        *bool            `json:"active"`
}

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
func (r *ProductRepository) Create(ctx context.Context, product *Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	query := `
		INSERT INTO products (id, category_id, name, description, purchase_price, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		product.ID, product.CategoryID, product.Name, product.Description,
		product.PurchasePrice, product.Active,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var product Product
	query := `SELECT * FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// GetWithStock gets a product with its category name and aggregate stock
func (r *ProductRepository) GetWithStock(ctx context.Context, id string) (*ProductWithStock, error) {
	var product ProductWithStock
	query := `
		SELECT p.*, c.name AS category_name, COALESCE(s.stock, 0) AS stock
		FROM products p
		JOIN categories c ON c.id = p.category_id
		LEFT JOIN (
			SELECT product_id, SUM(stock) AS stock FROM batches GROUP BY product_id
		) s ON s.product_id = p.id
		WHERE p.id = $1
	`
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// List lists products with category name and aggregate batch stock
func (r *ProductRepository) List(ctx context.Context) ([]*ProductWithStock, error) {
	var products []*ProductWithStock
	query := `
		SELECT p.*, c.name AS category_name, COALESCE(s.stock, 0) AS stock
		FROM products p
		JOIN categories c ON c.id = p.category_id
		LEFT JOIN (
			SELECT product_id, SUM(stock) AS stock FROM batches GROUP BY product_id
		) s ON s.product_id = p.id
		ORDER BY p.name
	`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// Count returns the total number of products
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM products`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, err
	}
	return count, nil
}

// CountByCategory returns the number of products referencing a category
func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM products WHERE category_id = $1`
	if err := r.db.GetContext(ctx, &count, query, categoryID); err != nil {
		return 0, err
	}
	return count, nil
}

// CountPerCategory returns product counts grouped by category name
func (r *ProductRepository) CountPerCategory(ctx context.Context) ([]*CategoryProductCount, error) {
	var counts []*CategoryProductCount
	query := `
		SELECT c.id AS category_id, c.name AS category_name, COUNT(p.id) AS product_count
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id
		GROUP BY c.id, c.name
		ORDER BY c.name
	`
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, err
	}
	return counts, nil
}

// CategoryProductCount is one slice of the products-per-category breakdown
type CategoryProductCount struct {
	CategoryID   string `db:"category_id" json:"categoryId"`
	CategoryName string `db:"category_name" json:"categoryName"`
	ProductCount int64  `db:"product_count" json:"count"`
}

// Update applies a partial update to a product
func (r *ProductRepository) Update(ctx context.Context, id string, update *ProductUpdate) (*Product, error) {
	query := `
		UPDATE products SET
			category_id = COALESCE($2, category_id),
			name = COALESCE($3, name),
			description = COALESCE($4, description),
			purchase_price = COALESCE($5, purchase_price),
			active = COALESCE($6, active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`

	var product Product
	err := r.db.GetContext(ctx, &product, query,
		id, update.CategoryID, update.Name, update.Description,
		update.PurchasePrice, update.Active,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return &product, nil
}

// Delete deletes a product
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return errors.Conflict("product still has batches")
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}

	return nil
}
