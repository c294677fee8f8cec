package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/events"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/messaging"
)

// CatalogService owns the category and product reference data
type CatalogService struct {
	categories *repository.CategoryRepository
	products   *repository.ProductRepository
	events     *events.InventoryEventPublisher
	logger     *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	categories *repository.CategoryRepository,
	products *repository.ProductRepository,
	eventPublisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		categories: categories,
		products:   products,
		events:     eventPublisher,
		logger:     log,
	}
}

// CreateCategoryInput is the input for creating a category
type CreateCategoryInput struct {
	Name        string  `json:"name" validate:"required,min=1,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// CreateCategory creates a new category. Names are unique.
func (s *CatalogService) CreateCategory(ctx context.Context, input *CreateCategoryInput) (*repository.Category, error) {
	category := &repository.Category{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
	}
	if category.Name == "" {
		return nil, errors.Validation(map[string]string{"name": "name is required"})
	}

	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}

	s.events.PublishCategoryChanged(ctx, messaging.EventCategoryCreated, category.ID, category.Name)
	s.logger.Info().Str("category_id", category.ID).Str("name", category.Name).Msg("category created")
	return category, nil
}

// GetCategory gets a category by ID
func (s *CatalogService) GetCategory(ctx context.Context, id string) (*repository.Category, error) {
	return s.categories.GetByID(ctx, id)
}

// ListCategories lists all categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]*repository.Category, error) {
	return s.categories.List(ctx)
}

// UpdateCategoryInput is the input for updating a category
type UpdateCategoryInput struct {
	Name        string  `json:"name" validate:"required,min=1,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// UpdateCategory updates a category's name and description
func (s *CatalogService) UpdateCategory(ctx context.Context, id string, input *UpdateCategoryInput) (*repository.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Name = strings.TrimSpace(input.Name)
	category.Description = input.Description
	if category.Name == "" {
		return nil, errors.Validation(map[string]string{"name": "name is required"})
	}

	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory deletes a category that has no products
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	count, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.Conflict("category still has products")
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}

	s.events.PublishCategoryChanged(ctx, messaging.EventCategoryDeleted, id, "")
	s.logger.Info().Str("category_id", id).Msg("category deleted")
	return nil
}

// CreateProductInput is the input for creating a product
type CreateProductInput struct {
	Name          string          `json:"name" validate:"required,min=1,max=200"`
	Description   *string         `json:"description,omitempty" validate:"omitempty,max=1000"`
	CategoryID    string          `json:"categoryId" validate:"required,uuid4"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	Active        *bool           `json:"active,omitempty"`
}

// CreateProduct creates a new product under an existing category
func (s *CatalogService) CreateProduct(ctx context.Context, input *CreateProductInput) (*repository.Product, error) {
	if input.PurchasePrice.IsNegative() {
		return nil, errors.Validation(map[string]string{"purchasePrice": "purchase price must not be negative"})
	}

	// Resolve the category up front so a missing one reads as a client
	// error rather than a bare FK violation.
	if _, err := s.categories.GetByID(ctx, input.CategoryID); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Validation(map[string]string{"categoryId": "category does not exist"})
		}
		return nil, err
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	product := &repository.Product{
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		CategoryID:    input.CategoryID,
		PurchasePrice: input.PurchasePrice,
		Active:        active,
	}
	if product.Name == "" {
		return nil, errors.Validation(map[string]string{"name": "name is required"})
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	s.events.PublishProductChanged(ctx, messaging.EventProductCreated, product.ID, product.Name)
	s.logger.Info().Str("product_id", product.ID).Str("name", product.Name).Msg("product created")
	return product, nil
}

// GetProduct gets a product with its category and current stock
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*repository.ProductWithStock, error) {
	return s.products.GetWithStock(ctx, id)
}

// ListProducts lists all products with category and stock expansion
func (s *CatalogService) ListProducts(ctx context.Context) ([]*repository.ProductWithStock, error) {
	return s.products.List(ctx)
}

// UpdateProductInput is the input for a partial product update. Nil fields
// keep their stored value.
type UpdateProductInput struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	CategoryID    *string          `json:"categoryId,omitempty" validate:"omitempty,uuid4"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty"`
	Active        *bool            `json:"active,omitempty"`
}

// UpdateProduct applies a partial update to a product
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, input *UpdateProductInput) (*repository.ProductWithStock, error) {
	if input.PurchasePrice != nil && input.PurchasePrice.IsNegative() {
		return nil, errors.Validation(map[string]string{"purchasePrice": "purchase price must not be negative"})
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, errors.Validation(map[string]string{"name": "name must not be empty"})
	}

	if input.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return nil, errors.Validation(map[string]string{"categoryId": "category does not exist"})
			}
			return nil, err
		}
	}

	update := &repository.ProductUpdate{
		Name:          input.Name,
		Description:   input.Description,
		CategoryID:    input.CategoryID,
		PurchasePrice: input.PurchasePrice,
		Active:        input.Active,
	}

	updated, err := s.products.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.events.PublishProductChanged(ctx, messaging.EventProductUpdated, updated.ID, updated.Name)
	return s.products.GetWithStock(ctx, id)
}

// DeleteProduct deletes a product that has no batches
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.events.PublishProductChanged(ctx, messaging.EventProductDeleted, id, "")
	s.logger.Info().Str("product_id", id).Msg("product deleted")
	return nil
}
