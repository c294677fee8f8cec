package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
)

// Display shapes. References expand to nested objects so the dashboard
// client renders names without extra lookups.

type categoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productRef struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Category *categoryRef `json:"category,omitempty"`
}

type batchRef struct {
	ID      string     `json:"id"`
	Number  int        `json:"number"`
	Product productRef `json:"product"`
}

type productView struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   *string         `json:"description,omitempty"`
	Category      categoryRef     `json:"category"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	Active        bool            `json:"active"`
	Stock         int             `json:"stock"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func newProductView(p *repository.ProductWithStock) productView {
	return productView{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      categoryRef{ID: p.CategoryID, Name: p.CategoryName},
		PurchasePrice: p.PurchasePrice,
		Active:        p.Active,
		Stock:         p.Stock,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func newProductViews(products []*repository.ProductWithStock) []productView {
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}
	return views
}

type batchView struct {
	ID             string     `json:"id"`
	Number         int        `json:"number"`
	Product        productRef `json:"product"`
	ExpirationDate time.Time  `json:"expirationDate"`
	Stock          int        `json:"stock"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func newBatchView(b *repository.BatchWithProduct) batchView {
	return batchView{
		ID:     b.ID,
		Number: b.Number,
		Product: productRef{
			ID:       b.ProductID,
			Name:     b.ProductName,
			Category: &categoryRef{ID: b.CategoryID, Name: b.CategoryName},
		},
		ExpirationDate: b.ExpirationDate,
		Stock:          b.Stock,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func newBatchViews(batches []*repository.BatchWithProduct) []batchView {
	views := make([]batchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, newBatchView(b))
	}
	return views
}

type movementView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Quantity  int       `json:"quantity"`
	Batch     batchRef  `json:"batch"`
	CreatedAt time.Time `json:"createdAt"`
}

func newMovementView(m *repository.MovementDetail) movementView {
	return movementView{
		ID:       m.ID,
		Type:     m.Type,
		Quantity: m.Quantity,
		Batch: batchRef{
			ID:     m.BatchID,
			Number: m.BatchNumber,
			Product: productRef{
				ID:   m.ProductID,
				Name: m.ProductName,
			},
		},
		CreatedAt: m.CreatedAt,
	}
}

func newMovementViews(movements []*repository.MovementDetail) []movementView {
	views := make([]movementView, 0, len(movements))
	for _, m := range movements {
		views = append(views, newMovementView(m))
	}
	return views
}
