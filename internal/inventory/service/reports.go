package service

import (
	"context"
	"sort"
	"time"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/expiry"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// MovementSeriesDays is the window of the daily movement series
const MovementSeriesDays = 30

// RecentActivityLimit caps the recent activity feed
const RecentActivityLimit = 10

// ReportService builds the read-only aggregate views for the dashboard
type ReportService struct {
	categories *repository.CategoryRepository
	products   *repository.ProductRepository
	batches    *repository.BatchRepository
	movements  *repository.MovementRepository
	logger     *logger.Logger
	now        func() time.Time
}

// NewReportService creates a new report service
func NewReportService(
	categories *repository.CategoryRepository,
	products *repository.ProductRepository,
	batches *repository.BatchRepository,
	movements *repository.MovementRepository,
	log *logger.Logger,
) *ReportService {
	return &ReportService{
		categories: categories,
		products:   products,
		batches:    batches,
		movements:  movements,
		logger:     log,
		now:        time.Now,
	}
}

// DashboardStats is the headline counter block
type DashboardStats struct {
	TotalProducts   int64 `json:"totalProducts"`
	TotalCategories int64 `json:"totalCategories"`
	TotalBatches    int64 `json:"totalBatches"`
	InputsThisMonth int64 `json:"inputsThisMonth"`
	ExpiringBatches int   `json:"expiringBatches"`
}

// Stats computes the dashboard counters
func (s *ReportService) Stats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	var err error
	if stats.TotalProducts, err = s.products.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalCategories, err = s.categories.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalBatches, err = s.batches.Count(ctx); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if stats.InputsThisMonth, err = s.movements.CountSince(ctx, repository.MovementTypeInput, monthStart); err != nil {
		return nil, err
	}

	expiring, err := s.batches.ListExpiringBefore(ctx, expiry.AlertCutoff(now))
	if err != nil {
		return nil, err
	}
	stats.ExpiringBatches = len(expiring)

	return stats, nil
}

// SeriesPoint is one day of the movement series
type SeriesPoint struct {
	Date    string `json:"date"`
	Inputs  int    `json:"inputs"`
	Outputs int    `json:"outputs"`
}

// MovementSeries builds the last 30 days of movement totals, one point per
// calendar day including today, days without movements zero-filled.
func (s *ReportService) MovementSeries(ctx context.Context) ([]SeriesPoint, error) {
	now := s.now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -(MovementSeriesDays - 1))

	movements, err := s.movements.ListSince(ctx, from)
	if err != nil {
		return nil, err
	}

	return buildDailySeries(movements, from, MovementSeriesDays), nil
}

// buildDailySeries buckets movements by UTC calendar day over a fixed
// window starting at from. Movements outside the window are ignored.
func buildDailySeries(movements []*repository.Movement, from time.Time, days int) []SeriesPoint {
	series := make([]SeriesPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format("2006-01-02")
		series[i] = SeriesPoint{Date: date}
		index[date] = i
	}

	for _, m := range movements {
		day := m.CreatedAt.UTC().Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			continue
		}
		switch m.Type {
		case repository.MovementTypeInput:
			series[i].Inputs += m.Quantity
		case repository.MovementTypeOutput:
			series[i].Outputs += m.Quantity
		}
	}

	return series
}

// CategorySlice is one category's share of the product catalog
type CategorySlice struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	ProductCount int64  `json:"productCount"`
}

// ProductsByCategory counts products per category, empty categories included
func (s *ReportService) ProductsByCategory(ctx context.Context) ([]CategorySlice, error) {
	counts, err := s.products.CountPerCategory(ctx)
	if err != nil {
		return nil, err
	}

	slices := make([]CategorySlice, 0, len(counts))
	for _, c := range counts {
		slices = append(slices, CategorySlice{
			CategoryID:   c.CategoryID,
			CategoryName: c.CategoryName,
			ProductCount: c.ProductCount,
		})
	}
	return slices, nil
}

// ActivityEntry is one row of the recent activity feed
type ActivityEntry struct {
	MovementID  string    `json:"movementId"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	BatchID     string    `json:"batchId"`
	BatchNumber int       `json:"batchNumber"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RecentActivity returns the latest movements across all batches,
// newest first.
func (s *ReportService) RecentActivity(ctx context.Context) ([]ActivityEntry, error) {
	movements, err := s.movements.ListRecent(ctx, RecentActivityLimit)
	if err != nil {
		return nil, err
	}

	entries := make([]ActivityEntry, 0, len(movements))
	for _, m := range movements {
		entries = append(entries, ActivityEntry{
			MovementID:  m.ID,
			Type:        m.Type,
			Quantity:    m.Quantity,
			BatchID:     m.BatchID,
			BatchNumber: m.BatchNumber,
			ProductID:   m.ProductID,
			ProductName: m.ProductName,
			CreatedAt:   m.CreatedAt,
		})
	}
	return entries, nil
}

// ExpirationAlert is one batch inside the alert window
type ExpirationAlert struct {
	BatchID        string    `json:"batchId"`
	BatchNumber    int       `json:"batchNumber"`
	ProductID      string    `json:"productId"`
	ProductName    string    `json:"productName"`
	Stock          int       `json:"stock"`
	ExpirationDate time.Time `json:"expirationDate"`
	DaysLeft       int       `json:"daysLeft"`
	Tier           string    `json:"tier"`
}

// ExpirationAlerts lists batches with stock expiring within the alert
// window, most urgent first. Already expired lots lead the list with
// negative days left.
func (s *ReportService) ExpirationAlerts(ctx context.Context) ([]ExpirationAlert, error) {
	now := s.now()
	batches, err := s.batches.ListExpiringBefore(ctx, expiry.AlertCutoff(now))
	if err != nil {
		return nil, err
	}

	alerts := make([]ExpirationAlert, 0, len(batches))
	for _, b := range batches {
		if !expiry.IsAlertCandidate(b.Stock, b.ExpirationDate, now) {
			continue
		}
		c := expiry.Classify(b.ExpirationDate, now)
		alerts = append(alerts, ExpirationAlert{
			BatchID:        b.ID,
			BatchNumber:    b.Number,
			ProductID:      b.ProductID,
			ProductName:    b.ProductName,
			Stock:          b.Stock,
			ExpirationDate: b.ExpirationDate,
			DaysLeft:       c.DaysLeft,
			Tier:           string(c.Tier),
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].DaysLeft != alerts[j].DaysLeft {
			return alerts[i].DaysLeft < alerts[j].DaysLeft
		}
		return alerts[i].ProductName < alerts[j].ProductName
	})

	return alerts, nil
}
