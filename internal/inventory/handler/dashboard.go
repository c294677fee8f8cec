package handler

import (
	"net/http"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/service"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// DashboardHandler handles the read-only aggregate endpoints
type DashboardHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc *service.ReportService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		logger:  log,
	}
}

// Stats returns the headline counters
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// Movements returns the 30-day daily movement series
func (h *DashboardHandler) Movements(w http.ResponseWriter, r *http.Request) {
	series, err := h.service.MovementSeries(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, series)
}

// ProductsByCategory returns product counts per category
func (h *DashboardHandler) ProductsByCategory(w http.ResponseWriter, r *http.Request) {
	slices, err := h.service.ProductsByCategory(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, slices)
}

// Activity returns the recent movement feed
func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.RecentActivity(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

// Alerts returns the expiration alert list, most urgent first
func (h *DashboardHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.ExpirationAlerts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}
