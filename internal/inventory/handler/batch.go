package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/service"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// dateLayout is the wire format for expiration dates
const dateLayout = "2006-01-02"

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, errors.Validation(map[string]string{field: "must be a date in YYYY-MM-DD format"})
	}
	return t, nil
}

// BatchHandler handles batch endpoints
type BatchHandler struct {
	service *service.LedgerService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.LedgerService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

// List lists all batches
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.ListBatches(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, newBatchViews(batches))
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

type createBatchRequest struct {
	ProductID      string `json:"productId" validate:"required,uuid4"`
	Number         int    `json:"number" validate:"required,gt=0"`
	ExpirationDate string `json:"expirationDate" validate:"required"`
}

// Create opens an empty batch
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	expiration, err := parseDate("expirationDate", req.ExpirationDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.CreateBatch(r.Context(), &service.CreateBatchInput{
		ProductID:      req.ProductID,
		Number:         req.Number,
		ExpirationDate: expiration,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

type updateBatchRequest struct {
	Number         *int    `json:"number,omitempty" validate:"omitempty,gt=0"`
	ExpirationDate *string `json:"expirationDate,omitempty"`
}

// Update corrects batch metadata
func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := service.UpdateBatchInput{Number: req.Number}
	if req.ExpirationDate != nil {
		expiration, err := parseDate("expirationDate", *req.ExpirationDate)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		input.ExpirationDate = &expiration
	}

	batch, err := h.service.UpdateBatch(r.Context(), id, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Delete deletes a batch with no recorded movements
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteBatch(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
