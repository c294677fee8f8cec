package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/service"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// MovementHandler handles the input and output movement endpoints
type MovementHandler struct {
	service *service.LedgerService
	logger  *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(svc *service.LedgerService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		service: svc,
		logger:  log,
	}
}

// movementResponse pairs a recorded movement with the batch state it
// produced, so clients see the new stock without a second round trip.
type movementResponse struct {
	Movement *repository.Movement `json:"movement"`
	Batch    *repository.Batch    `json:"batch"`
}

// ListInputs lists all input movements, newest first
func (h *MovementHandler) ListInputs(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.ListMovements(r.Context(), repository.MovementTypeInput)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, newMovementViews(movements), &httputil.Meta{Total: int64(len(movements))})
}

type recordInputRequest struct {
	ProductID   string  `json:"productId" validate:"required,uuid4"`
	BatchNumber int     `json:"batchNumber" validate:"required,gt=0"`
	Quantity    int     `json:"quantity" validate:"required"`
	Caducation  *string `json:"caducation,omitempty"`
}

// CreateInput records stock arriving, opening the batch on a new lot number
func (h *MovementHandler) CreateInput(w http.ResponseWriter, r *http.Request) {
	var req recordInputRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := service.RecordInputInput{
		ProductID:   req.ProductID,
		BatchNumber: req.BatchNumber,
		Quantity:    req.Quantity,
	}
	if req.Caducation != nil {
		caducation, err := parseDate("caducation", *req.Caducation)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		input.Caducation = &caducation
	}

	movement, batch, err := h.service.RecordInput(r.Context(), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, movementResponse{Movement: movement, Batch: batch})
}

// DeleteInput removes an input movement, replaying the batch's log
func (h *MovementHandler) DeleteInput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteMovement(r.Context(), id, repository.MovementTypeInput); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ListOutputs lists all output movements, newest first
func (h *MovementHandler) ListOutputs(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.ListMovements(r.Context(), repository.MovementTypeOutput)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, newMovementViews(movements), &httputil.Meta{Total: int64(len(movements))})
}

type recordOutputRequest struct {
	BatchID  string `json:"batchId" validate:"required,uuid4"`
	Quantity int    `json:"quantity" validate:"required"`
}

// CreateOutput records stock leaving a batch
func (h *MovementHandler) CreateOutput(w http.ResponseWriter, r *http.Request) {
	var req recordOutputRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	movement, batch, err := h.service.RecordOutput(r.Context(), &service.RecordOutputInput{
		BatchID:  req.BatchID,
		Quantity: req.Quantity,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, movementResponse{Movement: movement, Batch: batch})
}

// DeleteOutput removes an output movement, replaying the batch's log
func (h *MovementHandler) DeleteOutput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteMovement(r.Context(), id, repository.MovementTypeOutput); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
