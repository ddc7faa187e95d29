package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// AdjustmentService applies admin balance corrections.
type AdjustmentService interface {
	Adjust(ctx context.Context, input usecase.AdjustInput) (*domain.Transaction, error)
}

// AdjustmentHandler handles admin adjustments.
type AdjustmentHandler struct {
	adjustmentUC AdjustmentService
}

// NewAdjustmentHandler creates a new AdjustmentHandler.
func NewAdjustmentHandler(adjustmentUC AdjustmentService) *AdjustmentHandler {
	return &AdjustmentHandler{adjustmentUC: adjustmentUC}
}

// Adjust credits or debits an account by a signed delta.
func (h *AdjustmentHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "invalid request body", err)
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"), middleware.GetReqID(r.Context()))
	if err != nil {
		respondError(w, "invalid request body", err)
		return
	}

	entry, err := h.adjustmentUC.Adjust(r.Context(), input)
	if err != nil {
		respondError(w, "failed to adjust account", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(entry))
}
