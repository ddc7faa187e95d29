package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
)

// PlanHandler serves the read-only plan catalog.
type PlanHandler struct {
	plans *domain.PlanCatalog
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(plans *domain.PlanCatalog) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// List returns all plans in catalog order.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": dto.PlansFromDomain(h.plans.Plans())})
}

// Get returns one plan.
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plans.FindByID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PlanFromDomain(plan))
}
