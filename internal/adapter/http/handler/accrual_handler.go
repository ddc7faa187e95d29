package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// AccrualService defines the accrual behavior needed by AccrualHandler.
type AccrualService interface {
	MaybeAccrue(ctx context.Context, accountID string, today domain.Date) (*usecase.AccrualResult, error)
	AccrueAll(ctx context.Context, today domain.Date) (*usecase.AccrualRunSummary, error)
}

// AccrualHandler exposes lazy per-account accrual and the admin batch run.
type AccrualHandler struct {
	accrualUC AccrualService
	now       func() time.Time
}

// NewAccrualHandler creates a new AccrualHandler.
func NewAccrualHandler(accrualUC AccrualService) *AccrualHandler {
	return &AccrualHandler{accrualUC: accrualUC, now: time.Now}
}

// readDate decodes the optional body. Only admins may pin a date other than today.
func (h *AccrualHandler) readDate(r *http.Request) (domain.Date, error) {
	today := domain.DateOf(h.now())

	var req dto.AccrualRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			return domain.Date{}, err
		}
	}

	date := req.DateOr(today)
	if date != today {
		if actor, ok := domain.ActorFromContext(r.Context()); ok && !actor.IsAdmin {
			return domain.Date{}, domain.ErrForbidden
		}
	}
	return date, nil
}

// AccrueAccount runs the once-per-day accrual check for one account, typically on session load.
func (h *AccrualHandler) AccrueAccount(w http.ResponseWriter, r *http.Request) {
	date, err := h.readDate(r)
	if err != nil {
		respondError(w, "invalid accrual request", err)
		return
	}

	result, err := h.accrualUC.MaybeAccrue(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		respondError(w, "failed to accrue interest", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccrualFromResult(result))
}

// RunAll accrues every invested account.
func (h *AccrualHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	date, err := h.readDate(r)
	if err != nil {
		respondError(w, "invalid accrual request", err)
		return
	}

	summary, err := h.accrualUC.AccrueAll(r.Context(), date)
	if err != nil {
		respondError(w, "accrual run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccrualRunFromSummary(summary))
}
