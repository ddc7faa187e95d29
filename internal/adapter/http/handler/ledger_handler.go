package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/usecase"
)

// LedgerChecker runs the system-wide conservation check.
type LedgerChecker interface {
	CheckConsistency(ctx context.Context) (*usecase.LedgerCheck, error)
}

// Reconciler compares stored account figures with the transaction log.
type Reconciler interface {
	ReconcileAccount(ctx context.Context, accountID string) (*usecase.ReconciliationResult, error)
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// LedgerHandler handles ledger-wide integrity operations.
type LedgerHandler struct {
	ledgerUC         LedgerChecker
	reconciliationUC Reconciler
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerChecker, reconciliationUC Reconciler) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC, reconciliationUC: reconciliationUC}
}

// CheckConsistency checks if the ledger is consistent.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	check, err := h.ledgerUC.CheckConsistency(r.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrInconsistentLedger) && check != nil {
			writeJSON(w, http.StatusConflict, dto.LedgerCheckFrom(check))
			return
		}
		respondError(w, "failed to check consistency", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerCheckFrom(check))
}

// Report reconciles every account.
func (h *LedgerHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciliationUC.GenerateReconciliationReport(r.Context())
	if err != nil {
		respondError(w, "failed to reconcile accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ReconciliationReportFrom(report))
}

// ReconcileAccount reconciles one account.
func (h *LedgerHandler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciliationUC.ReconcileAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "failed to reconcile account", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ReconciliationFromResult(result))
}
