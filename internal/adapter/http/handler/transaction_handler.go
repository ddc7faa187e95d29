package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// TransactionService defines the transaction log behavior needed by TransactionHandler.
type TransactionService interface {
	RecordTransaction(ctx context.Context, input usecase.RecordTransactionInput) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.Transaction, error)
	ListPendingTransactions(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)
}

// TransitionService moves transactions through the status graph.
type TransitionService interface {
	Transition(ctx context.Context, transactionID string, next domain.TransactionStatus) (*domain.Transaction, error)
}

// TransactionHandler handles transaction requests.
type TransactionHandler struct {
	transactionUC TransactionService
	transitionUC  TransitionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionUC TransactionService, transitionUC TransitionService) *TransactionHandler {
	return &TransactionHandler{transactionUC: transactionUC, transitionUC: transitionUC}
}

// Record appends a pending transaction.
func (h *TransactionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "invalid request body", err)
		return
	}

	input, err := req.ToUseCaseInput(callerID(r))
	if err != nil {
		respondError(w, "invalid request body", err)
		return
	}

	tx, err := h.transactionUC.RecordTransaction(r.Context(), input)
	if err != nil {
		respondError(w, "failed to record transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(tx))
}

// Get retrieves a transaction by ID.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactionUC.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}

// Transition applies a status change.
func (h *TransactionHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req dto.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "invalid request body", err)
		return
	}

	status, err := req.Target()
	if err != nil {
		respondError(w, "invalid status", err)
		return
	}

	tx, err := h.transitionUC.Transition(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		respondError(w, "failed to transition transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}

// ListByAccount lists an account's transactions, optionally filtered by status and type.
func (h *TransactionHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	txs, err := h.transactionUC.ListTransactions(r.Context(), usecase.ListTransactionsInput{
		AccountID: chi.URLParam(r, "id"),
		Status:    domain.TransactionStatus(q.Get("status")),
		Type:      domain.TransactionType(q.Get("type")),
		Limit:     parseIntQuery(r, "limit", 20),
		Offset:    parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		respondError(w, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListTransactionsResponse{
		Transactions: dto.TransactionsFromDomain(txs),
		Count:        len(txs),
	})
}

// ListPending returns the admin review queue.
func (h *TransactionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactionUC.ListPendingTransactions(r.Context(), parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		respondError(w, "failed to list pending transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListTransactionsResponse{
		Transactions: dto.TransactionsFromDomain(txs),
		Count:        len(txs),
	})
}
