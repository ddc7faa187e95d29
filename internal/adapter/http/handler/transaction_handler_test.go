package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

type transactionServiceStub struct {
	recordFn      func(ctx context.Context, input usecase.RecordTransactionInput) (*domain.Transaction, error)
	getFn         func(ctx context.Context, id string) (*domain.Transaction, error)
	listFn        func(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.Transaction, error)
	listPendingFn func(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)
}

func (s *transactionServiceStub) RecordTransaction(ctx context.Context, input usecase.RecordTransactionInput) (*domain.Transaction, error) {
	return s.recordFn(ctx, input)
}

func (s *transactionServiceStub) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.getFn(ctx, id)
}

func (s *transactionServiceStub) ListTransactions(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.Transaction, error) {
	return s.listFn(ctx, input)
}

func (s *transactionServiceStub) ListPendingTransactions(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	return s.listPendingFn(ctx, limit, offset)
}

type transitionServiceStub struct {
	fn func(ctx context.Context, id string, next domain.TransactionStatus) (*domain.Transaction, error)
}

func (s *transitionServiceStub) Transition(ctx context.Context, id string, next domain.TransactionStatus) (*domain.Transaction, error) {
	return s.fn(ctx, id, next)
}

func sampleTransaction(status domain.TransactionStatus) *domain.Transaction {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Transaction{
		ID:        "tx-1",
		AccountID: "user-1",
		Type:      domain.TransactionTypeDeposit,
		Amount:    decimal.NewFromInt(100),
		Status:    status,
		Actor:     "user-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTransactionHandler_Record(t *testing.T) {
	var captured usecase.RecordTransactionInput
	handler := NewTransactionHandler(&transactionServiceStub{
		recordFn: func(ctx context.Context, input usecase.RecordTransactionInput) (*domain.Transaction, error) {
			captured = input
			return sampleTransaction(domain.StatusPending), nil
		},
	}, nil)

	body := `{"type":"deposit","amount":"100.50","description":"salary"}`
	req := asActor(httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body)), "user-1", false)
	rec := httptest.NewRecorder()

	handler.Record(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.AccountID != "user-1" {
		t.Fatalf("expected account to default to caller, got %q", captured.AccountID)
	}
	if !captured.Amount.Equal(decimal.RequireFromString("100.50")) || captured.Type != domain.TransactionTypeDeposit {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != string(domain.StatusPending) {
		t.Fatalf("expected pending, got %s", resp.Status)
	}
}

func TestTransactionHandler_Record_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		expected int
	}{
		{"malformed json", `{"type":`, nil, http.StatusBadRequest},
		{"bad amount", `{"type":"deposit","amount":"abc"}`, nil, http.StatusBadRequest},
		{"insufficient balance", `{"type":"withdrawal","amount":"10"}`, domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"other account", `{"account_id":"user-2","type":"deposit","amount":"10"}`, domain.ErrForbidden, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewTransactionHandler(&transactionServiceStub{
				recordFn: func(ctx context.Context, input usecase.RecordTransactionInput) (*domain.Transaction, error) {
					return nil, tt.err
				},
			}, nil)

			req := asActor(httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tt.body)), "user-1", false)
			rec := httptest.NewRecorder()
			handler.Record(rec, req)

			if rec.Code != tt.expected {
				t.Fatalf("expected %d, got %d: %s", tt.expected, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTransactionHandler_Transition(t *testing.T) {
	var gotID string
	var gotStatus domain.TransactionStatus
	handler := NewTransactionHandler(nil, &transitionServiceStub{
		fn: func(ctx context.Context, id string, next domain.TransactionStatus) (*domain.Transaction, error) {
			gotID, gotStatus = id, next
			if id == "done" {
				return nil, domain.ErrAlreadyFinalized
			}
			return sampleTransaction(next), nil
		},
	})

	req := withRoute(httptest.NewRequest(http.MethodPost, "/transactions/tx-1/transition", strings.NewReader(`{"status":"approved"}`)), map[string]string{"id": "tx-1"})
	rec := httptest.NewRecorder()
	handler.Transition(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != "tx-1" || gotStatus != domain.StatusApproved {
		t.Fatalf("unexpected call %s %s", gotID, gotStatus)
	}

	t.Run("finalized is a generic conflict", func(t *testing.T) {
		req := withRoute(httptest.NewRequest(http.MethodPost, "/transactions/done/transition", strings.NewReader(`{"status":"completed"}`)), map[string]string{"id": "done"})
		rec := httptest.NewRecorder()
		handler.Transition(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var resp dto.ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if resp.Error != alreadyProcessedMessage {
			t.Fatalf("expected generic conflict message, got %+v", resp)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		req := withRoute(httptest.NewRequest(http.MethodPost, "/transactions/tx-1/transition", strings.NewReader(`{"status":"paid"}`)), map[string]string{"id": "tx-1"})
		rec := httptest.NewRecorder()
		handler.Transition(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestTransactionHandler_ListByAccount(t *testing.T) {
	var captured usecase.ListTransactionsInput
	handler := NewTransactionHandler(&transactionServiceStub{
		listFn: func(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.Transaction, error) {
			captured = input
			return []*domain.Transaction{sampleTransaction(domain.StatusCompleted)}, nil
		},
	}, nil)

	req := withRoute(httptest.NewRequest(http.MethodGet, "/accounts/user-1/transactions?status=completed&type=deposit&limit=3", nil), map[string]string{"id": "user-1"})
	rec := httptest.NewRecorder()
	handler.ListByAccount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.AccountID != "user-1" || captured.Status != domain.StatusCompleted ||
		captured.Type != domain.TransactionTypeDeposit || captured.Limit != 3 {
		t.Fatalf("unexpected filter %+v", captured)
	}
}

func TestTransactionHandler_ListPending(t *testing.T) {
	handler := NewTransactionHandler(&transactionServiceStub{
		listPendingFn: func(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
			return nil, domain.ErrForbidden
		},
	}, nil)

	rec := httptest.NewRecorder()
	handler.ListPending(rec, httptest.NewRequest(http.MethodGet, "/admin/transactions/pending", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
