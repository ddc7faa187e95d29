package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// ErrInvalidRequest marks a request body that is well-formed JSON but semantically unusable.
var ErrInvalidRequest = errors.New("invalid request")

func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be a decimal string", ErrInvalidRequest, field)
	}
	return d, nil
}

// RecordTransactionRequest represents a request to record a transaction.
// AccountID defaults to the caller's own account.
type RecordTransactionRequest struct {
	AccountID   string         `json:"account_id,omitempty"`
	Type        string         `json:"type"`
	Amount      string         `json:"amount"`
	PlanID      *string        `json:"plan_id,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *RecordTransactionRequest) ToUseCaseInput(callerID string) (usecase.RecordTransactionInput, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return usecase.RecordTransactionInput{}, err
	}

	accountID := r.AccountID
	if accountID == "" {
		accountID = callerID
	}

	return usecase.RecordTransactionInput{
		AccountID:   accountID,
		Type:        domain.TransactionType(r.Type),
		Amount:      amount,
		PlanID:      r.PlanID,
		Description: r.Description,
		Metadata:    r.Metadata,
	}, nil
}

// TransitionRequest moves a transaction to a new status.
type TransitionRequest struct {
	Status string `json:"status"`
}

// Target returns the requested status.
func (r *TransitionRequest) Target() (domain.TransactionStatus, error) {
	status := domain.TransactionStatus(strings.TrimSpace(r.Status))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidStatus, r.Status)
	}
	return status, nil
}

// AdjustmentRequest is a signed admin balance change.
type AdjustmentRequest struct {
	Delta  string `json:"delta"`
	Reason string `json:"reason"`
}

// ToUseCaseInput converts to use case input.
func (r *AdjustmentRequest) ToUseCaseInput(accountID, requestID string) (usecase.AdjustInput, error) {
	delta, err := parseAmount("delta", r.Delta)
	if err != nil {
		return usecase.AdjustInput{}, err
	}
	return usecase.AdjustInput{
		AccountID: accountID,
		Delta:     delta,
		Reason:    r.Reason,
		RequestID: requestID,
	}, nil
}

// AccrualRequest optionally pins the accrual date. Omitted means today (UTC).
type AccrualRequest struct {
	Date *domain.Date `json:"date,omitempty"`
}

// DateOr returns the requested date or fallback.
func (r *AccrualRequest) DateOr(fallback domain.Date) domain.Date {
	if r == nil || r.Date == nil || r.Date.IsZero() {
		return fallback
	}
	return *r.Date
}
