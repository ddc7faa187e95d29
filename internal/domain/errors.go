package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// Transaction errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidStatus          = errors.New("invalid transaction status")
	ErrIllegalTransition      = errors.New("illegal status transition")
	ErrAlreadyFinalized       = errors.New("transaction already finalized")
	ErrReasonRequired         = errors.New("adjustment reason is required")

	// Plan errors
	ErrPlanNotFound        = errors.New("plan not found")
	ErrPrincipalOutOfRange = errors.New("principal outside plan bounds")
	ErrInvalidPlanCatalog  = errors.New("invalid plan catalog")

	// Store errors
	ErrVersionConflict   = errors.New("account version conflict")
	ErrConflictExhausted = errors.New("concurrent modification retries exhausted")
)
