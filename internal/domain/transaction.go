package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
	TransactionTypeInvestment  TransactionType = "investment"
	TransactionTypeInterest    TransactionType = "interest"
	TransactionTypeAdminCredit TransactionType = "admin_credit"
	TransactionTypeAdminDebit  TransactionType = "admin_debit"
)

var validTransactionTypes = map[TransactionType]bool{
	TransactionTypeDeposit:     true,
	TransactionTypeWithdrawal:  true,
	TransactionTypeInvestment:  true,
	TransactionTypeInterest:    true,
	TransactionTypeAdminCredit: true,
	TransactionTypeAdminDebit:  true,
}

// IsValid reports whether t is a known type.
func (t TransactionType) IsValid() bool {
	return validTransactionTypes[t]
}

// UserRecordable reports whether end users may request this type.
// Interest and admin entries are only created by the engine itself.
func (t TransactionType) UserRecordable() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal || t == TransactionTypeInvestment
}

// TransactionStatus is the state of a transaction in its lifecycle.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusApproved   TransactionStatus = "approved"
	StatusCompleted  TransactionStatus = "completed"
	StatusRejected   TransactionStatus = "rejected"
	StatusDeclined   TransactionStatus = "declined"
	StatusCancelled  TransactionStatus = "cancelled"
)

// transitions lists the legal successors of every non-terminal status.
var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:    {StatusProcessing, StatusApproved, StatusRejected, StatusDeclined},
	StatusProcessing: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:   {StatusCompleted, StatusCancelled},
}

var terminalStatuses = map[TransactionStatus]bool{
	StatusCompleted: true,
	StatusRejected:  true,
	StatusDeclined:  true,
	StatusCancelled: true,
}

// IsValid reports whether s is a known status.
func (s TransactionStatus) IsValid() bool {
	_, nonTerminal := transitions[s]
	return nonTerminal || terminalStatuses[s]
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s TransactionStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transaction is a single entry in the transaction log.
// Type and Amount never change after creation.
type Transaction struct {
	ID            string
	AccountID     string
	Type          TransactionType
	Amount        decimal.Decimal
	PlanID        *string
	Status        TransactionStatus
	Description   string
	Actor         string
	AutoGenerated bool
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ApprovedAt    *time.Time
	CompletedAt   *time.Time
}

// Validate checks creation-time invariants.
func (t *Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidTransactionType
	}
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if !t.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// CheckTransition validates a move to next without applying it.
func (t *Transaction) CheckTransition(next TransactionStatus) error {
	if t.Status.IsTerminal() {
		return ErrAlreadyFinalized
	}
	if !next.IsValid() || !t.Status.CanTransitionTo(next) {
		return ErrIllegalTransition
	}
	return nil
}

// MoveTo sets the new status and its timestamps.
func (t *Transaction) MoveTo(next TransactionStatus, actor string, now time.Time) {
	t.Status = next
	t.Actor = actor
	t.UpdatedAt = now
	switch next {
	case StatusApproved:
		t.ApprovedAt = &now
	case StatusCompleted:
		t.CompletedAt = &now
	}
}

// IsFinanciallyConsequential reports whether approval mutates the account.
func (t *Transaction) IsFinanciallyConsequential() bool {
	switch t.Type {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeInvestment:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.PlanID != nil {
		id := *t.PlanID
		c.PlanID = &id
	}
	if t.ApprovedAt != nil {
		at := *t.ApprovedAt
		c.ApprovedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	AccountID string
	Status    TransactionStatus
	Type      TransactionType
	Limit     int
	Offset    int
}
