package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds a user's spendable balance and investment totals.
// The ID is the externally issued user identity.
type Account struct {
	ID              string
	Balance         decimal.Decimal
	TotalInvested   decimal.Decimal
	TotalInterest   decimal.Decimal
	TotalWithdrawal decimal.Decimal
	CurrentPlanID   *string
	LastAccrualDate *Date
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAccount returns a zero-initialized account.
func NewAccount(id string, now time.Time) *Account {
	return &Account{
		ID:              id,
		Balance:         decimal.Zero,
		TotalInvested:   decimal.Zero,
		TotalInterest:   decimal.Zero,
		TotalWithdrawal: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	c := *a
	if a.CurrentPlanID != nil {
		id := *a.CurrentPlanID
		c.CurrentPlanID = &id
	}
	if a.LastAccrualDate != nil {
		d := *a.LastAccrualDate
		c.LastAccrualDate = &d
	}
	return &c
}

// HasActivePlan reports whether interest can accrue on the account.
func (a *Account) HasActivePlan() bool {
	return a.CurrentPlanID != nil && *a.CurrentPlanID != "" && a.TotalInvested.IsPositive()
}

// AccruedOn reports whether interest was already credited on the given day.
func (a *Account) AccruedOn(day Date) bool {
	return a.LastAccrualDate != nil && a.LastAccrualDate.Equal(day)
}

// AccruedThrough reports whether interest was credited on day or any later day.
func (a *Account) AccruedThrough(day Date) bool {
	return a.LastAccrualDate != nil && !a.LastAccrualDate.Before(day)
}

// ValidateDebit checks if the balance can be reduced by amount without going negative.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Balance.Sub(amount).IsNegative() {
		return ErrInsufficientBalance
	}
	return nil
}

// Credit adds amount to the spendable balance.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}

// Debit removes amount from the spendable balance.
func (a *Account) Debit(amount decimal.Decimal) error {
	if err := a.ValidateDebit(amount); err != nil {
		return err
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Withdraw moves amount out of the balance and records it as withdrawn.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if err := a.Debit(amount); err != nil {
		return err
	}
	a.TotalWithdrawal = a.TotalWithdrawal.Add(amount)
	return nil
}

// Invest moves amount from the balance into invested principal under planID.
func (a *Account) Invest(amount decimal.Decimal, planID string) error {
	if err := a.Debit(amount); err != nil {
		return err
	}
	a.TotalInvested = a.TotalInvested.Add(amount)
	a.CurrentPlanID = &planID
	return nil
}

// CreditInterest credits accrued interest and stamps the accrual date.
func (a *Account) CreditInterest(amount decimal.Decimal, day Date) {
	a.Balance = a.Balance.Add(amount)
	a.TotalInterest = a.TotalInterest.Add(amount)
	a.LastAccrualDate = &day
}

// ApplyApproval applies the balance effect of approving tx.
// planID is only used for investments.
func (a *Account) ApplyApproval(tx *Transaction, planID string) error {
	switch tx.Type {
	case TransactionTypeDeposit:
		a.Credit(tx.Amount)
		return nil
	case TransactionTypeWithdrawal:
		return a.Withdraw(tx.Amount)
	case TransactionTypeInvestment:
		return a.Invest(tx.Amount, planID)
	default:
		return nil
	}
}

// RevertApproval undoes the balance effect of a previously approved tx.
func (a *Account) RevertApproval(tx *Transaction) error {
	switch tx.Type {
	case TransactionTypeDeposit:
		return a.Debit(tx.Amount)
	case TransactionTypeWithdrawal:
		a.Balance = a.Balance.Add(tx.Amount)
		a.TotalWithdrawal = decimal.Max(a.TotalWithdrawal.Sub(tx.Amount), decimal.Zero)
		return nil
	case TransactionTypeInvestment:
		if a.TotalInvested.LessThan(tx.Amount) {
			return ErrInsufficientBalance
		}
		a.TotalInvested = a.TotalInvested.Sub(tx.Amount)
		a.Balance = a.Balance.Add(tx.Amount)
		if a.TotalInvested.IsZero() {
			a.CurrentPlanID = nil
		}
		return nil
	default:
		return nil
	}
}

// ApplyAdjustment adds delta (which may be negative) to the balance.
func (a *Account) ApplyAdjustment(delta decimal.Decimal) error {
	if delta.IsNegative() {
		return a.Debit(delta.Neg())
	}
	a.Credit(delta)
	return nil
}
