package usecase_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

func strPtr(s string) *string { return &s }

func TestTransactionUseCase_RecordTransaction(t *testing.T) {
	tests := []struct {
		name     string
		input    usecase.RecordTransactionInput
		wantErr  error
		wantPlan string
	}{
		{
			name:  "deposit",
			input: usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeDeposit, Amount: dec("10")},
		},
		{
			name:  "withdrawal beyond balance is still recorded",
			input: usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeWithdrawal, Amount: dec("1000")},
		},
		{
			name:     "investment with explicit plan",
			input:    usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeInvestment, Amount: dec("2500"), PlanID: strPtr("silver")},
			wantPlan: "silver",
		},
		{
			name:     "investment resolved by principal",
			input:    usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeInvestment, Amount: dec("25000")},
			wantPlan: "platinum",
		},
		{
			name:    "investment outside plan bounds",
			input:   usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeInvestment, Amount: dec("10"), PlanID: strPtr("basic")},
			wantErr: domain.ErrPrincipalOutOfRange,
		},
		{
			name:    "investment below every plan",
			input:   usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeInvestment, Amount: dec("10")},
			wantErr: domain.ErrPlanNotFound,
		},
		{
			name:    "unknown plan",
			input:   usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeInvestment, Amount: dec("100"), PlanID: strPtr("diamond")},
			wantErr: domain.ErrPlanNotFound,
		},
		{
			name:    "interest cannot be requested",
			input:   usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeInterest, Amount: dec("10")},
			wantErr: domain.ErrInvalidTransactionType,
		},
		{
			name:    "admin credit cannot be requested",
			input:   usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeAdminCredit, Amount: dec("10")},
			wantErr: domain.ErrInvalidTransactionType,
		},
		{
			name:    "zero amount",
			input:   usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeDeposit, Amount: decimal.Zero},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			input:   usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeDeposit, Amount: dec("-5")},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "sub-cent amount",
			input:   usecase.RecordTransactionInput{AccountID: "acc", Type: domain.TransactionTypeDeposit, Amount: dec("0.001")},
			wantErr: domain.ErrAmountTooSmall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			e.createAccount(t, "acc")

			tx, err := e.transactions.RecordTransaction(userCtx("acc"), tt.input)
			if tt.wantErr != nil {
				assertErrorIs(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tx.Status != domain.StatusPending || tx.Actor != "acc" || tx.AutoGenerated {
				t.Fatalf("unexpected transaction: %+v", tx)
			}
			if tt.wantPlan != "" && (tx.PlanID == nil || *tx.PlanID != tt.wantPlan) {
				t.Fatalf("expected plan %s, got %v", tt.wantPlan, tx.PlanID)
			}
			assertDecimal(t, "balance", e.account(t, "acc").Balance, "0")
		})
	}
}

func TestTransactionUseCase_RecordRequiresAccess(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")

	_, err := e.transactions.RecordTransaction(userCtx("other"), usecase.RecordTransactionInput{
		AccountID: "acc", Type: domain.TransactionTypeDeposit, Amount: dec("10"),
	})
	assertErrorIs(t, err, domain.ErrForbidden)

	_, err = e.transactions.RecordTransaction(adminCtx(), usecase.RecordTransactionInput{
		AccountID: "missing", Type: domain.TransactionTypeDeposit, Amount: dec("10"),
	})
	assertErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestTransactionUseCase_GetTransactionHidesOthers(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")
	tx := e.record(t, "acc", domain.TransactionTypeDeposit, "10", nil)

	if _, err := e.transactions.GetTransaction(userCtx("acc"), tx.ID); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}

	_, err := e.transactions.GetTransaction(userCtx("other"), tx.ID)
	assertErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestTransactionUseCase_ListTransactions(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")
	e.fund(t, "acc", "100")
	e.record(t, "acc", domain.TransactionTypeDeposit, "1", nil)
	e.record(t, "acc", domain.TransactionTypeWithdrawal, "2", nil)

	all, err := e.transactions.ListTransactions(userCtx("acc"), usecase.ListTransactionsInput{AccountID: "acc"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(all))
	}

	pending, err := e.transactions.ListTransactions(userCtx("acc"), usecase.ListTransactionsInput{AccountID: "acc", Status: domain.StatusPending})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	_, err = e.transactions.ListTransactions(userCtx("acc"), usecase.ListTransactionsInput{AccountID: "acc", Status: "bogus"})
	assertErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = e.transactions.ListTransactions(userCtx("other"), usecase.ListTransactionsInput{AccountID: "acc"})
	assertErrorIs(t, err, domain.ErrForbidden)

	queue, err := e.transactions.ListPendingTransactions(adminCtx(), 0, 0)
	if err != nil {
		t.Fatalf("pending queue failed: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("expected 2 in review queue, got %d", len(queue))
	}

	_, err = e.transactions.ListPendingTransactions(userCtx("acc"), 0, 0)
	assertErrorIs(t, err, domain.ErrForbidden)
}
