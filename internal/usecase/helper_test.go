package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/adapter/repository/memory"
	"github.com/iho/yieldledger/internal/adapter/repository/postgres"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
	"github.com/iho/yieldledger/internal/usecase"
)

var day1 = domain.NewDate(2024, time.January, 1)

type engine struct {
	store   *memory.Store
	audit   *memory.AuditRepository
	outbox  *memory.OutboxRepository
	txRepo  *memory.TransactionRepository
	metrics *metrics.Metrics
	idGen   usecase.IDGenerator

	accountStore *usecase.AccountStore

	accounts       *usecase.AccountUseCase
	transactions   *usecase.TransactionUseCase
	transitions    *usecase.TransitionUseCase
	accrual        *usecase.AccrualUseCase
	adjustments    *usecase.AdjustmentUseCase
	reconciliation *usecase.ReconciliationUseCase
	ledger         *usecase.LedgerUseCase
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	store := memory.NewStore()
	txManager := memory.NewTxManager(store)
	accountRepo := memory.NewAccountRepository(store)
	txRepo := memory.NewTransactionRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)
	auditRepo := memory.NewAuditRepository(store)
	idGen := postgres.NewULIDGenerator()
	plans := domain.DefaultPlanCatalog()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	logger := zerolog.Nop()

	retrier := postgres.NewRetrierWithConfig(postgres.RetrierConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}, logger)
	accountStore := usecase.NewAccountStore(txManager, accountRepo, retrier, m, logger)

	return &engine{
		store:          store,
		audit:          auditRepo,
		outbox:         outboxRepo,
		txRepo:         txRepo,
		metrics:        m,
		idGen:          idGen,
		accountStore:   accountStore,
		accounts:       usecase.NewAccountUseCase(accountStore, txManager, accountRepo, txRepo, outboxRepo, auditRepo, idGen, m, logger),
		transactions:   usecase.NewTransactionUseCase(txManager, accountRepo, txRepo, outboxRepo, plans, idGen, m, logger),
		transitions:    usecase.NewTransitionUseCase(accountStore, txRepo, outboxRepo, auditRepo, plans, idGen, m, logger),
		accrual:        usecase.NewAccrualUseCase(accountStore, accountRepo, txRepo, outboxRepo, plans, idGen, 2, m, logger),
		adjustments:    usecase.NewAdjustmentUseCase(accountStore, txRepo, outboxRepo, auditRepo, idGen, m, logger),
		reconciliation: usecase.NewReconciliationUseCase(accountRepo, txRepo, m, logger),
		ledger:         usecase.NewLedgerUseCase(memory.NewLedgerRepository(store), m, logger),
	}
}

func adminCtx() context.Context {
	return domain.ContextWithActor(context.Background(), domain.Actor{ID: "admin-1", IsAdmin: true})
}

func userCtx(id string) context.Context {
	return domain.ContextWithActor(context.Background(), domain.Actor{ID: id})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *engine) createAccount(t *testing.T, id string) {
	t.Helper()
	if _, err := e.accounts.CreateAccount(userCtx(id), id); err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
}

func (e *engine) record(t *testing.T, accountID string, txType domain.TransactionType, amount string, planID *string) *domain.Transaction {
	t.Helper()
	tx, err := e.transactions.RecordTransaction(userCtx(accountID), usecase.RecordTransactionInput{
		AccountID: accountID,
		Type:      txType,
		Amount:    dec(amount),
		PlanID:    planID,
	})
	if err != nil {
		t.Fatalf("record %s %s: %v", txType, amount, err)
	}
	return tx
}

func (e *engine) approve(t *testing.T, transactionID string) *domain.Transaction {
	t.Helper()
	tx, err := e.transitions.Transition(adminCtx(), transactionID, domain.StatusApproved)
	if err != nil {
		t.Fatalf("approve %s: %v", transactionID, err)
	}
	return tx
}

// fund gives accountID a balance through an approved deposit.
func (e *engine) fund(t *testing.T, accountID, amount string) {
	t.Helper()
	e.approve(t, e.record(t, accountID, domain.TransactionTypeDeposit, amount, nil).ID)
}

// invest moves amount into planID through an approved investment.
func (e *engine) invest(t *testing.T, accountID, amount, planID string) {
	t.Helper()
	e.approve(t, e.record(t, accountID, domain.TransactionTypeInvestment, amount, &planID).ID)
}

func (e *engine) account(t *testing.T, id string) *domain.Account {
	t.Helper()
	acc, err := e.accounts.GetAccount(adminCtx(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return acc
}

func (e *engine) transaction(t *testing.T, id string) *domain.Transaction {
	t.Helper()
	tx, err := e.transactions.GetTransaction(adminCtx(), id)
	if err != nil {
		t.Fatalf("get transaction %s: %v", id, err)
	}
	return tx
}

// assertReconciled checks the stored figures against the effective transaction log.
func (e *engine) assertReconciled(t *testing.T, id string) {
	t.Helper()
	result, err := e.reconciliation.ReconcileAccount(adminCtx(), id)
	if err != nil {
		t.Fatalf("reconcile %s: %v", id, err)
	}
	if !result.IsReconciled {
		t.Fatalf("account %s does not reconcile: recorded %+v calculated %+v", id, result.Recorded, result.Calculated)
	}
}

func assertDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", field, want, got)
	}
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
