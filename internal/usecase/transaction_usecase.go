package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
)

// TransactionUseCase records and reads transaction log entries.
type TransactionUseCase struct {
	txManager       TxManager
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	plans           *domain.PlanCatalog
	journal         journal
	idGen           IDGenerator
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(
	txManager TxManager,
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	outboxRepo OutboxRepository,
	plans *domain.PlanCatalog,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *TransactionUseCase {
	return &TransactionUseCase{
		txManager:       txManager,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		plans:           plans,
		journal:         journal{outboxRepo: outboxRepo, idGen: idGen},
		idGen:           idGen,
		metrics:         m,
		logger:          logger.With().Str("component", "transactions").Logger(),
	}
}

// RecordTransactionInput represents input for recording a transaction.
type RecordTransactionInput struct {
	AccountID   string
	Type        domain.TransactionType
	Amount      decimal.Decimal
	PlanID      *string
	Description string
	Metadata    map[string]any
}

// RecordTransaction appends a pending deposit, withdrawal or investment request.
// Balance effects happen later, on approval.
func (uc *TransactionUseCase) RecordTransaction(ctx context.Context, input RecordTransactionInput) (*domain.Transaction, error) {
	actor, err := requireAccess(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	if !input.Type.UserRecordable() {
		return nil, domain.ErrInvalidTransactionType
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateMetadata(input.Metadata); err != nil {
		return nil, err
	}

	planID, err := uc.resolvePlan(input)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	transaction := &domain.Transaction{
		ID:          uc.idGen.Generate(),
		AccountID:   input.AccountID,
		Type:        input.Type,
		Amount:      input.Amount,
		PlanID:      planID,
		Status:      domain.StatusPending,
		Description: input.Description,
		Actor:       actor.ID,
		Metadata:    input.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := transaction.Validate(); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(txCtx)

	// The account must exist; it is not locked since nothing on it changes yet.
	if _, err := uc.accountRepo.GetByID(txCtx, input.AccountID); err != nil {
		return nil, err
	}

	if err := uc.transactionRepo.Create(txCtx, tx, transaction); err != nil {
		return nil, err
	}

	if err := uc.journal.event(txCtx, tx, domain.AggregateTypeTransaction, transaction.ID, domain.EventTypeTransactionRecorded,
		map[string]any{
			"transaction_id": transaction.ID,
			"account_id":     transaction.AccountID,
			"type":           string(transaction.Type),
			"amount":         transaction.Amount.String(),
		}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("transaction_id", transaction.ID).
		Str("account_id", transaction.AccountID).
		Str("type", string(transaction.Type)).
		Str("amount", transaction.Amount.String()).
		Msg("transaction recorded")
	if uc.metrics != nil {
		uc.metrics.RecordTransaction(string(transaction.Type), transaction.Amount.InexactFloat64())
	}

	return transaction, nil
}

// resolvePlan validates the plan of an investment and pins it on the entry.
func (uc *TransactionUseCase) resolvePlan(input RecordTransactionInput) (*string, error) {
	if input.Type != domain.TransactionTypeInvestment {
		return nil, nil
	}

	plan, err := uc.plans.Resolve(input.PlanID, input.Amount)
	if err != nil {
		return nil, err
	}
	if !plan.Contains(input.Amount) {
		return nil, fmt.Errorf("%w: %s not within plan %s", domain.ErrPrincipalOutOfRange, input.Amount.String(), plan.ID)
	}

	id := plan.ID
	return &id, nil
}

// GetTransaction retrieves a transaction the caller may see.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	transaction, err := uc.transactionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actorFrom(ctx).CanAccess(transaction.AccountID) {
		// Hide existence from other users.
		return nil, domain.ErrTransactionNotFound
	}
	return transaction, nil
}

// ListTransactionsInput represents input for listing an account's transactions.
type ListTransactionsInput struct {
	AccountID string
	Status    domain.TransactionStatus
	Type      domain.TransactionType
	Limit     int
	Offset    int
}

// ListTransactions lists an account's transactions, newest first.
func (uc *TransactionUseCase) ListTransactions(ctx context.Context, input ListTransactionsInput) ([]*domain.Transaction, error) {
	if _, err := requireAccess(ctx, input.AccountID); err != nil {
		return nil, err
	}
	if input.Status != "" && !input.Status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}
	if input.Type != "" && !input.Type.IsValid() {
		return nil, domain.ErrInvalidTransactionType
	}

	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.transactionRepo.List(ctx, domain.TransactionFilter{
		AccountID: input.AccountID,
		Status:    input.Status,
		Type:      input.Type,
		Limit:     limit,
		Offset:    offset,
	})
}

// ListPendingTransactions returns the review queue across all accounts. Admin only.
func (uc *TransactionUseCase) ListPendingTransactions(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.transactionRepo.List(ctx, domain.TransactionFilter{
		Status: domain.StatusPending,
		Limit:  limit,
		Offset: offset,
	})
}
