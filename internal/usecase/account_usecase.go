package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	store           *AccountStore
	txManager       TxManager
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	journal         journal
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	store *AccountStore,
	txManager TxManager,
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AccountUseCase {
	return &AccountUseCase{
		store:           store,
		txManager:       txManager,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		journal:         journal{outboxRepo: outboxRepo, auditRepo: auditRepo, idGen: idGen},
		metrics:         m,
		logger:          logger.With().Str("component", "accounts").Logger(),
	}
}

// CreateAccount returns the caller's account, creating a zeroed one on first use.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, id string) (*domain.Account, error) {
	if err := domain.ValidateAccountID(id); err != nil {
		return nil, err
	}
	actor, err := requireAccess(ctx, id)
	if err != nil {
		return nil, err
	}

	account, created, err := uc.store.CreateIfAbsent(ctx, id, func(ctx context.Context, tx Tx, acc *domain.Account) error {
		if err := uc.journal.event(ctx, tx, domain.AggregateTypeAccount, acc.ID, domain.EventTypeAccountCreated,
			map[string]any{"account_id": acc.ID}, acc.CreatedAt); err != nil {
			return err
		}
		return uc.journal.audit(ctx, tx, &domain.AuditLog{
			ActorID:      actor.ID,
			Action:       string(domain.AuditActionAccountCreate),
			ResourceType: domain.ResourceTypeAccount,
			ResourceID:   acc.ID,
			AfterState:   domain.MarshalState(acc),
			CreatedAt:    acc.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	if created {
		uc.logger.Info().Str("account_id", account.ID).Msg("account created")
		if uc.metrics != nil {
			uc.metrics.AccountsCreated.Inc()
		}
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if _, err := requireAccess(ctx, id); err != nil {
		return nil, err
	}
	return uc.store.Get(ctx, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination. Admin only.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.accountRepo.List(ctx, limit, offset)
}

// DeleteAccount removes an account and its whole transaction history. Admin only.
func (uc *AccountUseCase) DeleteAccount(ctx context.Context, id string) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer tx.Rollback(txCtx)

	account, err := uc.accountRepo.GetByIDForUpdate(txCtx, tx, id)
	if err != nil {
		return err
	}

	removed, err := uc.transactionRepo.DeleteByAccount(txCtx, tx, id)
	if err != nil {
		return fmt.Errorf("delete transactions of %s: %w", id, err)
	}

	if err := uc.accountRepo.Delete(txCtx, tx, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := uc.journal.audit(txCtx, tx, &domain.AuditLog{
		ActorID:      actor.ID,
		Action:       string(domain.AuditActionAccountDelete),
		ResourceType: domain.ResourceTypeAccount,
		ResourceID:   id,
		BeforeState:  domain.MarshalState(account),
		CreatedAt:    now,
	}); err != nil {
		return err
	}

	if err := uc.journal.event(txCtx, tx, domain.AggregateTypeAccount, id, domain.EventTypeAccountDeleted,
		map[string]any{"account_id": id, "transactions_removed": removed}, now); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return err
	}

	uc.logger.Info().Str("account_id", id).Str("admin_id", actor.ID).Int64("transactions_removed", removed).Msg("account deleted")
	if uc.metrics != nil {
		uc.metrics.AccountsDeleted.Inc()
		uc.metrics.RecordAudit(string(domain.AuditActionAccountDelete), string(domain.AuditStatusSuccess))
	}

	return nil
}
