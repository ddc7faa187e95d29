package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
)

// AdjustmentUseCase lets administrators credit or debit balances directly.
type AdjustmentUseCase struct {
	store           *AccountStore
	transactionRepo TransactionRepository
	journal         journal
	idGen           IDGenerator
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewAdjustmentUseCase creates a new AdjustmentUseCase.
func NewAdjustmentUseCase(
	store *AccountStore,
	transactionRepo TransactionRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AdjustmentUseCase {
	return &AdjustmentUseCase{
		store:           store,
		transactionRepo: transactionRepo,
		journal:         journal{outboxRepo: outboxRepo, auditRepo: auditRepo, idGen: idGen},
		idGen:           idGen,
		metrics:         m,
		logger:          logger.With().Str("component", "adjustments").Logger(),
	}
}

// AdjustInput represents input for an admin adjustment.
// A positive Delta credits the balance, a negative one debits it.
type AdjustInput struct {
	AccountID string
	Delta     decimal.Decimal
	Reason    string
	RequestID string
}

// Adjust applies the delta, appends a completed admin entry and writes an audit row
// in one unit. The balance never goes negative.
func (uc *AdjustmentUseCase) Adjust(ctx context.Context, input AdjustInput) (*domain.Transaction, error) {
	admin, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if input.Delta.IsZero() {
		return nil, domain.ErrInvalidAmount
	}
	if err := domain.ValidateAmount(input.Delta.Abs()); err != nil {
		return nil, err
	}
	if err := domain.ValidateReason(input.Reason); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)

	txType := domain.TransactionTypeAdminCredit
	direction := "credit"
	if input.Delta.IsNegative() {
		txType = domain.TransactionTypeAdminDebit
		direction = "debit"
	}

	var entry *domain.Transaction
	account, err := uc.store.Mutate(ctx, input.AccountID, func(ctx context.Context, tx Tx, account *domain.Account) error {
		before := account.Clone()
		if err := account.ApplyAdjustment(input.Delta); err != nil {
			return err
		}

		now := time.Now().UTC()
		entry = &domain.Transaction{
			ID:          uc.idGen.Generate(),
			AccountID:   account.ID,
			Type:        txType,
			Amount:      input.Delta.Abs(),
			Status:      domain.StatusCompleted,
			Description: reason,
			Actor:       admin.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
			CompletedAt: &now,
		}
		if err := uc.transactionRepo.Create(ctx, tx, entry); err != nil {
			return err
		}

		if err := uc.journal.audit(ctx, tx, &domain.AuditLog{
			ActorID:      admin.ID,
			Action:       string(domain.AuditActionAccountAdjust),
			ResourceType: domain.ResourceTypeAccount,
			ResourceID:   account.ID,
			Reason:       reason,
			RequestID:    input.RequestID,
			BeforeState:  domain.MarshalState(before),
			AfterState:   domain.MarshalState(account),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		return uc.journal.event(ctx, tx, domain.AggregateTypeAccount, account.ID, domain.EventTypeAccountAdjusted,
			domain.AccountAdjustedEvent{
				TransactionID: entry.ID,
				AccountID:     account.ID,
				Delta:         input.Delta.String(),
				Reason:        reason,
				AdminID:       admin.ID,
			}, now)
	})
	if err != nil {
		uc.logger.Warn().Err(err).Str("account_id", input.AccountID).Str("delta", input.Delta.String()).Msg("adjustment rejected")
		return nil, err
	}

	uc.logger.Info().
		Str("account_id", account.ID).
		Str("admin_id", admin.ID).
		Str("delta", input.Delta.String()).
		Str("balance", account.Balance.String()).
		Str("transaction_id", entry.ID).
		Msg("balance adjusted")
	if uc.metrics != nil {
		uc.metrics.Adjustments.WithLabelValues(direction).Inc()
		uc.metrics.RecordAudit(string(domain.AuditActionAccountAdjust), string(domain.AuditStatusSuccess))
	}

	return entry, nil
}
