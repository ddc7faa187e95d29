package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
)

// TransitionUseCase moves transactions through their status lifecycle and applies
// the resulting balance effects atomically with the status change.
type TransitionUseCase struct {
	store           *AccountStore
	transactionRepo TransactionRepository
	plans           *domain.PlanCatalog
	journal         journal
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewTransitionUseCase creates a new TransitionUseCase.
func NewTransitionUseCase(
	store *AccountStore,
	transactionRepo TransactionRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	plans *domain.PlanCatalog,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *TransitionUseCase {
	return &TransitionUseCase{
		store:           store,
		transactionRepo: transactionRepo,
		plans:           plans,
		journal:         journal{outboxRepo: outboxRepo, auditRepo: auditRepo, idGen: idGen},
		metrics:         m,
		logger:          logger.With().Str("component", "transitions").Logger(),
	}
}

// Transition applies next to the transaction. On failure neither the transaction
// nor the account is changed.
func (uc *TransitionUseCase) Transition(ctx context.Context, transactionID string, next domain.TransactionStatus) (*domain.Transaction, error) {
	actor := actorFrom(ctx)

	// Unlocked read to find the owning account; everything is re-checked under lock.
	snapshot, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actor, snapshot, next); err != nil {
		uc.recordFailure(err)
		return nil, err
	}

	var (
		result *domain.Transaction
		from   domain.TransactionStatus
	)
	account, err := uc.store.Mutate(ctx, snapshot.AccountID, func(ctx context.Context, tx Tx, account *domain.Account) error {
		transaction, err := uc.transactionRepo.GetByIDForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(actor, transaction, next); err != nil {
			return err
		}
		if err := transaction.CheckTransition(next); err != nil {
			return err
		}

		from = transaction.Status
		if err := uc.applyBalanceEffect(account, transaction, from, next); err != nil {
			return err
		}

		before := transaction.Clone()
		now := time.Now().UTC()
		transaction.MoveTo(next, actor.ID, now)

		if err := uc.transactionRepo.UpdateStatus(ctx, tx, transaction); err != nil {
			return err
		}

		if err := uc.journal.event(ctx, tx, domain.AggregateTypeTransaction, transaction.ID, domain.EventTypeTransactionStatusChanged,
			domain.TransactionStatusChangedEvent{
				TransactionID: transaction.ID,
				AccountID:     transaction.AccountID,
				Type:          string(transaction.Type),
				Amount:        transaction.Amount.String(),
				From:          string(from),
				To:            string(next),
				Actor:         actor.ID,
			}, now); err != nil {
			return err
		}

		if actor.IsAdmin {
			if err := uc.journal.audit(ctx, tx, &domain.AuditLog{
				ActorID:      actor.ID,
				Action:       string(domain.AuditActionTransactionTransition),
				ResourceType: domain.ResourceTypeTransaction,
				ResourceID:   transaction.ID,
				BeforeState:  domain.MarshalState(before),
				AfterState:   domain.MarshalState(transaction),
				CreatedAt:    now,
			}); err != nil {
				return err
			}
		}

		result = transaction
		return nil
	})
	if err != nil {
		uc.recordFailure(err)
		return nil, err
	}

	uc.logger.Info().
		Str("transaction_id", result.ID).
		Str("account_id", result.AccountID).
		Str("from", string(from)).
		Str("status", string(next)).
		Str("actor", actor.ID).
		Str("balance", account.Balance.String()).
		Msg("transaction transitioned")
	if uc.metrics != nil {
		uc.metrics.RecordTransition(string(from), string(next))
	}

	return result, nil
}

// applyBalanceEffect mutates account for the financially relevant edges of the lifecycle.
func (uc *TransitionUseCase) applyBalanceEffect(account *domain.Account, t *domain.Transaction, from, next domain.TransactionStatus) error {
	if !t.IsFinanciallyConsequential() {
		return nil
	}

	switch {
	case next == domain.StatusApproved:
		var planID string
		if t.Type == domain.TransactionTypeInvestment {
			plan, err := uc.plans.Resolve(t.PlanID, t.Amount)
			if err != nil {
				return err
			}
			planID = plan.ID
		}
		return account.ApplyApproval(t, planID)
	case from == domain.StatusApproved && next == domain.StatusCancelled:
		return account.RevertApproval(t)
	default:
		return nil
	}
}

// authorizeTransition lets admins drive every transition and owners cancel their own
// processing requests. Terminal rows fall through so the caller reports finalization.
func authorizeTransition(actor domain.Actor, t *domain.Transaction, next domain.TransactionStatus) error {
	if actor.IsAdmin {
		return nil
	}
	if actor.ID != t.AccountID || next != domain.StatusCancelled {
		return domain.ErrForbidden
	}
	if t.Status.IsTerminal() {
		return nil
	}
	if t.Status != domain.StatusProcessing {
		return domain.ErrForbidden
	}
	return nil
}

func (uc *TransitionUseCase) recordFailure(err error) {
	if uc.metrics == nil {
		return
	}
	reason := "other"
	switch {
	case errors.Is(err, domain.ErrAlreadyFinalized):
		reason = "already_finalized"
	case errors.Is(err, domain.ErrIllegalTransition):
		reason = "illegal_transition"
	case errors.Is(err, domain.ErrInsufficientBalance):
		reason = "insufficient_balance"
	case errors.Is(err, domain.ErrForbidden):
		reason = "forbidden"
	case errors.Is(err, domain.ErrConflictExhausted):
		reason = "conflict_exhausted"
	}
	uc.metrics.TransitionErrors.WithLabelValues(reason).Inc()
}
