package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
)

// AccrualOutcome describes what a single accrual attempt did.
type AccrualOutcome string

const (
	AccrualNoOp                AccrualOutcome = "no_op"
	AccrualAlreadyAccruedToday AccrualOutcome = "already_accrued_today"
	AccrualAccrued             AccrualOutcome = "accrued"
)

// AccrualResult is the outcome of MaybeAccrue.
// Interest and TransactionID are only set when Outcome is AccrualAccrued.
type AccrualResult struct {
	AccountID     string
	Date          domain.Date
	Outcome       AccrualOutcome
	Interest      decimal.Decimal
	TransactionID string
	Account       *domain.Account
}

// AccrualRunSummary aggregates a batch accrual run.
type AccrualRunSummary struct {
	Date           domain.Date
	Accrued        int
	AlreadyAccrued int
	NoOp           int
	Failed         int
	TotalInterest  decimal.Decimal
	Duration       time.Duration
}

// AccrualUseCase credits daily interest on invested principal.
type AccrualUseCase struct {
	store           *AccountStore
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	plans           *domain.PlanCatalog
	journal         journal
	idGen           IDGenerator
	batchSize       int
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewAccrualUseCase creates a new AccrualUseCase.
func NewAccrualUseCase(
	store *AccountStore,
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	outboxRepo OutboxRepository,
	plans *domain.PlanCatalog,
	idGen IDGenerator,
	batchSize int,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AccrualUseCase {
	if batchSize <= 0 {
		batchSize = DefaultAccrualBatchSize
	}
	return &AccrualUseCase{
		store:           store,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		plans:           plans,
		journal:         journal{outboxRepo: outboxRepo, idGen: idGen},
		idGen:           idGen,
		batchSize:       batchSize,
		metrics:         m,
		logger:          logger.With().Str("component", "accrual").Logger(),
	}
}

// MaybeAccrue credits one day of simple interest on the account's invested principal,
// at most once per calendar day. The balance credit and the interest entry commit together.
func (uc *AccrualUseCase) MaybeAccrue(ctx context.Context, accountID string, today domain.Date) (*AccrualResult, error) {
	if _, err := requireAccess(ctx, accountID); err != nil {
		return nil, err
	}

	result := &AccrualResult{AccountID: accountID, Date: today, Outcome: AccrualNoOp}

	// Most calls are redundant; answer them without taking the row lock.
	snapshot, err := uc.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if outcome, done := accrualShortCircuit(snapshot, today); done {
		result.Outcome = outcome
		result.Account = snapshot
		uc.record(result)
		return result, nil
	}

	account, err := uc.store.Mutate(ctx, accountID, func(ctx context.Context, tx Tx, account *domain.Account) error {
		result.Outcome = AccrualNoOp
		if outcome, done := accrualShortCircuit(account, today); done {
			result.Outcome = outcome
			return errNoChange
		}

		plan, err := uc.plans.FindByID(*account.CurrentPlanID)
		if err != nil {
			return err
		}

		interest := plan.DailyInterest(account.TotalInvested)
		if !interest.IsPositive() {
			return errNoChange
		}

		account.CreditInterest(interest, today)

		now := time.Now().UTC()
		planID := plan.ID
		entry := &domain.Transaction{
			ID:            uc.idGen.Generate(),
			AccountID:     account.ID,
			Type:          domain.TransactionTypeInterest,
			Amount:        interest,
			PlanID:        &planID,
			Status:        domain.StatusCompleted,
			Description:   "daily interest for " + today.String(),
			Actor:         domain.SystemActor,
			AutoGenerated: true,
			CreatedAt:     now,
			UpdatedAt:     now,
			CompletedAt:   &now,
		}
		if err := uc.transactionRepo.Create(ctx, tx, entry); err != nil {
			return err
		}

		if err := uc.journal.event(ctx, tx, domain.AggregateTypeAccount, account.ID, domain.EventTypeInterestAccrued,
			domain.InterestAccruedEvent{
				TransactionID: entry.ID,
				AccountID:     account.ID,
				PlanID:        plan.ID,
				Amount:        interest.String(),
				Date:          today.String(),
			}, now); err != nil {
			return err
		}

		result.Outcome = AccrualAccrued
		result.Interest = interest
		result.TransactionID = entry.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Account = account
	if result.Outcome == AccrualAccrued {
		uc.logger.Info().
			Str("account_id", accountID).
			Str("date", today.String()).
			Str("amount", result.Interest.String()).
			Str("transaction_id", result.TransactionID).
			Msg("interest accrued")
	}
	uc.record(result)

	return result, nil
}

func accrualShortCircuit(account *domain.Account, today domain.Date) (AccrualOutcome, bool) {
	if !account.HasActivePlan() {
		return AccrualNoOp, true
	}
	if account.AccruedThrough(today) {
		return AccrualAlreadyAccruedToday, true
	}
	return "", false
}

func (uc *AccrualUseCase) record(result *AccrualResult) {
	if uc.metrics != nil {
		uc.metrics.RecordAccrual(string(result.Outcome), result.Interest.InexactFloat64())
	}
}

// AccrueAll runs MaybeAccrue for every account with invested principal.
// A failing account is logged and counted; the run continues with the next one.
func (uc *AccrualUseCase) AccrueAll(ctx context.Context, today domain.Date) (*AccrualRunSummary, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	started := time.Now()
	summary := &AccrualRunSummary{Date: today, TotalInterest: decimal.Zero}
	logger := uc.logger.With().Str("date", today.String()).Logger()
	logger.Info().Msg("accrual run started")

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(started)
			return summary, err
		}

		accounts, err := uc.accountRepo.ListAccruable(ctx, afterID, uc.batchSize)
		if err != nil {
			summary.Duration = time.Since(started)
			return summary, err
		}
		if len(accounts) == 0 {
			break
		}

		for _, account := range accounts {
			result, err := uc.MaybeAccrue(ctx, account.ID, today)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					summary.Duration = time.Since(started)
					return summary, err
				}
				summary.Failed++
				logger.Error().Err(err).Str("account_id", account.ID).Msg("accrual failed for account")
				if uc.metrics != nil {
					uc.metrics.AccrualRunFailures.Inc()
				}
				continue
			}

			switch result.Outcome {
			case AccrualAccrued:
				summary.Accrued++
				summary.TotalInterest = summary.TotalInterest.Add(result.Interest)
			case AccrualAlreadyAccruedToday:
				summary.AlreadyAccrued++
			default:
				summary.NoOp++
			}
		}

		afterID = accounts[len(accounts)-1].ID
		if len(accounts) < uc.batchSize {
			break
		}
	}

	summary.Duration = time.Since(started)
	if uc.metrics != nil {
		uc.metrics.AccrualRunDuration.Observe(summary.Duration.Seconds())
	}

	logger.Info().
		Int("accrued", summary.Accrued).
		Int("already_accrued", summary.AlreadyAccrued).
		Int("no_op", summary.NoOp).
		Int("failed", summary.Failed).
		Str("total_interest", summary.TotalInterest.String()).
		Dur("duration", summary.Duration).
		Msg("accrual run finished")

	return summary, nil
}
