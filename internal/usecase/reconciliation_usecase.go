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

// reconcilePageSize is how many accounts a full report loads per query.
const reconcilePageSize = 100

// ReconciliationUseCase handles balance reconciliation operations
type ReconciliationUseCase struct {
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		metrics:         m,
		logger:          logger.With().Str("component", "reconciliation").Logger(),
	}
}

// AccountTotals are the four running figures kept on an account.
type AccountTotals struct {
	Balance         decimal.Decimal
	TotalInvested   decimal.Decimal
	TotalInterest   decimal.Decimal
	TotalWithdrawal decimal.Decimal
}

// Equal reports whether all four figures match.
func (t AccountTotals) Equal(other AccountTotals) bool {
	return t.Balance.Equal(other.Balance) &&
		t.TotalInvested.Equal(other.TotalInvested) &&
		t.TotalInterest.Equal(other.TotalInterest) &&
		t.TotalWithdrawal.Equal(other.TotalWithdrawal)
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID    string
	Recorded     AccountTotals
	Calculated   AccountTotals
	Difference   decimal.Decimal
	IsReconciled bool
	LastChecked  time.Time
}

// TotalsFromLog derives account figures from effective ledger sums.
func TotalsFromLog(sums map[domain.TransactionType]decimal.Decimal) AccountTotals {
	get := func(t domain.TransactionType) decimal.Decimal {
		if v, ok := sums[t]; ok {
			return v
		}
		return decimal.Zero
	}

	deposits := get(domain.TransactionTypeDeposit)
	withdrawals := get(domain.TransactionTypeWithdrawal)
	investments := get(domain.TransactionTypeInvestment)
	interest := get(domain.TransactionTypeInterest)

	balance := deposits.
		Sub(withdrawals).
		Sub(investments).
		Add(interest).
		Add(get(domain.TransactionTypeAdminCredit)).
		Sub(get(domain.TransactionTypeAdminDebit))

	return AccountTotals{
		Balance:         balance,
		TotalInvested:   investments,
		TotalInterest:   interest,
		TotalWithdrawal: withdrawals,
	}
}

// ReconcileAccount recomputes an account's figures from its transaction log
// and compares them with the stored ones.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return uc.reconcile(ctx, accountID)
}

func (uc *ReconciliationUseCase) reconcile(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sums, err := uc.transactionRepo.SumEffectiveByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	recorded := AccountTotals{
		Balance:         account.Balance,
		TotalInvested:   account.TotalInvested,
		TotalInterest:   account.TotalInterest,
		TotalWithdrawal: account.TotalWithdrawal,
	}
	calculated := TotalsFromLog(sums)

	result := &ReconciliationResult{
		AccountID:    accountID,
		Recorded:     recorded,
		Calculated:   calculated,
		Difference:   recorded.Balance.Sub(calculated.Balance),
		IsReconciled: recorded.Equal(calculated),
		LastChecked:  time.Now().UTC(),
	}

	if !result.IsReconciled {
		uc.logger.Error().
			Bool("discrepancy", true).
			Str("account_id", accountID).
			Str("recorded_balance", recorded.Balance.String()).
			Str("calculated_balance", calculated.Balance.String()).
			Str("recorded_invested", recorded.TotalInvested.String()).
			Str("calculated_invested", calculated.TotalInvested.String()).
			Str("recorded_interest", recorded.TotalInterest.String()).
			Str("calculated_interest", calculated.TotalInterest.String()).
			Msg("account does not reconcile with transaction log")
		if uc.metrics != nil {
			uc.metrics.ReconciliationDiscrepancies.Inc()
		}
	}

	return result, nil
}

// ReconcileAllAccounts reconciles all accounts in the system
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	var results []*ReconciliationResult
	for offset := 0; ; offset += reconcilePageSize {
		accounts, err := uc.accountRepo.List(ctx, reconcilePageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			result, err := uc.reconcile(ctx, account.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", account.ID, err)
			}
			results = append(results, result)
		}

		if len(accounts) < reconcilePageSize {
			break
		}
	}

	return results, nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalAccounts: len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	uc.logger.Info().
		Int("accounts", report.TotalAccounts).
		Int("discrepancies", len(report.Discrepancies)).
		Msg("reconciliation report generated")

	return report, nil
}
