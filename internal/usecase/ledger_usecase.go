package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/iho/yieldledger/internal/infrastructure/metrics"
)

var (
	// ErrInconsistentLedger is returned when stored balances disagree with the transaction log.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: stored totals do not match the transaction log")
)

// LedgerCheck compares the sum of all stored account figures with the log.
type LedgerCheck struct {
	Stored     AccountTotals
	Calculated AccountTotals
	Consistent bool
}

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledgerRepo LedgerRepository
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(ledgerRepo LedgerRepository, m *metrics.Metrics, logger zerolog.Logger) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo: ledgerRepo,
		metrics:    m,
		logger:     logger.With().Str("component", "ledger").Logger(),
	}
}

// CheckConsistency verifies that money is conserved across the whole ledger.
// The check is returned together with ErrInconsistentLedger when it fails.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*LedgerCheck, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	stored, sums, err := uc.ledgerRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}

	check := &LedgerCheck{
		Stored:     stored,
		Calculated: TotalsFromLog(sums),
	}
	check.Consistent = check.Stored.Equal(check.Calculated)

	if !check.Consistent {
		uc.logger.Error().
			Bool("discrepancy", true).
			Str("stored_balance", stored.Balance.String()).
			Str("calculated_balance", check.Calculated.Balance.String()).
			Msg("ledger totals do not match transaction log")
		if uc.metrics != nil {
			uc.metrics.ReconciliationDiscrepancies.Inc()
		}
		return check, ErrInconsistentLedger
	}

	return check, nil
}
