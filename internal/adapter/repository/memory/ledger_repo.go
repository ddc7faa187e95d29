package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// Totals sums stored account figures and effective log amounts from committed state.
func (r *LedgerRepository) Totals(ctx context.Context) (usecase.AccountTotals, map[domain.TransactionType]decimal.Decimal, error) {
	st := r.store.snapshot()

	stored := usecase.AccountTotals{
		Balance:         decimal.Zero,
		TotalInvested:   decimal.Zero,
		TotalInterest:   decimal.Zero,
		TotalWithdrawal: decimal.Zero,
	}
	for _, a := range st.accounts {
		stored.Balance = stored.Balance.Add(a.Balance)
		stored.TotalInvested = stored.TotalInvested.Add(a.TotalInvested)
		stored.TotalInterest = stored.TotalInterest.Add(a.TotalInterest)
		stored.TotalWithdrawal = stored.TotalWithdrawal.Add(a.TotalWithdrawal)
	}

	sums := make(map[domain.TransactionType]decimal.Decimal)
	for _, t := range st.transactions {
		if t.Status == domain.StatusApproved || t.Status == domain.StatusCompleted {
			sums[t.Type] = sums[t.Type].Add(t.Amount)
		}
	}

	return stored, sums, nil
}
