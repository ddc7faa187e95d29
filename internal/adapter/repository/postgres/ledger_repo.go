package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// A single statement so both sides come from the same snapshot.
const ledgerTotalsQuery = `
	WITH stored AS (
		SELECT COALESCE(SUM(balance), 0)          AS balance,
		       COALESCE(SUM(total_invested), 0)   AS invested,
		       COALESCE(SUM(total_interest), 0)   AS interest,
		       COALESCE(SUM(total_withdrawal), 0) AS withdrawal
		FROM accounts
	), logged AS (
		SELECT type, SUM(amount) AS total
		FROM transactions
		WHERE status IN ('approved', 'completed')
		GROUP BY type
	)
	SELECT s.balance, s.invested, s.interest, s.withdrawal, l.type, l.total
	FROM stored s LEFT JOIN logged l ON true`

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db dbtx
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return newLedgerRepositoryWithDB(pool)
}

func newLedgerRepositoryWithDB(db dbtx) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Totals sums stored account figures and effective log amounts.
func (r *LedgerRepository) Totals(ctx context.Context) (usecase.AccountTotals, map[domain.TransactionType]decimal.Decimal, error) {
	var stored usecase.AccountTotals

	rows, err := r.db.Query(ctx, ledgerTotalsQuery)
	if err != nil {
		return stored, nil, err
	}
	defer rows.Close()

	sums := make(map[domain.TransactionType]decimal.Decimal)
	for rows.Next() {
		var (
			balance, invested, interest, withdrawal pgtype.Numeric
			txType                                  *string
			total                                   pgtype.Numeric
		)
		if err := rows.Scan(&balance, &invested, &interest, &withdrawal, &txType, &total); err != nil {
			return stored, nil, err
		}
		stored = usecase.AccountTotals{
			Balance:         numericToDecimal(balance),
			TotalInvested:   numericToDecimal(invested),
			TotalInterest:   numericToDecimal(interest),
			TotalWithdrawal: numericToDecimal(withdrawal),
		}
		if txType != nil {
			sums[domain.TransactionType(*txType)] = numericToDecimal(total)
		}
	}

	return stored, sums, rows.Err()
}
