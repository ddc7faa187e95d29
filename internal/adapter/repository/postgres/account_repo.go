package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

const accountColumns = `id, balance, total_invested, total_interest, total_withdrawal,
	current_plan_id, last_accrual_date, version, created_at, updated_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db dbtx
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return newAccountRepositoryWithDB(pool)
}

func newAccountRepositoryWithDB(db dbtx) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account. A duplicate id yields domain.ErrAccountExists
// without aborting the surrounding transaction.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Tx, account *domain.Account) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		account.ID,
		decimalToNumeric(account.Balance),
		decimalToNumeric(account.TotalInvested),
		decimalToNumeric(account.TotalInterest),
		decimalToNumeric(account.TotalWithdrawal),
		account.CurrentPlanID,
		dateToPg(account.LastAccrualDate),
		account.Version,
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountExists
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByIDForUpdate retrieves an account by ID with a FOR UPDATE lock.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Tx, id string) (*domain.Account, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	row := pgxTx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

// Update writes the account if its version is unchanged and bumps the version.
func (r *AccountRepository) Update(ctx context.Context, tx usecase.Tx, account *domain.Account) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, `
		UPDATE accounts SET
			balance = $2,
			total_invested = $3,
			total_interest = $4,
			total_withdrawal = $5,
			current_plan_id = $6,
			last_accrual_date = $7,
			updated_at = $8,
			version = version + 1
		WHERE id = $1 AND version = $9`,
		account.ID,
		decimalToNumeric(account.Balance),
		decimalToNumeric(account.TotalInvested),
		decimalToNumeric(account.TotalInterest),
		decimalToNumeric(account.TotalWithdrawal),
		account.CurrentPlanID,
		dateToPg(account.LastAccrualDate),
		timeToPgTimestamptz(account.UpdatedAt),
		account.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}

	account.Version++
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, tx usecase.Tx, id string) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// List lists accounts with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

// ListAccruable returns accounts with invested principal under a plan, keyset-paged by id.
func (r *AccountRepository) ListAccruable(ctx context.Context, afterID string, limit int) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE id > $1 AND total_invested > 0 AND current_plan_id IS NOT NULL
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var balance, invested, interest, withdrawn pgtype.Numeric
	var lastAccrual pgtype.Date
	var createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(
		&account.ID,
		&balance,
		&invested,
		&interest,
		&withdrawn,
		&account.CurrentPlanID,
		&lastAccrual,
		&account.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	account.Balance = numericToDecimal(balance)
	account.TotalInvested = numericToDecimal(invested)
	account.TotalInterest = numericToDecimal(interest)
	account.TotalWithdrawal = numericToDecimal(withdrawn)
	account.LastAccrualDate = pgToDate(lastAccrual)
	account.CreatedAt = createdAt.Time
	account.UpdatedAt = updatedAt.Time

	return &account, nil
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return timeToPgTimestamptz(*t)
}

func pgToOptionalTime(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func dateToPg(d *domain.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func pgToDate(d pgtype.Date) *domain.Date {
	if !d.Valid {
		return nil
	}
	day := domain.DateOf(d.Time)
	return &day
}
