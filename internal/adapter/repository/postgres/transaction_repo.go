package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

const transactionColumns = `id, account_id, type, amount, plan_id, status, description, actor,
	auto_generated, metadata, created_at, updated_at, approved_at, completed_at`

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	db dbtx
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return newTransactionRepositoryWithDB(pool)
}

func newTransactionRepositoryWithDB(db dbtx) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Tx, t *domain.Transaction) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	metadata, err := marshalMetadata(t.Metadata)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID,
		t.AccountID,
		string(t.Type),
		decimalToNumeric(t.Amount),
		t.PlanID,
		string(t.Status),
		t.Description,
		t.Actor,
		t.AutoGenerated,
		metadata,
		timeToPgTimestamptz(t.CreatedAt),
		timeToPgTimestamptz(t.UpdatedAt),
		optionalTimestamptz(t.ApprovedAt),
		optionalTimestamptz(t.CompletedAt),
	)
	return err
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// GetByIDForUpdate retrieves a transaction by ID with a FOR UPDATE lock.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Tx, id string) (*domain.Transaction, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	row := pgxTx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	return scanTransaction(row)
}

// UpdateStatus persists status, actor and timestamps.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Tx, t *domain.Transaction) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, `
		UPDATE transactions SET
			status = $2,
			actor = $3,
			updated_at = $4,
			approved_at = $5,
			completed_at = $6
		WHERE id = $1`,
		t.ID,
		string(t.Status),
		t.Actor,
		timeToPgTimestamptz(t.UpdatedAt),
		optionalTimestamptz(t.ApprovedAt),
		optionalTimestamptz(t.CompletedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// List returns matching transactions, newest first.
func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.AccountID != "" {
		add("account_id = $%d", filter.AccountID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]*domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// DeleteByAccount removes every transaction of an account.
func (r *TransactionRepository) DeleteByAccount(ctx context.Context, tx usecase.Tx, accountID string) (int64, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return 0, err
	}

	tag, err := pgxTx.Exec(ctx, `DELETE FROM transactions WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SumEffectiveByAccount totals approved and completed amounts per type.
func (r *TransactionRepository) SumEffectiveByAccount(ctx context.Context, accountID string) (map[domain.TransactionType]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT type, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE account_id = $1 AND status IN ('approved', 'completed')
		GROUP BY type`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[domain.TransactionType]decimal.Decimal)
	for rows.Next() {
		var (
			txType string
			total  pgtype.Numeric
		)
		if err := rows.Scan(&txType, &total); err != nil {
			return nil, err
		}
		sums[domain.TransactionType(txType)] = numericToDecimal(total)
	}
	return sums, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var txType, status string
	var amount pgtype.Numeric
	var metadata []byte
	var createdAt, updatedAt, approvedAt, completedAt pgtype.Timestamptz

	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&txType,
		&amount,
		&t.PlanID,
		&status,
		&t.Description,
		&t.Actor,
		&t.AutoGenerated,
		&metadata,
		&createdAt,
		&updatedAt,
		&approvedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}

	t.Type = domain.TransactionType(txType)
	t.Status = domain.TransactionStatus(status)
	t.Amount = numericToDecimal(amount)
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time
	t.ApprovedAt = pgToOptionalTime(approvedAt)
	t.CompletedAt = pgToOptionalTime(completedAt)
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &t.Metadata)
	}

	return &t, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
