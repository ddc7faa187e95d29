package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	// Create inserts a new account. Returns domain.ErrAccountExists on a duplicate id.
	Create(ctx context.Context, tx Tx, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Tx, id string) (*domain.Account, error)
	// Update writes every mutable field and bumps Version.
	// Returns domain.ErrVersionConflict when the stored version differs from account.Version.
	Update(ctx context.Context, tx Tx, account *domain.Account) error
	Delete(ctx context.Context, tx Tx, id string) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
	// ListAccruable returns accounts with invested principal and a plan, ordered by id, after afterID.
	ListAccruable(ctx context.Context, afterID string, limit int) ([]*domain.Account, error)
}

// TransactionRepository defines data access for the transaction log.
type TransactionRepository interface {
	Create(ctx context.Context, tx Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx Tx, id string) (*domain.Transaction, error)
	// UpdateStatus persists status, actor and timestamps. Type and amount are never written.
	UpdateStatus(ctx context.Context, tx Tx, transaction *domain.Transaction) error
	List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)
	DeleteByAccount(ctx context.Context, tx Tx, accountID string) (int64, error)
	// SumEffectiveByAccount totals approved and completed amounts per type.
	SumEffectiveByAccount(ctx context.Context, accountID string) (map[domain.TransactionType]decimal.Decimal, error)
}

// LedgerRepository reports aggregates over every account.
type LedgerRepository interface {
	// Totals returns the summed stored account figures and the effective log sums per type,
	// both read from one consistent snapshot.
	Totals(ctx context.Context) (AccountTotals, map[domain.TransactionType]decimal.Decimal, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Tx, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, tx Tx, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Tx represents a database transaction.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager handles transaction lifecycle.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// Retrier re-runs an operation on transient concurrency failures.
// Implementations return domain.ErrConflictExhausted once retries run out.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyInFlight is the value an IdempotencyStore holds while the first
// request for a key is still running.
const IdempotencyInFlight = "processing"

// IsIdempotencyInFlight reports whether a stored value is the in-flight marker.
func IsIdempotencyInFlight(value []byte) bool {
	return string(value) == IdempotencyInFlight
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete drops a key so a failed request can be retried.
	Delete(ctx context.Context, key string) error
}

// Locker grants a short-lived exclusive claim on a key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
