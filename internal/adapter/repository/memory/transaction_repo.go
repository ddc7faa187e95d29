package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Create appends a transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Tx, transaction *domain.Transaction) error {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return err
	}
	st.transactions[transaction.ID] = transaction.Clone()
	return nil
}

// GetByID retrieves a committed transaction.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	transaction, ok := r.store.snapshot().transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return transaction.Clone(), nil
}

// GetByIDForUpdate reads a transaction inside tx.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Tx, id string) (*domain.Transaction, error) {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return nil, err
	}
	transaction, ok := st.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return transaction.Clone(), nil
}

// UpdateStatus persists status, actor and timestamps.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Tx, transaction *domain.Transaction) error {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return err
	}
	current, ok := st.transactions[transaction.ID]
	if !ok {
		return domain.ErrTransactionNotFound
	}

	next := current.Clone()
	next.Status = transaction.Status
	next.Actor = transaction.Actor
	next.UpdatedAt = transaction.UpdatedAt
	next.ApprovedAt = transaction.ApprovedAt
	next.CompletedAt = transaction.CompletedAt
	st.transactions[transaction.ID] = next
	return nil
}

// List returns matching transactions, newest first.
func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	st := r.store.snapshot()

	out := make([]*domain.Transaction, 0)
	for _, t := range st.transactions {
		if filter.AccountID != "" && t.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, t.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return page(out, filter.Limit, filter.Offset), nil
}

// DeleteByAccount removes every transaction of the account.
func (r *TransactionRepository) DeleteByAccount(ctx context.Context, tx usecase.Tx, accountID string) (int64, error) {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return 0, err
	}
	var removed int64
	for id, t := range st.transactions {
		if t.AccountID == accountID {
			delete(st.transactions, id)
			removed++
		}
	}
	return removed, nil
}

// SumEffectiveByAccount totals approved and completed amounts per type.
func (r *TransactionRepository) SumEffectiveByAccount(ctx context.Context, accountID string) (map[domain.TransactionType]decimal.Decimal, error) {
	sums := make(map[domain.TransactionType]decimal.Decimal)
	for _, t := range r.store.snapshot().transactions {
		if t.AccountID != accountID {
			continue
		}
		if t.Status != domain.StatusApproved && t.Status != domain.StatusCompleted {
			continue
		}
		sums[t.Type] = sums[t.Type].Add(t.Amount)
	}
	return sums, nil
}
