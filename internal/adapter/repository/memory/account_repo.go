package memory

import (
	"context"
	"sort"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Tx, account *domain.Account) error {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return err
	}
	if _, exists := st.accounts[account.ID]; exists {
		return domain.ErrAccountExists
	}
	st.accounts[account.ID] = account.Clone()
	return nil
}

// GetByID retrieves committed account state.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	account, ok := r.store.snapshot().accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// GetByIDForUpdate reads the account inside tx. Holding tx already excludes other writers.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Tx, id string) (*domain.Account, error) {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return nil, err
	}
	account, ok := st.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// Update replaces the account when its version still matches and bumps the version.
func (r *AccountRepository) Update(ctx context.Context, tx usecase.Tx, account *domain.Account) error {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return err
	}
	current, ok := st.accounts[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if current.Version != account.Version {
		return domain.ErrVersionConflict
	}
	account.Version++
	st.accounts[account.ID] = account.Clone()
	return nil
}

// Delete removes the account.
func (r *AccountRepository) Delete(ctx context.Context, tx usecase.Tx, id string) error {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return err
	}
	if _, ok := st.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(st.accounts, id)
	return nil
}

// List returns accounts ordered by creation time.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	all := r.sorted(func(a, b *domain.Account) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}, nil)
	return page(all, limit, offset), nil
}

// ListAccruable returns accounts with an active plan whose id sorts after afterID.
func (r *AccountRepository) ListAccruable(ctx context.Context, afterID string, limit int) ([]*domain.Account, error) {
	all := r.sorted(func(a, b *domain.Account) bool { return a.ID < b.ID }, func(a *domain.Account) bool {
		return a.ID > afterID && a.HasActivePlan()
	})
	return page(all, limit, 0), nil
}

func (r *AccountRepository) sorted(less func(a, b *domain.Account) bool, keep func(*domain.Account) bool) []*domain.Account {
	st := r.store.snapshot()
	out := make([]*domain.Account, 0, len(st.accounts))
	for _, account := range st.accounts {
		if keep == nil || keep(account) {
			out = append(out, account.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
