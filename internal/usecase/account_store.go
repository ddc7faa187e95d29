package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
)

// errNoChange lets a MutateFunc finish without writing the account.
var errNoChange = errors.New("no change")

// MutateFunc changes a locked account in place. It may write other rows through tx.
// Returning an error aborts the attempt and rolls back everything written through tx.
type MutateFunc func(ctx context.Context, tx Tx, account *domain.Account) error

// AccountStore serializes every balance change per account.
type AccountStore struct {
	txManager   TxManager
	accountRepo AccountRepository
	retrier     Retrier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(
	txManager TxManager,
	accountRepo AccountRepository,
	retrier Retrier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AccountStore {
	return &AccountStore{
		txManager:   txManager,
		accountRepo: accountRepo,
		retrier:     retrier,
		metrics:     m,
		logger:      logger.With().Str("component", "account_store").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a snapshot of the account.
func (s *AccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// CreateIfAbsent returns the existing account or creates a zeroed one.
// The bool reports whether this call created it.
func (s *AccountStore) CreateIfAbsent(ctx context.Context, id string, onCreate MutateFunc) (*domain.Account, bool, error) {
	if existing, err := s.accountRepo.GetByID(ctx, id); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, false, err
	}

	account := domain.NewAccount(id, s.now())

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	if err := s.accountRepo.Create(ctx, tx, account); err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			// Lost the race to a concurrent creator.
			_ = tx.Rollback(ctx)
			existing, getErr := s.accountRepo.GetByID(ctx, id)
			return existing, false, getErr
		}
		return nil, false, err
	}

	if onCreate != nil {
		if err := onCreate(ctx, tx, account); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	return account, true, nil
}

// Mutate locks the account, applies fn to a working copy and persists the result atomically.
// Concurrency conflicts are retried. Once retries run out the error wraps domain.ErrConflictExhausted.
// Errors returned by fn are passed through unchanged and leave the account untouched.
func (s *AccountStore) Mutate(ctx context.Context, accountID string, fn MutateFunc) (*domain.Account, error) {
	var result *domain.Account
	attempts := 0

	err := s.retrier.Retry(ctx, func() error {
		attempts++
		if attempts > 1 {
			s.logger.Debug().Str("account_id", accountID).Int("attempt", attempts).Msg("retrying account mutation")
		}

		account, err := s.mutateOnce(ctx, accountID, fn)
		if err != nil {
			return err
		}
		result = account
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflictExhausted) {
			s.logger.Warn().Str("account_id", accountID).Int("attempts", attempts).Msg("account mutation gave up after conflicts")
			if s.metrics != nil {
				s.metrics.RecordConflictExhausted()
			}
		}
		return nil, err
	}

	return result, nil
}

func (s *AccountStore) mutateOnce(ctx context.Context, accountID string, fn MutateFunc) (*domain.Account, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := s.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(txCtx)

	current, err := s.accountRepo.GetByIDForUpdate(txCtx, tx, accountID)
	if err != nil {
		return nil, err
	}

	working := current.Clone()
	if err := fn(txCtx, tx, working); err != nil {
		if errors.Is(err, errNoChange) {
			return current, nil
		}
		return nil, err
	}

	working.UpdatedAt = s.now()
	if err := s.accountRepo.Update(txCtx, tx, working); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return working, nil
}
