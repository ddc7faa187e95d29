package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/yieldledger/internal/adapter/repository/postgres"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
	"github.com/iho/yieldledger/internal/usecase"
	"github.com/iho/yieldledger/internal/usecase/mocks"
)

type storeMocks struct {
	txManager *mocks.MockTxManager
	tx        *mocks.MockTx
	repo      *mocks.MockAccountRepository
	metrics   *metrics.Metrics
	store     *usecase.AccountStore
}

func newMockedStore(t *testing.T, maxRetries int) *storeMocks {
	ctrl := gomock.NewController(t)
	m := &storeMocks{
		txManager: mocks.NewMockTxManager(ctrl),
		tx:        mocks.NewMockTx(ctrl),
		repo:      mocks.NewMockAccountRepository(ctrl),
		metrics:   metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	retrier := postgres.NewRetrierWithConfig(postgres.RetrierConfig{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, zerolog.Nop())
	m.store = usecase.NewAccountStore(m.txManager, m.repo, retrier, m.metrics, zerolog.Nop())
	return m
}

func TestAccountStore_MutateGivesUpAfterConflicts(t *testing.T) {
	m := newMockedStore(t, 2)

	attempts := 3
	m.txManager.EXPECT().Begin(gomock.Any()).Return(m.tx, nil).Times(attempts)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil).Times(attempts)
	m.repo.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "acc").
		DoAndReturn(func(context.Context, usecase.Tx, string) (*domain.Account, error) {
			return domain.NewAccount("acc", time.Now()), nil
		}).Times(attempts)
	m.repo.EXPECT().Update(gomock.Any(), m.tx, gomock.Any()).Return(domain.ErrVersionConflict).Times(attempts)

	_, err := m.store.Mutate(context.Background(), "acc", func(ctx context.Context, tx usecase.Tx, acc *domain.Account) error {
		acc.Credit(dec("1"))
		return nil
	})
	assertErrorIs(t, err, domain.ErrConflictExhausted)

	if got := testutil.ToFloat64(m.metrics.ConflictExhausted); got != 1 {
		t.Fatalf("expected conflict exhaustion to be counted once, got %v", got)
	}
}

func TestAccountStore_MutateRetriesThenCommits(t *testing.T) {
	m := newMockedStore(t, 5)

	m.txManager.EXPECT().Begin(gomock.Any()).Return(m.tx, nil).Times(2)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil).Times(2)
	m.repo.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "acc").
		DoAndReturn(func(context.Context, usecase.Tx, string) (*domain.Account, error) {
			return domain.NewAccount("acc", time.Now()), nil
		}).Times(2)
	gomock.InOrder(
		m.repo.EXPECT().Update(gomock.Any(), m.tx, gomock.Any()).Return(domain.ErrVersionConflict),
		m.repo.EXPECT().Update(gomock.Any(), m.tx, gomock.Any()).Return(nil),
	)
	m.tx.EXPECT().Commit(gomock.Any()).Return(nil)

	calls := 0
	acc, err := m.store.Mutate(context.Background(), "acc", func(ctx context.Context, tx usecase.Tx, acc *domain.Account) error {
		calls++
		acc.Credit(dec("5"))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected fn to run once per attempt, ran %d times", calls)
	}
	assertDecimal(t, "balance", acc.Balance, "5")
}

func TestAccountStore_MutateFnErrorSkipsWrite(t *testing.T) {
	m := newMockedStore(t, 5)

	m.txManager.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	m.repo.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "acc").Return(domain.NewAccount("acc", time.Now()), nil)

	boom := errors.New("rule violated")
	_, err := m.store.Mutate(context.Background(), "acc", func(ctx context.Context, tx usecase.Tx, acc *domain.Account) error {
		acc.Credit(dec("100"))
		return boom
	})
	assertErrorIs(t, err, boom)
}

func TestAccountStore_MutateMissingAccount(t *testing.T) {
	m := newMockedStore(t, 5)

	m.txManager.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	m.repo.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "ghost").Return(nil, domain.ErrAccountNotFound)

	_, err := m.store.Mutate(context.Background(), "ghost", func(context.Context, usecase.Tx, *domain.Account) error {
		t.Fatal("fn must not run for a missing account")
		return nil
	})
	assertErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountStore_CreateIfAbsentLosesRace(t *testing.T) {
	m := newMockedStore(t, 5)
	existing := domain.NewAccount("acc", time.Now())

	gomock.InOrder(
		m.repo.EXPECT().GetByID(gomock.Any(), "acc").Return(nil, domain.ErrAccountNotFound),
		m.repo.EXPECT().GetByID(gomock.Any(), "acc").Return(existing, nil),
	)
	m.txManager.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.repo.EXPECT().Create(gomock.Any(), m.tx, gomock.Any()).Return(domain.ErrAccountExists)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

	acc, created, err := m.store.CreateIfAbsent(context.Background(), "acc", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created || acc != existing {
		t.Fatalf("expected the concurrently created account, got created=%v acc=%+v", created, acc)
	}
}

func TestAccountStore_MutateSurfacesRetrierVerdict(t *testing.T) {
	ctrl := gomock.NewController(t)
	retrier := mocks.NewMockRetrier(ctrl)
	retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).Return(domain.ErrConflictExhausted)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	store := usecase.NewAccountStore(mocks.NewMockTxManager(ctrl), mocks.NewMockAccountRepository(ctrl), retrier, m, zerolog.Nop())

	_, err := store.Mutate(context.Background(), "acc", func(context.Context, usecase.Tx, *domain.Account) error {
		t.Fatal("mutation must not run when the retrier gives up")
		return nil
	})
	assertErrorIs(t, err, domain.ErrConflictExhausted)
	if got := testutil.ToFloat64(m.ConflictExhausted); got != 1 {
		t.Fatalf("expected conflict exhaustion to be counted, got %v", got)
	}
}
