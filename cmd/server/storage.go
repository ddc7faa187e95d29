package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/iho/yieldledger/internal/adapter/http/handler"
	"github.com/iho/yieldledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/yieldledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/yieldledger/internal/adapter/repository/redis"
	"github.com/iho/yieldledger/internal/infrastructure/config"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
	"github.com/iho/yieldledger/internal/infrastructure/postgres"
	"github.com/iho/yieldledger/internal/infrastructure/redis"
	"github.com/iho/yieldledger/internal/usecase"
)

// storage is the set of ports backed by the configured driver.
type storage struct {
	txManager       usecase.TxManager
	accountRepo     usecase.AccountRepository
	transactionRepo usecase.TransactionRepository
	outboxRepo      usecase.OutboxRepository
	auditRepo       usecase.AuditRepository
	ledgerRepo      usecase.LedgerRepository

	idempotency usecase.IdempotencyStore
	locker      usecase.Locker

	pool    *pgxpool.Pool
	checks  map[string]handler.Check
	closers []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStorage connects the account store and transaction log, then the optional Redis
// coordination layer. Without Redis, idempotency keys and the accrual lock stay in process.
func openStorage(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) (*storage, error) {
	s := &storage{checks: map[string]handler.Check{}}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		store := memory.NewStore()
		s.txManager = memory.NewTxManager(store)
		s.accountRepo = memory.NewAccountRepository(store)
		s.transactionRepo = memory.NewTransactionRepository(store)
		s.outboxRepo = memory.NewOutboxRepository(store)
		s.auditRepo = memory.NewAuditRepository(store)
		s.ledgerRepo = memory.NewLedgerRepository(store)
		logger.Warn().Msg("using in-memory storage; data is lost on restart")

	default:
		if cfg.RunMigrations {
			if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}

		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info().Msg("connected to postgres")

		s.pool = pool
		s.closers = append(s.closers, pool.Close)
		s.checks["postgres"] = pool.Ping
		s.txManager = postgresRepo.NewTxManager(pool)
		s.accountRepo = postgresRepo.NewAccountRepository(pool)
		s.transactionRepo = postgresRepo.NewTransactionRepository(pool)
		s.outboxRepo = postgresRepo.NewOutboxRepository(pool)
		s.auditRepo = postgresRepo.NewAuditRepository(pool)
		s.ledgerRepo = postgresRepo.NewLedgerRepository(pool)
	}

	if cfg.RedisURL == "" {
		s.idempotency = memory.NewIdempotencyStore()
		s.locker = memory.NewLocker()
		return s, nil
	}

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("connected to redis")

	s.closers = append(s.closers, func() { client.Close() })
	s.checks["redis"] = redis.Pinger(client)
	s.idempotency = redisRepo.NewIdempotencyStore(client)
	s.locker = redisRepo.NewLocker(client)
	if m != nil {
		client.AddHook(redis.NewMetricsHook(m))
	}

	return s, nil
}

// watchPool exports the pool size until ctx ends.
func watchPool(ctx context.Context, pool *pgxpool.Pool, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.DBConnections.Set(float64(pool.Stat().TotalConns()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
