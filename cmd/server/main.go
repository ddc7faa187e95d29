package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/yieldledger/internal/adapter/http"
	"github.com/iho/yieldledger/internal/adapter/http/handler"
	"github.com/iho/yieldledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/yieldledger/internal/adapter/repository/postgres"
	"github.com/iho/yieldledger/internal/infrastructure/auth"
	"github.com/iho/yieldledger/internal/infrastructure/config"
	"github.com/iho/yieldledger/internal/infrastructure/eventpublisher"
	"github.com/iho/yieldledger/internal/infrastructure/logger"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
	"github.com/iho/yieldledger/internal/infrastructure/plancatalog"
	"github.com/iho/yieldledger/internal/infrastructure/scheduler"
	"github.com/iho/yieldledger/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, metrics.New(), appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}
}

// app is the wired engine behind the HTTP API.
type app struct {
	storage *storage
	router  http.Handler
	accrual *usecase.AccrualUseCase
	limiter *middleware.RateLimiter
}

func newApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) (*app, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	plans, err := plancatalog.Load(cfg.PlanCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load plan catalog: %w", err)
	}

	s, err := openStorage(ctx, cfg, m, logger)
	if err != nil {
		return nil, err
	}

	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrierWithConfig(postgresRepo.RetrierConfig{MaxRetries: cfg.StoreMaxRetries}, logger)
	accountStore := usecase.NewAccountStore(s.txManager, s.accountRepo, retrier, m, logger)

	accountUC := usecase.NewAccountUseCase(accountStore, s.txManager, s.accountRepo, s.transactionRepo, s.outboxRepo, s.auditRepo, idGen, m, logger)
	transactionUC := usecase.NewTransactionUseCase(s.txManager, s.accountRepo, s.transactionRepo, s.outboxRepo, plans, idGen, m, logger)
	transitionUC := usecase.NewTransitionUseCase(accountStore, s.transactionRepo, s.outboxRepo, s.auditRepo, plans, idGen, m, logger)
	accrualUC := usecase.NewAccrualUseCase(accountStore, s.accountRepo, s.transactionRepo, s.outboxRepo, plans, idGen, cfg.AccrualBatchSize, m, logger)
	adjustmentUC := usecase.NewAdjustmentUseCase(accountStore, s.transactionRepo, s.outboxRepo, s.auditRepo, idGen, m, logger)
	reconciliationUC := usecase.NewReconciliationUseCase(s.accountRepo, s.transactionRepo, m, logger)
	ledgerUC := usecase.NewLedgerUseCase(s.ledgerRepo, m, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:     handler.NewAccountHandler(accountUC),
		TransactionHandler: handler.NewTransactionHandler(transactionUC, transitionUC),
		AccrualHandler:     handler.NewAccrualHandler(accrualUC),
		AdjustmentHandler:  handler.NewAdjustmentHandler(adjustmentUC),
		PlanHandler:        handler.NewPlanHandler(plans),
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC, reconciliationUC),
		AuditHandler:       handler.NewAuditHandler(usecase.NewAuditUseCase(s.auditRepo)),
		HealthHandler:      handler.NewHealthHandler(s.checks),
		TokenVerifier:      auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration),
		IdempotencyStore:   s.idempotency,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		RateLimiter:        limiter,
		Metrics:            m,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		Logger:             logger,
	})

	return &app{storage: s, router: router, accrual: accrualUC, limiter: limiter}, nil
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) (eventpublisher.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		return eventpublisher.NewLogPublisher(logger), func() {}, nil
	}

	pub, err := eventpublisher.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to amqp: %w", err)
	}
	logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events to amqp")
	return pub, func() { pub.Close() }, nil
}

func run(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) error {
	a, err := newApp(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer a.storage.Close()

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	workers, cancelWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	outbox := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: a.storage.outboxRepo,
		Publisher:  publisher,
		Metrics:    m,
		Logger:     logger,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
	})
	spawn(func() { _ = outbox.Start(workers) })
	spawn(func() { a.limiter.RunCleanup(workers, time.Minute, 10*time.Minute) })
	if a.storage.pool != nil {
		spawn(func() { watchPool(workers, a.storage.pool, m, 15*time.Second) })
	}

	// Cancelled before the scheduler stops; an accrual run in progress aborts.
	jobs, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	var cron *scheduler.Scheduler
	if cfg.AccrualEnabled {
		cron = scheduler.New(logger)
		job := scheduler.NewAccrualJob(jobs, a.accrual, a.storage.locker, cfg.AccrualLockTTL, logger)
		if err := cron.Add("daily-accrual", cfg.AccrualSchedule, job); err != nil {
			cancelWorkers()
			wg.Wait()
			return fmt.Errorf("schedule accrual: %w", err)
		}
		cron.Start()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      a.router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("server forced to shutdown")
	}
	if cron != nil {
		cancelJobs()
		<-cron.Stop().Done()
	}

	cancelWorkers()
	wg.Wait()

	// Deliver what the last requests committed.
	if n, drainErr := outbox.Drain(shutdownCtx); drainErr != nil {
		logger.Warn().Err(drainErr).Int("delivered", n).Msg("outbox not fully drained")
	}

	logger.Info().Msg("server stopped")
	return err
}
