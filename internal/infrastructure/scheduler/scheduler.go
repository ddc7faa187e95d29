// Package scheduler runs the periodic accrual job.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// AccrualRunner is satisfied by usecase.AccrualUseCase.
type AccrualRunner interface {
	AccrueAll(ctx context.Context, today domain.Date) (*usecase.AccrualRunSummary, error)
}

// AccrualJob accrues every invested account for the current UTC day.
// A per-date lock keeps replicas from running the same day twice at once;
// MaybeAccrue stays idempotent per day even if the lock expires mid-run.
type AccrualJob struct {
	base    context.Context
	runner  AccrualRunner
	locker  usecase.Locker
	lockTTL time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewAccrualJob creates a new AccrualJob. Scheduled runs derive their context
// from base, so cancelling base aborts a run in progress.
func NewAccrualJob(base context.Context, runner AccrualRunner, locker usecase.Locker, lockTTL time.Duration, logger zerolog.Logger) *AccrualJob {
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}
	return &AccrualJob{
		base:    base,
		runner:  runner,
		locker:  locker,
		lockTTL: lockTTL,
		timeout: lockTTL,
		now:     time.Now,
		logger:  logger.With().Str("job", "accrual").Logger(),
	}
}

func lockKey(date domain.Date) string {
	return "accrual:" + date.String()
}

// RunFor accrues date. It returns a nil summary when another holder owns the lock.
func (j *AccrualJob) RunFor(ctx context.Context, date domain.Date) (*usecase.AccrualRunSummary, error) {
	key := lockKey(date)

	acquired, err := j.locker.Acquire(ctx, key, j.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !acquired {
		j.logger.Info().Str("date", date.String()).Msg("accrual run skipped, lock held elsewhere")
		return nil, nil
	}
	defer func() {
		// The lock context may already be cancelled on shutdown.
		if err := j.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			j.logger.Warn().Err(err).Str("key", key).Msg("failed to release accrual lock")
		}
	}()

	ctx = domain.ContextWithActor(ctx, domain.Actor{ID: domain.SystemActor, IsAdmin: true})
	return j.runner.AccrueAll(ctx, date)
}

// Run is the cron entry point.
func (j *AccrualJob) Run() {
	ctx, cancel := context.WithTimeout(j.base, j.timeout)
	defer cancel()

	if _, err := j.RunFor(ctx, domain.DateOf(j.now())); err != nil {
		j.logger.Error().Err(err).Msg("accrual run failed")
	}
}

// Scheduler wraps a UTC cron instance.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// New creates a scheduler whose specs are evaluated in UTC.
func New(logger zerolog.Logger) *Scheduler {
	cl := cronLogger{logger: logger.With().Str("component", "scheduler").Logger()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, logger: cl.logger}
}

// Add registers job under spec.
func (s *Scheduler) Add(name, spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info().Str("job", name).Str("schedule", spec).Msg("scheduled job")
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
