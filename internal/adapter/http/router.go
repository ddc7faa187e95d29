package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/yieldledger/internal/adapter/http/handler"
	"github.com/iho/yieldledger/internal/adapter/http/middleware"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
	"github.com/iho/yieldledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler     *handler.AccountHandler
	TransactionHandler *handler.TransactionHandler
	AccrualHandler     *handler.AccrualHandler
	AdjustmentHandler  *handler.AdjustmentHandler
	PlanHandler        *handler.PlanHandler
	LedgerHandler      *handler.LedgerHandler
	AuditHandler       *handler.AuditHandler
	HealthHandler      *handler.HealthHandler

	TokenVerifier    middleware.TokenVerifier
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	AllowedOrigins   []string
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader},
			ExposedHeaders: []string{"X-Request-Id", "X-Idempotency-Replay"},
			MaxAge:         300,
		}))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.TokenVerifier, cfg.Metrics))

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/me", cfg.AccountHandler.CreateMe)
			r.Get("/me", cfg.AccountHandler.GetMe)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Get("/{id}/transactions", cfg.TransactionHandler.ListByAccount)
			r.Post("/{id}/accrue", cfg.AccrualHandler.AccrueAccount)

			r.With(middleware.RequireAdmin).Get("/", cfg.AccountHandler.List)
			r.With(middleware.RequireAdmin).Delete("/{id}", cfg.AccountHandler.Delete)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.TransactionHandler.Record)
			r.With(middleware.RequireAdmin).Get("/pending", cfg.TransactionHandler.ListPending)
			r.Get("/{id}", cfg.TransactionHandler.Get)
			r.Post("/{id}/transition", cfg.TransactionHandler.Transition)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", cfg.PlanHandler.List)
			r.Get("/{id}", cfg.PlanHandler.Get)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Post("/accounts/{id}/adjustments", cfg.AdjustmentHandler.Adjust)
			r.Post("/accrual/run", cfg.AccrualHandler.RunAll)
			r.Get("/reconciliation", cfg.LedgerHandler.Report)
			r.Get("/reconciliation/{id}", cfg.LedgerHandler.ReconcileAccount)
			r.Get("/ledger/consistency", cfg.LedgerHandler.CheckConsistency)
			r.Get("/audit-logs", cfg.AuditHandler.List)
		})
	})

	return r
}
