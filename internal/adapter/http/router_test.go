package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/yieldledger/internal/adapter/http/middleware"
	"github.com/iho/yieldledger/internal/adapter/repository/memory"
	"github.com/iho/yieldledger/internal/adapter/repository/postgres"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/auth"
	"github.com/iho/yieldledger/internal/infrastructure/metrics"
	"github.com/iho/yieldledger/internal/usecase"
)

type apiFixture struct {
	router http.Handler
	jwt    *auth.JWTManager
}

func newFixture(t *testing.T, opts ...func(*RouterConfig)) *apiFixture {
	t.Helper()

	store := memory.NewStore()
	txManager := memory.NewTxManager(store)
	accountRepo := memory.NewAccountRepository(store)
	txRepo := memory.NewTransactionRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)
	auditRepo := memory.NewAuditRepository(store)
	idGen := postgres.NewULIDGenerator()
	plans := domain.DefaultPlanCatalog()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	logger := zerolog.Nop()

	retrier := postgres.NewRetrierWithConfig(postgres.RetrierConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}, logger)
	accountStore := usecase.NewAccountStore(txManager, accountRepo, retrier, m, logger)

	accountUC := usecase.NewAccountUseCase(accountStore, txManager, accountRepo, txRepo, outboxRepo, auditRepo, idGen, m, logger)
	transactionUC := usecase.NewTransactionUseCase(txManager, accountRepo, txRepo, outboxRepo, plans, idGen, m, logger)
	transitionUC := usecase.NewTransitionUseCase(accountStore, txRepo, outboxRepo, auditRepo, plans, idGen, m, logger)
	accrualUC := usecase.NewAccrualUseCase(accountStore, accountRepo, txRepo, outboxRepo, plans, idGen, 50, m, logger)
	adjustmentUC := usecase.NewAdjustmentUseCase(accountStore, txRepo, outboxRepo, auditRepo, idGen, m, logger)
	reconciliationUC := usecase.NewReconciliationUseCase(accountRepo, txRepo, m, logger)
	ledgerUC := usecase.NewLedgerUseCase(memory.NewLedgerRepository(store), m, logger)

	jwt := auth.NewJWTManager("test-secret", time.Hour)

	cfg := RouterConfig{
		AccountHandler:     handler.NewAccountHandler(accountUC),
		TransactionHandler: handler.NewTransactionHandler(transactionUC, transitionUC),
		AccrualHandler:     handler.NewAccrualHandler(accrualUC),
		AdjustmentHandler:  handler.NewAdjustmentHandler(adjustmentUC),
		PlanHandler:        handler.NewPlanHandler(plans),
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC, reconciliationUC),
		AuditHandler:       handler.NewAuditHandler(usecase.NewAuditUseCase(auditRepo)),
		HealthHandler:      handler.NewHealthHandler(nil),
		TokenVerifier:      jwt,
		IdempotencyStore:   memory.NewIdempotencyStore(),
		IdempotencyTTL:     time.Hour,
		Metrics:            m,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AllowedOrigins:     []string{"*"},
		Logger:             logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &apiFixture{router: NewRouter(cfg), jwt: jwt}
}

func (f *apiFixture) token(t *testing.T, id string, admin bool) string {
	t.Helper()
	token, err := f.jwt.Generate(domain.Actor{ID: id, IsAdmin: admin})
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewRouter_PublicEndpoints(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ready", "", "").Code)

	f.do(t, http.MethodGet, "/health", "", "")
	rec := f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "yieldledger_http_requests_total")
}

func TestNewRouter_RequiresToken(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/plans", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/plans", f.token(t, "user-1", false), "").Code)
}

func TestNewRouter_AdminRoutesRejectUsers(t *testing.T) {
	f := newFixture(t)
	user := f.token(t, "user-1", false)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/accounts"},
		{http.MethodDelete, "/api/v1/accounts/user-1"},
		{http.MethodGet, "/api/v1/transactions/pending"},
		{http.MethodPost, "/api/v1/admin/accrual/run"},
		{http.MethodGet, "/api/v1/admin/ledger/consistency"},
		{http.MethodGet, "/api/v1/admin/audit-logs"},
	} {
		rec := f.do(t, route.method, route.path, user, "")
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1, nil)
	f := newFixture(t, func(cfg *RouterConfig) { cfg.RateLimiter = rl })

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	f.router.ServeHTTP(rec1, req1)
	assert.Equal(t, http.StatusOK, rec1.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	f.router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	f := newFixture(t)

	chiRoutes, ok := f.router.(chi.Routes)
	require.True(t, ok, "router does not implement chi.Routes")

	seen := map[string]bool{}
	require.NoError(t, chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}))

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"POST /api/v1/accounts/me",
		"GET /api/v1/accounts/{id}",
		"POST /api/v1/accounts/{id}/accrue",
		"POST /api/v1/transactions/",
		"POST /api/v1/transactions/{id}/transition",
		"GET /api/v1/plans/",
		"POST /api/v1/admin/accounts/{id}/adjustments",
		"GET /api/v1/admin/ledger/consistency",
		"GET /api/v1/admin/audit-logs",
	}
	for _, route := range expected {
		assert.True(t, seen[route], "expected route %s to be registered", route)
	}
}

// An investment flows from record through approval to daily accrual over HTTP.
func TestNewRouter_InvestmentLifecycle(t *testing.T) {
	f := newFixture(t)
	user := f.token(t, "user-1", false)
	admin := f.token(t, "admin-1", true)

	rec := f.do(t, http.MethodPost, "/api/v1/accounts/me", user, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/transactions", user, `{"type":"deposit","amount":"2000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	deposit := decode[dto.TransactionResponse](t, rec)

	rec = f.do(t, http.MethodPost, "/api/v1/transactions/"+deposit.ID+"/transition", user, `{"status":"approved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/transactions/"+deposit.ID+"/transition", admin, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/transactions", user, `{"type":"investment","amount":"1000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	investment := decode[dto.TransactionResponse](t, rec)
	require.NotNil(t, investment.PlanID)
	assert.Equal(t, "silver", *investment.PlanID)

	rec = f.do(t, http.MethodPost, "/api/v1/transactions/"+investment.ID+"/transition", admin, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/transactions/"+investment.ID+"/transition", admin, `{"status":"approved"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/accounts/me", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	account := decode[dto.AccountResponse](t, rec)
	assert.Equal(t, "1000", account.Balance)
	assert.Equal(t, "1000", account.TotalInvested)

	body := `{"date":"2024-05-01"}`
	rec = f.do(t, http.MethodPost, "/api/v1/accounts/user-1/accrue", admin, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accrual := decode[dto.AccrualResponse](t, rec)
	assert.Equal(t, string(usecase.AccrualAccrued), accrual.Outcome)
	assert.Equal(t, "120", accrual.Interest)

	rec = f.do(t, http.MethodPost, "/api/v1/accounts/user-1/accrue", admin, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(usecase.AccrualAlreadyAccruedToday), decode[dto.AccrualResponse](t, rec).Outcome)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/ledger/consistency", admin, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[dto.LedgerCheckResponse](t, rec).Consistent)
}

func TestNewRouter_IdempotentAdjustment(t *testing.T) {
	f := newFixture(t)
	user := f.token(t, "user-1", false)
	admin := f.token(t, "admin-1", true)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/accounts/me", user, "").Code)

	body := `{"delta":"15","reason":"goodwill"}`
	first := f.do(t, http.MethodPost, "/api/v1/admin/accounts/user-1/adjustments", admin, body, apimiddleware.IdempotencyKeyHeader, "adj-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := f.do(t, http.MethodPost, "/api/v1/admin/accounts/user-1/adjustments", admin, body, apimiddleware.IdempotencyKeyHeader, "adj-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	rec := f.do(t, http.MethodGet, "/api/v1/accounts/user-1", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "15", decode[dto.AccountResponse](t, rec).Balance)
}

func TestNewRouter_AuditTrailListsAdjustments(t *testing.T) {
	f := newFixture(t)
	admin := f.token(t, "admin-1", true)

	for _, id := range []string{"user-1", "user-2"} {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/accounts/me", f.token(t, id, false), "").Code)
		rec := f.do(t, http.MethodPost, "/api/v1/admin/accounts/"+id+"/adjustments", admin, `{"delta":"10","reason":"welcome bonus"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodGet, "/api/v1/admin/audit-logs?resource_id=user-2&actor_id=admin-1", admin, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[dto.ListAuditLogsResponse](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, string(domain.AuditActionAccountAdjust), resp.AuditLogs[0].Action)
	assert.Equal(t, "welcome bonus", resp.AuditLogs[0].Reason)
	assert.Equal(t, "user-2", resp.AuditLogs[0].ResourceID)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/audit-logs?since=yesterday", admin, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
