package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsRecorded *prometheus.CounterVec
	TransactionAmount    prometheus.Histogram
	Transitions          *prometheus.CounterVec
	TransitionErrors     *prometheus.CounterVec

	// Account metrics
	AccountsCreated   prometheus.Counter
	AccountsDeleted   prometheus.Counter
	ConflictExhausted prometheus.Counter

	// Accrual metrics
	AccrualOutcomes    *prometheus.CounterVec
	InterestCredited   prometheus.Counter
	AccrualRunDuration prometheus.Histogram
	AccrualRunFailures prometheus.Counter

	// Adjustment metrics
	Adjustments *prometheus.CounterVec

	// Reconciliation metrics
	ReconciliationDiscrepancies prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBConnections prometheus.Gauge

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
	PublishFailures prometheus.Counter

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Transaction metrics
		TransactionsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_transactions_recorded_total",
				Help: "Total transactions recorded by type",
			},
			[]string{"type"},
		),
		TransactionAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "yieldledger_transaction_amount",
			Help:    "Recorded transaction amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_transitions_total",
				Help: "Total applied status transitions",
			},
			[]string{"from", "to"},
		),
		TransitionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_transition_errors_total",
				Help: "Total rejected status transitions by reason",
			},
			[]string{"reason"},
		),

		// Account metrics
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "yieldledger_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		AccountsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "yieldledger_accounts_deleted_total",
			Help: "Total number of accounts deleted",
		}),
		ConflictExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "yieldledger_conflict_exhausted_total",
			Help: "Account mutations that ran out of conflict retries",
		}),

		// Accrual metrics
		AccrualOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_accrual_outcomes_total",
				Help: "Accrual attempts by outcome",
			},
			[]string{"outcome"},
		),
		InterestCredited: factory.NewCounter(prometheus.CounterOpts{
			Name: "yieldledger_interest_credited_total",
			Help: "Total interest credited across all accounts",
		}),
		AccrualRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "yieldledger_accrual_run_duration_seconds",
			Help:    "Duration of batch accrual runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		AccrualRunFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "yieldledger_accrual_account_failures_total",
			Help: "Accounts that failed during batch accrual runs",
		}),

		// Adjustment metrics
		Adjustments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_adjustments_total",
				Help: "Admin balance adjustments by direction",
			},
			[]string{"direction"},
		),

		// Reconciliation metrics
		ReconciliationDiscrepancies: factory.NewCounter(prometheus.CounterOpts{
			Name: "yieldledger_reconciliation_discrepancies_total",
			Help: "Accounts whose stored totals differ from the transaction log",
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yieldledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "yieldledger_db_connections",
			Help: "Current number of acquired database connections",
		}),

		// Redis metrics
		RedisOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Authentication metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// Outbox metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_events_published_total",
				Help: "Outbox events published by type",
			},
			[]string{"event_type"},
		),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "yieldledger_event_publish_failures_total",
			Help: "Outbox events that failed to publish",
		}),

		// Audit metrics
		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldledger_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),
	}
}

// RecordTransaction counts a newly recorded transaction.
func (m *Metrics) RecordTransaction(txType string, amount float64) {
	m.TransactionsRecorded.WithLabelValues(txType).Inc()
	m.TransactionAmount.Observe(amount)
}

// RecordTransition counts an applied status change.
func (m *Metrics) RecordTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

// RecordAccrual counts one accrual outcome and the interest it credited.
func (m *Metrics) RecordAccrual(outcome string, interest float64) {
	m.AccrualOutcomes.WithLabelValues(outcome).Inc()
	if interest > 0 {
		m.InterestCredited.Add(interest)
	}
}

// RecordConflictExhausted counts a mutation that gave up.
func (m *Metrics) RecordConflictExhausted() {
	m.ConflictExhausted.Inc()
}

// RecordAudit counts an audit row.
func (m *Metrics) RecordAudit(action, status string) {
	m.AuditLogsCreated.WithLabelValues(action, status).Inc()
}
