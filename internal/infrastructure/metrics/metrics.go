package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	TransactionsCommitted *prometheus.CounterVec
	TransactionAmount     *prometheus.HistogramVec
	TransactionErrors     *prometheus.CounterVec
	CoinBalance           *prometheus.GaugeVec

	// Price feed metrics
	PriceFetches       *prometheus.CounterVec
	PriceFetchDuration prometheus.Histogram

	// Reconciliation metrics
	ReconciliationRuns  *prometheus.CounterVec
	ReconciliationDrift *prometheus.GaugeVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttempts *prometheus.CounterVec
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransactionsCommitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinwallet_transactions_committed_total",
				Help: "Total ledger mutations committed by operation and type",
			},
			[]string{"operation", "type"},
		),
		TransactionAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinwallet_transaction_amount",
				Help:    "Transaction amounts in coin units",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10, 100, 1000, 10000},
			},
			[]string{"coin"},
		),
		TransactionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinwallet_transaction_errors_total",
				Help: "Total rejected ledger mutations by operation and reason",
			},
			[]string{"operation", "error_type"},
		),
		CoinBalance: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinwallet_coin_balance",
				Help: "Current wallet balance per coin",
			},
			[]string{"coin"},
		),

		PriceFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinwallet_price_fetches_total",
				Help: "Total price feed fetches by status",
			},
			[]string{"status"},
		),
		PriceFetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinwallet_price_fetch_duration_seconds",
			Help:    "Duration of price feed fetches",
			Buckets: prometheus.DefBuckets,
		}),

		ReconciliationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinwallet_reconciliations_total",
				Help: "Total per-coin reconciliation checks by outcome",
			},
			[]string{"coin", "status"},
		),
		ReconciliationDrift: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinwallet_reconciliation_difference",
				Help: "Recorded minus replayed balance at the last check",
			},
			[]string{"coin"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinwallet_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinwallet_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinwallet_auth_attempts_total",
				Help: "Total authentication attempts",
			},
			[]string{"status"},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinwallet_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinwallet_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"path"},
		),
	}
}

var _ usecase.MetricsRecorder = (*Metrics)(nil)

func (m *Metrics) TransactionCommitted(operation string, tx *domain.Transaction) {
	m.TransactionsCommitted.WithLabelValues(operation, string(tx.Type)).Inc()
	m.TransactionAmount.WithLabelValues(tx.CoinKey).Observe(tx.Amount.InexactFloat64())
}

func (m *Metrics) TransactionRejected(operation string, err error) {
	m.TransactionErrors.WithLabelValues(operation, ErrorType(err)).Inc()
}

func (m *Metrics) BalanceChanged(coinKey string, balance decimal.Decimal) {
	m.CoinBalance.WithLabelValues(coinKey).Set(balance.InexactFloat64())
}

func (m *Metrics) PriceFetched(err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PriceFetches.WithLabelValues(status).Inc()
	m.PriceFetchDuration.Observe(duration.Seconds())
}

func (m *Metrics) Reconciled(result *usecase.ReconciliationResult) {
	status := "reconciled"
	if !result.IsReconciled {
		status = "discrepancy"
	}
	m.ReconciliationRuns.WithLabelValues(result.CoinKey, status).Inc()
	m.ReconciliationDrift.WithLabelValues(result.CoinKey).Set(result.Difference.InexactFloat64())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveAuth records a sign-in style attempt; err nil means success.
func (m *Metrics) ObserveAuth(err error) {
	if err == nil {
		m.AuthAttempts.WithLabelValues("success").Inc()
		return
	}
	m.AuthAttempts.WithLabelValues("failure").Inc()
	m.AuthFailures.WithLabelValues(ErrorType(err)).Inc()
}

func (m *Metrics) RateLimited(path string) {
	m.RateLimitHits.WithLabelValues(path).Inc()
}

var errorTypes = []struct {
	err   error
	label string
}{
	{domain.ErrInvalidCoin, "invalid_coin"},
	{domain.ErrInvalidTransactionType, "invalid_type"},
	{domain.ErrInvalidAmount, "invalid_amount"},
	{domain.ErrAmountTooLarge, "invalid_amount"},
	{domain.ErrAmountTooPrecise, "invalid_amount"},
	{domain.ErrMissingRecipient, "missing_recipient"},
	{domain.ErrInvalidAddress, "invalid_address"},
	{domain.ErrInsufficientFunds, "insufficient_funds"},
	{domain.ErrTransactionNotFound, "not_found"},
	{domain.ErrPersistence, "persistence"},
	{domain.ErrInvalidCredentials, "invalid_credentials"},
	{domain.ErrEmailNotVerified, "email_not_verified"},
	{domain.ErrInvalidToken, "invalid_token"},
	{domain.ErrExpiredToken, "expired_token"},
	{domain.ErrSessionNotFound, "session_not_found"},
}

// ErrorType maps an error to a low-cardinality label.
func ErrorType(err error) string {
	for _, et := range errorTypes {
		if errors.Is(err, et.err) {
			return et.label
		}
	}
	return "other"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
