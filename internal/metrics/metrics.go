package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Inventory metrics
	StockMovementsTotal *prometheus.CounterVec
	StockUnitsTotal     *prometheus.CounterVec

	// Order lifecycle metrics
	OrderTransitionsTotal *prometheus.CounterVec

	// Unit-of-work metrics
	TxRetriesTotal   *prometheus.CounterVec
	TxConflictsTotal *prometheus.CounterVec
	TxDuration       *prometheus.HistogramVec

	initOnce sync.Once
)

// Init registers all collectors with the default registry under prefix.
// Only the first call has an effect; the Record helpers are no-ops until Init runs.
func Init(prefix string) {
	initOnce.Do(func() {
		HTTPRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)

		HTTPRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		StockMovementsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_stock_movements_total",
				Help: "Total number of ledger entries appended",
			},
			[]string{"direction", "source"},
		)

		StockUnitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_stock_units_total",
				Help: "Total stock units moved",
			},
			[]string{"direction"},
		)

		OrderTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_order_transitions_total",
				Help: "Total number of stock order status transitions",
			},
			[]string{"direction", "status"},
		)

		TxRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_tx_retries_total",
				Help: "Units of work retried after a transient conflict",
			},
			[]string{"operation"},
		)

		TxConflictsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_tx_conflicts_total",
				Help: "Units of work that exhausted their retries",
			},
			[]string{"operation"},
		)

		TxDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_tx_duration_seconds",
				Help:    "Duration of units of work in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)
	})
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path, status string, seconds float64) {
	if HTTPRequestsTotal == nil {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}

// RecordStockMovement records one appended ledger entry.
func RecordStockMovement(direction, source string, quantity int64) {
	if StockMovementsTotal == nil {
		return
	}
	StockMovementsTotal.WithLabelValues(direction, source).Inc()
	StockUnitsTotal.WithLabelValues(direction).Add(float64(quantity))
}

// RecordOrderTransition records a stock order entering status.
func RecordOrderTransition(direction, status string) {
	if OrderTransitionsTotal == nil {
		return
	}
	OrderTransitionsTotal.WithLabelValues(direction, status).Inc()
}

// RecordTxRetry records a retried unit of work.
func RecordTxRetry(operation string) {
	if TxRetriesTotal == nil {
		return
	}
	TxRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordTxConflict records a unit of work that gave up after its last attempt.
func RecordTxConflict(operation string) {
	if TxConflictsTotal == nil {
		return
	}
	TxConflictsTotal.WithLabelValues(operation).Inc()
}

// ObserveTx records the duration of a finished unit of work.
func ObserveTx(operation string, seconds float64) {
	if TxDuration == nil {
		return
	}
	TxDuration.WithLabelValues(operation).Observe(seconds)
}
