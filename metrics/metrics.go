package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bulk order pipeline metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated       *prometheus.CounterVec
	PipelineRejections  *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec
	SkippedImportRows   prometheus.Counter
	StockAdjustments    prometheus.Counter
	LowStockSignals     prometheus.Counter
	ReorderSuggestions  *prometheus.GaugeVec
	PublishFailures     *prometheus.CounterVec
}

// New creates a registry with Go/process collectors and the pipeline metrics
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_orders_created_total",
			Help:      "Bulk orders committed, by submission source",
		}, []string{"source"}),
		PipelineRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_rejections_total",
			Help:      "Bulk order submissions rejected, by error code",
		}, []string{"code"}),
		TransactionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_transaction_duration_seconds",
			Help:      "Duration of store transactions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		SkippedImportRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_skipped_total",
			Help:      "Import rows skipped because of a column count mismatch",
		}),
		StockAdjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock adjustments written by reconciliation",
		}),
		LowStockSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_signals_total",
			Help:      "Low-stock signals emitted after reconciliation",
		}),
		ReorderSuggestions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reorder_suggestions",
			Help:      "Reorder suggestions in the latest forecast, by priority",
		}, []string{"priority"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_publish_failures_total",
			Help:      "Failed best-effort publishes, by topic",
		}, []string{"topic"}),
	}

	registry.MustRegister(
		m.OrdersCreated,
		m.PipelineRejections,
		m.TransactionDuration,
		m.SkippedImportRows,
		m.StockAdjustments,
		m.LowStockSignals,
		m.ReorderSuggestions,
		m.PublishFailures,
	)
	return m
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordOrderCreated(source string) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordRejection(code string) {
	if m == nil {
		return
	}
	m.PipelineRejections.WithLabelValues(code).Inc()
}

// ObserveTransaction records how long a store transaction took
func (m *Metrics) ObserveTransaction(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "committed"
	if err != nil {
		outcome = "rolled_back"
	}
	m.TransactionDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddSkippedRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SkippedImportRows.Add(float64(n))
}

func (m *Metrics) AddStockAdjustments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StockAdjustments.Add(float64(n))
}

func (m *Metrics) AddLowStockSignals(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LowStockSignals.Add(float64(n))
}

// SetReorderSuggestions replaces the per-priority gauge with the latest run
func (m *Metrics) SetReorderSuggestions(high, medium int) {
	if m == nil {
		return
	}
	m.ReorderSuggestions.WithLabelValues("high").Set(float64(high))
	m.ReorderSuggestions.WithLabelValues("medium").Set(float64(medium))
}

func (m *Metrics) RecordPublishFailure(topic string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(topic).Inc()
}
