// Package metrics собирает метрики Prometheus: HTTP запросы, операции с кредитами
// и завершение трансформаций.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mirage"

// Metrics хранит коллекторы приложения. Нулевой указатель допустим: методы ничего не делают.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	ledgerOps     *prometheus.CounterVec
	finalized     *prometheus.CounterVec
	purchases     prometheus.Counter
	reconcileRuns *prometheus.CounterVec
}

// New регистрирует коллекторы в reg. Если reg == nil, создается новый реестр.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Credit ledger operations by kind and reason.",
		}, []string{"kind", "reason"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transformations",
			Name:      "finalized_total",
			Help:      "Transformations moved to a terminal status.",
		}, []string{"status"}),
		purchases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "purchases_total",
			Help:      "Verified credit package purchases.",
		}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "runs_total",
			Help:      "Reconciler runs by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.ledgerOps, m.finalized, m.purchases, m.reconcileRuns)
	return m
}

// Handler отдает метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware измеряет длительность и статус запросов по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// LedgerCredit учитывает начисление.
func (m *Metrics) LedgerCredit(reason string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues("credit", reason).Inc()
}

// LedgerDebit учитывает списание.
func (m *Metrics) LedgerDebit(reason string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues("debit", reason).Inc()
}

// TransformationFinalized учитывает переход трансформации в конечный статус.
func (m *Metrics) TransformationFinalized(status string) {
	if m == nil {
		return
	}
	m.finalized.WithLabelValues(status).Inc()
}

// Purchase учитывает подтвержденную покупку.
func (m *Metrics) Purchase() {
	if m == nil {
		return
	}
	m.purchases.Inc()
}

// ReconcileRun учитывает запуск сверки.
func (m *Metrics) ReconcileRun(outcome string) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(outcome).Inc()
}
