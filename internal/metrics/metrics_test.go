package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/transform/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for range 2 {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/transform/42", nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/transform/{id}", "404"))
	assert.Equal(t, float64(2), got)
}

func TestCounters(t *testing.T) {
	m := New(nil)

	m.LedgerDebit("generation")
	m.LedgerCredit("generation")
	m.LedgerCredit("purchase")
	m.TransformationFinalized("failed")
	m.Purchase()
	m.ReconcileRun("ok")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ledgerOps.WithLabelValues("debit", "generation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ledgerOps.WithLabelValues("credit", "purchase")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.finalized.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.purchases))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconcileRuns.WithLabelValues("ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.LedgerDebit("generation")
		m.TransformationFinalized("succeeded")
		m.Purchase()
		m.ReconcileRun("error")
	})

	called := false
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.Purchase()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "mirage_payments_purchases_total 1")
}
