package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware(t *testing.T) {
	httpRequestsTotal.Reset()
	httpRequestDuration.Reset()

	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/api/loans/{loanID}/installments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("[]"))
	})

	for _, path := range []string{"/api/loans/1/installments", "/api/loans/2/installments"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected status code %d, got %d", http.StatusOK, rec.Code)
		}
	}

	expectedTotal := `
		# HELP loan_engine_http_requests_total Total number of HTTP requests.
		# TYPE loan_engine_http_requests_total counter
		loan_engine_http_requests_total{method="GET",path="/api/loans/{loanID}/installments",status_code="200"} 2
	`
	if err := testutil.CollectAndCompare(httpRequestsTotal, strings.NewReader(expectedTotal)); err != nil {
		t.Errorf("unexpected metrics for loan_engine_http_requests_total: %v", err)
	}

	if got := testutil.CollectAndCount(httpRequestDuration); got != 1 {
		t.Errorf("expected 1 duration series, got %d", got)
	}
}

func TestMetricsMiddlewareOutsideRouter(t *testing.T) {
	httpRequestsTotal.Reset()

	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "418")); got != 1 {
		t.Errorf("expected 1 unmatched request, got %v", got)
	}
}
