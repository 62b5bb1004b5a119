package metrics

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(operations.WithLabelValues("increment", ResultOK))
	ObserveOperation("increment", ResultOK, 150*time.Millisecond)
	ObserveOperation("increment", "PROVIDER_REJECTED", time.Millisecond)

	if got := testutil.ToFloat64(operations.WithLabelValues("increment", ResultOK)); got != before+1 {
		t.Fatalf("ok count = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(operations.WithLabelValues("increment", "PROVIDER_REJECTED")); got < 1 {
		t.Fatalf("expected rejected count to be recorded, got %v", got)
	}
}

func TestGauges(t *testing.T) {
	SetCounter(big.NewInt(42))
	if got := testutil.ToFloat64(counterValue); got != 42 {
		t.Fatalf("counter gauge = %v", got)
	}
	SetCounter(nil)
	if got := testutil.ToFloat64(counterValue); got != 42 {
		t.Fatalf("nil value must not reset gauge, got %v", got)
	}

	SetConnected(true)
	if got := testutil.ToFloat64(connected); got != 1 {
		t.Fatalf("connected gauge = %v", got)
	}
	SetConnected(false)
	if got := testutil.ToFloat64(connected); got != 0 {
		t.Fatalf("connected gauge = %v", got)
	}
}

func TestHandlerExposesHTTPMetrics(t *testing.T) {
	ObserveHTTPRequest("/api/v1/state", http.MethodGet, http.StatusOK, 20*time.Millisecond)
	ObserveHTTPRequest("/api/v1/counter/increment", http.MethodPost, http.StatusBadGateway, time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`chaincounter_http_requests_total{code="200",handler="/api/v1/state",method="GET"}`,
		`chaincounter_http_request_errors_total{handler="/api/v1/counter/increment",method="POST"}`,
		`chaincounter_http_request_duration_seconds_bucket`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}

func TestStartServerRequiresAddress(t *testing.T) {
	if err := StartServer(t.Context(), ""); err == nil {
		t.Fatal("expected empty address to fail")
	}
}
