package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveGeneration(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(billsGenerated.WithLabelValues("generated"))
	ObserveGeneration(3, 1, 0, 20*time.Millisecond, nil)

	assert.Equal(t, before+3, testutil.ToFloat64(billsGenerated.WithLabelValues("generated")))
}

func TestIncPaymentTransition_SplitsByResult(t *testing.T) {
	Init()

	ok := testutil.ToFloat64(paymentTransitions.WithLabelValues("paid", ResultSuccess))
	failed := testutil.ToFloat64(paymentTransitions.WithLabelValues("paid", ResultError))

	IncPaymentTransition("paid", nil)
	IncPaymentTransition("paid", errors.New("already paid"))

	assert.Equal(t, ok+1, testutil.ToFloat64(paymentTransitions.WithLabelValues("paid", ResultSuccess)))
	assert.Equal(t, failed+1, testutil.ToFloat64(paymentTransitions.WithLabelValues("paid", ResultError)))
}

func TestSetOverdue(t *testing.T) {
	Init()

	SetOverdue("acme", "critical", 2, 3540)

	assert.Equal(t, 2.0, testutil.ToFloat64(overdueBills.WithLabelValues("acme", "critical")))
	assert.Equal(t, 3540.0, testutil.ToFloat64(overdueAmount.WithLabelValues("acme", "critical")))
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	Init()
	ObserveHTTP(http.MethodGet, "/api/v1/bills", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dairyflow_http_requests_total")
}
