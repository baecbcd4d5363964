package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(requestsTotal.WithLabelValues("metrics-test", OutcomeFailure))
	RecordRequest("metrics-test", OutcomeFailure, 150*time.Millisecond, 2)

	assert.Equal(t, before+1, testutil.ToFloat64(requestsTotal.WithLabelValues("metrics-test", OutcomeFailure)))
	assert.Equal(t, float64(2), testutil.ToFloat64(requestRetries.WithLabelValues("metrics-test")))
}

func TestRecordEmittedAndDropped(t *testing.T) {
	RecordEmitted("metrics-records")
	RecordEmitted("metrics-records")
	RecordDropped("metrics-records")

	assert.Equal(t, float64(2), testutil.ToFloat64(recordsEmitted.WithLabelValues("metrics-records")))
	assert.Equal(t, float64(1), testutil.ToFloat64(recordsDropped.WithLabelValues("metrics-records")))
}

func TestHandler_ExposesCycleMetrics(t *testing.T) {
	RecordCycle(2 * time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "uptrends_cycles_total")
	assert.Contains(t, string(body), "uptrends_cycle_duration_seconds_bucket")
}
