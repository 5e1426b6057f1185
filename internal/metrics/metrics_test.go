package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifeeder/internal/metrics"
)

func TestHandlerExposesRegistry(t *testing.T) {
	metrics.Cycles.WithLabelValues("completed").Inc()
	metrics.FetchDuration.Observe(0.2)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `notifeeder_cycles_total{result="completed"}`)
	assert.Contains(t, string(body), "notifeeder_fetch_duration_seconds_bucket")
}
