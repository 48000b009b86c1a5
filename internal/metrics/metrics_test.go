package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestObserveExtractionCountsAttempts(t *testing.T) {
	before := counterValue(t, LLMAttempts.WithLabelValues("fake", "error"))
	ObserveExtraction("fake", time.Now(), 2, errors.New("schema"))
	assert.Equal(t, before+2, counterValue(t, LLMAttempts.WithLabelValues("fake", "error")))
}

func TestHandlerServesCollectors(t *testing.T) {
	MessagesProcessed.WithLabelValues("created_purchase").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "purchase_sync_messages_processed_total")
}
