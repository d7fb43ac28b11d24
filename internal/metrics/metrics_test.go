package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsInvocations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)

	m.Started(0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
	m.Finished("claude", "query", true, 2*time.Second)
	m.Started(1)
	m.Finished("claude", "query", false, time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("claude", "query", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("claude", "query", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestMetrics_DoubleRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNew(reg)
	second := MustNew(reg)

	first.Observe("gemini", "execute", true, time.Millisecond)
	second.Observe("gemini", "execute", true, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.invocations.WithLabelValues("gemini", "execute", "success")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Started(3)
		m.Finished("claude", "query", true, time.Second)
		m.Observe("claude", "query", false, 0)
		m.Batch(2)
	})
}

func TestHandler_ServesTextFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)
	m.Batch(3)
	m.Observe("copilot", "query", true, time.Second)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `crewx_agent_invocations_total{agent="copilot",mode="query",status="success"} 1`), body)
	assert.Contains(t, body, "crewx_dispatch_batch_size_count 1")
}
