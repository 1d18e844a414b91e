package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, c MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableProcessMetrics: true, EnableGoMetrics: true}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Contains(t, scrapeMetrics(t, c), "go_goroutines")
}

func TestCollector_ConstLabels(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", ConstLabels: map[string]string{"worker": "w1"}}, logging.NewNopLogger())
	require.NoError(t, err)
	c.counter("runs_total", "help", "status").WithLabelValues("SUCCESS").Inc()

	assert.Contains(t, scrapeMetrics(t, c), `test_runs_total{status="SUCCESS",worker="w1"} 1`)
}

func TestCollector_ReRegistrationSharesSeries(t *testing.T) {
	c := newTestCollector(t)
	c.counter("runs_total", "help", "status").WithLabelValues("SUCCESS").Add(2)
	c.counter("runs_total", "help", "status").WithLabelValues("SUCCESS").Inc()

	n, err := testutil.GatherAndCount(c.registry, "test_unit_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_runs_total{status="SUCCESS"} 3`)
}

func TestCollector_TypeConflictKeepsFirst(t *testing.T) {
	c := newTestCollector(t)
	c.counter("conflict", "help").WithLabelValues().Inc()
	c.gauge("conflict", "help").WithLabelValues().Set(10)
	c.histogram("conflict", "help", nil).WithLabelValues().Observe(1)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "# TYPE test_unit_conflict counter")
	assert.Contains(t, out, "test_unit_conflict 1")
}

//Personal.AI order the ending
