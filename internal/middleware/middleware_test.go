package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, reg *prometheus.Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger().Handler())
	pm := NewPrometheusMiddleware("test", reg)
	r.Use(pm.Handler())
	pm.RegisterMetricsEndpoint(r, reg)
	r.GET("/ok/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func get(r http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestLoggerTraceID(t *testing.T) {
	r := newRouter(t, prometheus.NewRegistry())

	w := get(r, "/ok/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get("X-Trace-Id"), 36, "без span выдаётся UUID")

	w = get(r, "/ok/1", http.Header{"X-Trace-Id": {"abc123"}})
	assert.Equal(t, "abc123", w.Header().Get("X-Trace-Id"))
}

func TestPrometheusMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newRouter(t, reg)

	get(r, "/ok/1", nil)
	get(r, "/ok/2", nil)
	get(r, "/fail", nil)
	get(r, "/nowhere", nil)

	pm := NewPrometheusMiddleware("unused", nil)
	assert.NotNil(t, pm.Handler(), "без registry метрики не регистрируются")

	count, err := testutil.GatherAndCount(reg, "test_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "метки по шаблону маршрута: /ok/:id, /fail, unmatched")

	errs, err := testutil.GatherAndCount(reg, "test_http_request_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 2, errs, "500 и 404")

	w := get(r, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",path="/ok/:id",status="200"} 2`)
}
