package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	m, err := NewHTTPMetrics("connhub")
	require.NoError(t, err)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/v1/connections/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/api/v1/connections/a", "/api/v1/connections/b", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/connections/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", unmatchedRoute, "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inflight))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.True(t, strings.Contains(string(body), "connhub_http_requests_total"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestHTTPMetrics_RegisterDBStats(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m, err := NewHTTPMetrics("connhub")
	require.NoError(t, err)

	require.NoError(t, m.RegisterDBStats(db, "connhub"))
	assert.NoError(t, m.RegisterDBStats(db, "connhub"), "second registration is tolerated")

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "go_sql_open_connections" {
			found = true
		}
	}
	assert.True(t, found)
}
