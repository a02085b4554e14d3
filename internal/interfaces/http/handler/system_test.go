package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/connhub/internal/domain/connection"
)

func TestSystemHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]ReadinessCheck
		wantStatus int
		wantState  string
	}{
		{name: "all ready", checks: map[string]ReadinessCheck{"database": ok, "redis": ok}, wantStatus: http.StatusOK, wantState: "ready"},
		{name: "redis down", checks: map[string]ReadinessCheck{"database": ok, "redis": down}, wantStatus: http.StatusServiceUnavailable, wantState: "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("connhub", "test", connection.AllPlatforms(), tt.checks)
			r := newTestEngine()
			r.GET("/ready", h.Ready)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			require.Equal(t, tt.wantStatus, w.Code)
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body.Status)
			assert.Equal(t, "ok", body.Checks["database"])
		})
	}

	t.Run("health and info", func(t *testing.T) {
		h := NewSystemHandler("connhub", "1.2.3", connection.AllPlatforms(), nil)
		r := newTestEngine()
		r.GET("/health", h.Health)
		r.GET("/info", h.Info)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)
		assert.Contains(t, w.Body.String(), `"platforms":["shopline","nextengine"]`)
	})
}
