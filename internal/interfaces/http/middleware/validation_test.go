package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/connhub/internal/interfaces/http/dto"
)

type statusBody struct {
	Status string `json:"status" binding:"required,oneof=active disabled"`
}

func TestAbortWithBindingError(t *testing.T) {
	SetupValidator()

	r := gin.New()
	r.Use(RequestID())
	r.PATCH("/", func(c *gin.Context) {
		var body statusBody
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithBindingError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantCode    string
		wantField   string
		wantMessage string
	}{
		{name: "valid", body: `{"status":"disabled"}`, wantStatus: http.StatusNoContent},
		{
			name:        "missing field",
			body:        `{}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    dto.ErrCodeValidation,
			wantField:   "status",
			wantMessage: "This field is required",
		},
		{
			name:        "unknown value",
			body:        `{"status":"paused"}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    dto.ErrCodeValidation,
			wantField:   "status",
			wantMessage: "Must be one of: active disabled",
		},
		{name: "malformed json", body: `{`, wantStatus: http.StatusBadRequest, wantCode: dto.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode == "" {
				return
			}
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantField != "" {
				require.Len(t, resp.Error.Details, 1)
				assert.Equal(t, tt.wantField, resp.Error.Details[0].Field)
				assert.Equal(t, tt.wantMessage, resp.Error.Details[0].Message)
			}
		})
	}
}
