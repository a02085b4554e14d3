package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/interfaces/http/dto"
)

func TestWebhookHandler_Verify(t *testing.T) {
	connID := uuid.New()
	body := `{"platform":"nextengine","connection_id":"` + connID.String() + `","account_external_id":"company-7"}`

	tests := []struct {
		name       string
		body       string
		setup      func(m *mockVerifier)
		wantStatus int
		wantCode   string
	}{
		{
			name: "matching account",
			body: body,
			setup: func(m *mockVerifier) {
				m.On("VerifyWebhookAccount", mock.Anything, connection.PlatformNextEngine, connID, "company-7").
					Return(&connection.Connection{ID: connID, UserID: "owner-1"}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "account mismatch",
			body: body,
			setup: func(m *mockVerifier) {
				m.On("VerifyWebhookAccount", mock.Anything, connection.PlatformNextEngine, connID, "company-7").
					Return(nil, connection.ErrOwnershipMismatch)
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "OWNERSHIP_MISMATCH",
		},
		{
			name:       "missing account",
			body:       `{"platform":"shopline","connection_id":"` + connID.String() + `"}`,
			setup:      func(*mockVerifier) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockVerifier)
			tt.setup(m)
			r := newTestEngine()
			r.POST("/api/v1/webhooks/verify", NewWebhookHandler(m).Verify)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/verify", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
			} else {
				assert.Contains(t, w.Body.String(), `"user_id":"owner-1"`)
			}
			m.AssertExpectations(t)
		})
	}
}
