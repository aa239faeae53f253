package verifyinstagram

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) VerifyInstagram(ctx context.Context, userID, username string) (int, error) {
	args := m.Called(ctx, userID, username)
	return args.Int(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerifyInstagramHandler(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		setupMocks  func(m *ServiceMock)
		wantStatus  int
		wantCredits float64
		wantMessage string
	}{
		{
			name: "first verification",
			body: `{"instagram_username":"@totoro_fan"}`,
			setupMocks: func(m *ServiceMock) {
				m.On("VerifyInstagram", mock.Anything, "u-1", "@totoro_fan").Return(3, nil).Once()
			},
			wantStatus:  http.StatusOK,
			wantCredits: 3,
			wantMessage: "instagram verified",
		},
		{
			name: "already verified",
			body: `{"instagram_username":"totoro_fan"}`,
			setupMocks: func(m *ServiceMock) {
				m.On("VerifyInstagram", mock.Anything, "u-1", "totoro_fan").Return(0, apperr.ErrAlreadyVerified).Once()
			},
			wantStatus:  http.StatusConflict,
			wantMessage: "instagram already verified",
		},
		{
			name:        "missing username",
			body:        `{}`,
			setupMocks:  func(_ *ServiceMock) {},
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/user/verify-instagram", bytes.NewBufferString(tt.body))
			req = req.WithContext(middlewarectx.WithUser(req.Context(), &models.User{ID: "u-1"}))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantMessage, got["message"])
			if tt.wantCredits > 0 {
				assert.Equal(t, tt.wantCredits, got["credits"])
			}
			svc.AssertExpectations(t)
		})
	}
}
