package me

import (
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

func (m *ServiceMock) Profile(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMeHandler(t *testing.T) {
	current := &models.User{ID: "u-1", Email: "kiki@example.com", Credits: 1}

	tests := []struct {
		name       string
		user       *models.User
		setupMocks func(m *ServiceMock)
		wantStatus int
	}{
		{
			name: "returns fresh profile",
			user: current,
			setupMocks: func(m *ServiceMock) {
				m.On("Profile", mock.Anything, "u-1").
					Return(&models.User{ID: "u-1", Email: "kiki@example.com", Credits: 4}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no user in context",
			setupMocks: func(_ *ServiceMock) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "profile removed",
			user: current,
			setupMocks: func(m *ServiceMock) {
				m.On("Profile", mock.Anything, "u-1").Return(nil, apperr.ErrNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
			if tt.user != nil {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var got map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				assert.Equal(t, "u-1", got["id"])
				assert.Equal(t, float64(4), got["credits"])
				assert.NotContains(t, got, "user")
			}
			svc.AssertExpectations(t)
		})
	}
}
