package users

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

func (m *ServiceMock) ListUsers(ctx context.Context, actor *models.User) ([]models.User, error) {
	args := m.Called(ctx, actor)
	list, _ := args.Get(0).([]models.User)
	return list, args.Error(1)
}

func TestUsersHandler(t *testing.T) {
	admin := &models.User{ID: "a-1", IsAdmin: true}
	plain := &models.User{ID: "u-1"}

	tests := []struct {
		name       string
		actor      *models.User
		setupMocks func(m *ServiceMock)
		wantStatus int
		wantCount  int
	}{
		{
			name:  "admin lists users",
			actor: admin,
			setupMocks: func(m *ServiceMock) {
				m.On("ListUsers", mock.Anything, admin).Return([]models.User{*admin, *plain}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantCount:  2,
		},
		{
			name:  "non admin",
			actor: plain,
			setupMocks: func(m *ServiceMock) {
				m.On("ListUsers", mock.Anything, plain).Return(nil, apperr.ErrAuthorization).Once()
			},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			req = req.WithContext(middlewarectx.WithUser(req.Context(), tt.actor))
			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var got struct {
					Users []models.User `json:"users"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				assert.Len(t, got.Users, tt.wantCount)
			}
			svc.AssertExpectations(t)
		})
	}
}
