package account_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/account"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *RepoMock) SetAdmin(ctx context.Context, userID string, isAdmin bool) (*models.User, error) {
	args := m.Called(ctx, userID, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type LedgerMock struct{ mock.Mock }

func (m *LedgerMock) SetBalance(ctx context.Context, userID string, target int) (int, error) {
	args := m.Called(ctx, userID, target)
	return args.Int(0), args.Error(1)
}

var (
	admin   = &models.User{ID: "admin-1", IsAdmin: true}
	regular = &models.User{ID: "u-1"}
)

func newService() (*account.Service, *RepoMock, *LedgerMock) {
	repo := new(RepoMock)
	ledger := new(LedgerMock)
	return account.New(repo, ledger, slog.New(slog.NewTextHandler(io.Discard, nil))), repo, ledger
}

func TestService_Profile(t *testing.T) {
	svc, repo, _ := newService()
	repo.On("GetUser", mock.Anything, "u-1").Return(regular, nil).Once()

	got, err := svc.Profile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, regular, got)
	repo.AssertExpectations(t)
}

func TestService_AdminOperationsRequireAdmin(t *testing.T) {
	svc, repo, ledger := newService()
	ctx := context.Background()

	_, err := svc.ListUsers(ctx, regular)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
	_, err = svc.SetAdmin(ctx, regular, "u-2", true)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
	_, err = svc.UpdateCredits(ctx, nil, "u-2", 10)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	repo.AssertNotCalled(t, "ListUsers", mock.Anything)
	ledger.AssertNotCalled(t, "SetBalance", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ListUsers(t *testing.T) {
	svc, repo, _ := newService()
	users := []models.User{*admin, *regular}
	repo.On("ListUsers", mock.Anything).Return(users, nil).Once()

	got, err := svc.ListUsers(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, users, got)
	repo.AssertExpectations(t)
}

func TestService_SetAdmin(t *testing.T) {
	svc, repo, _ := newService()
	promoted := &models.User{ID: "u-1", IsAdmin: true}
	repo.On("SetAdmin", mock.Anything, "u-1", true).Return(promoted, nil).Once()
	repo.On("SetAdmin", mock.Anything, "ghost", true).Return(nil, apperr.ErrNotFound).Once()

	got, err := svc.SetAdmin(context.Background(), admin, "u-1", true)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	_, err = svc.SetAdmin(context.Background(), admin, "ghost", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestService_UpdateCredits(t *testing.T) {
	tests := []struct {
		name       string
		credits    int
		setupMocks func(r *RepoMock, l *LedgerMock)
		wantErr    error
	}{
		{
			name:    "set balance",
			credits: 10,
			setupMocks: func(r *RepoMock, l *LedgerMock) {
				l.On("SetBalance", mock.Anything, "u-1", 10).Return(10, nil).Once()
				r.On("GetUser", mock.Anything, "u-1").Return(&models.User{ID: "u-1", Credits: 10}, nil).Once()
			},
		},
		{
			name:    "negative target",
			credits: -1,
			setupMocks: func(_ *RepoMock, l *LedgerMock) {
				l.On("SetBalance", mock.Anything, "u-1", -1).Return(0, apperr.ErrValidation).Once()
			},
			wantErr: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, ledger := newService()
			tt.setupMocks(repo, ledger)

			got, err := svc.UpdateCredits(context.Background(), admin, "u-1", tt.credits)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.credits, got.Credits)
			}
			repo.AssertExpectations(t)
			ledger.AssertExpectations(t)
		})
	}
}
