package createorder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
	"github.com/magabrotheeeer/mirage-ghibli/internal/razorpay"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/payment"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CreateOrder(ctx context.Context, userID string, amount int64, currency string, credits int) (*payment.OrderResult, error) {
	args := m.Called(ctx, userID, amount, currency, credits)
	res, _ := args.Get(0).(*payment.OrderResult)
	return res, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateOrderHandler(t *testing.T) {
	standard := models.CreditPackages()[1]

	tests := []struct {
		name        string
		body        string
		user        *models.User
		setupMocks  func(m *MockService)
		wantStatus  int
		wantMessage string
	}{
		{
			name: "order created from rupee price",
			body: `{"amount":249,"currency":"INR","credits":15}`,
			user: &models.User{ID: "u-1"},
			setupMocks: func(m *MockService) {
				m.On("CreateOrder", mock.Anything, "u-1", int64(249), "INR", 15).Return(&payment.OrderResult{
					Order:   &razorpay.Order{ID: "order_1", Amount: 24900, Currency: "INR", Receipt: "mirage_x", Status: "created"},
					KeyID:   "rzp_test_key",
					Package: standard,
				}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "amount does not match package",
			body: `{"amount":100,"currency":"INR","credits":15}`,
			user: &models.User{ID: "u-1"},
			setupMocks: func(m *MockService) {
				m.On("CreateOrder", mock.Anything, "u-1", int64(100), "INR", 15).
					Return(nil, apperr.ErrValidation).Once()
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "validation error",
		},
		{
			name: "gateway rejects",
			body: `{"amount":249,"currency":"INR","credits":15}`,
			user: &models.User{ID: "u-1"},
			setupMocks: func(m *MockService) {
				m.On("CreateOrder", mock.Anything, "u-1", int64(249), "INR", 15).
					Return(nil, &apperr.UpstreamError{Service: "razorpay", StatusCode: 401, Message: "Authentication failed"}).Once()
			},
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Authentication failed",
		},
		{
			name:        "unsupported currency",
			body:        `{"amount":249,"currency":"USD","credits":15}`,
			user:        &models.User{ID: "u-1"},
			setupMocks:  func(_ *MockService) {},
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "validation failed",
		},
		{
			name:        "unauthenticated",
			body:        `{"amount":249,"currency":"INR","credits":15}`,
			setupMocks:  func(_ *MockService) {},
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/create-order", bytes.NewBufferString(tt.body))
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123")
			if tt.user != nil {
				ctx = middlewarectx.WithUser(ctx, tt.user)
			}
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMessage != "" {
				var got map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				assert.Equal(t, tt.wantMessage, got["message"])
			} else {
				var got Response
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				assert.Equal(t, "order_1", got.ID)
				assert.Equal(t, "rzp_test_key", got.KeyID)
				assert.Equal(t, 15, got.Credits)
				assert.Equal(t, "standard", got.Package)
			}
			svc.AssertExpectations(t)
		})
	}
}

type stubGateway struct {
	got razorpay.CreateOrderRequest
}

func (g *stubGateway) CreateOrder(_ context.Context, params razorpay.CreateOrderRequest) (*razorpay.Order, error) {
	g.got = params
	return &razorpay.Order{ID: "order_basic", Amount: params.Amount, Currency: params.Currency, Receipt: params.Receipt, Status: "created"}, nil
}

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

type stubOrders struct {
	saved []models.PaymentOrder
}

func (s *stubOrders) CreatePaymentOrder(_ context.Context, order models.PaymentOrder) error {
	s.saved = append(s.saved, order)
	return nil
}

func (s *stubOrders) GetPaymentOrder(context.Context, string) (*models.PaymentOrder, error) {
	return nil, apperr.ErrNotFound
}

func TestCreateOrderHandler_RupeePriceFromClient(t *testing.T) {
	gateway := &stubGateway{}
	orders := &stubOrders{}
	svc := payment.New(gateway, orders, nil, nil, "secret", nil, newNoopLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/create-order",
		bytes.NewBufferString(`{"amount":99,"credits":5,"currency":"INR"}`))
	req = req.WithContext(middlewarectx.WithUser(req.Context(), &models.User{ID: "u-1"}))
	rec := httptest.NewRecorder()
	New(newNoopLogger(), svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "order_basic", got.ID)
	assert.Equal(t, int64(9900), got.Amount)
	assert.Equal(t, 5, got.Credits)
	assert.Equal(t, "basic", got.Package)

	assert.Equal(t, int64(9900), gateway.got.Amount)
	require.Len(t, orders.saved, 1)
	assert.Equal(t, int64(9900), orders.saved[0].Amount)
	assert.Equal(t, 5, orders.saved[0].Credits)
}
