// Package payment реализует покупку пакетов кредитов через Razorpay:
// создание заказа и проверку подписи подтвержденного платежа.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/signature"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
	"github.com/magabrotheeeer/mirage-ghibli/internal/metrics"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
	"github.com/magabrotheeeer/mirage-ghibli/internal/razorpay"
)

// Gateway — платежный шлюз.
type Gateway interface {
	CreateOrder(ctx context.Context, params razorpay.CreateOrderRequest) (*razorpay.Order, error)
	KeyID() string
}

// Repository — заказы на покупку кредитов.
type Repository interface {
	CreatePaymentOrder(ctx context.Context, order models.PaymentOrder) error
	GetPaymentOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error)
}

// Ledger зачисляет оплаченные кредиты.
type Ledger interface {
	RecordPurchase(ctx context.Context, userID, orderID, paymentID string) (balance, credits int, err error)
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// OrderResult — данные для клиентского виджета оплаты.
type OrderResult struct {
	Order   *razorpay.Order
	KeyID   string
	Package models.CreditPackage
}

// VerifyRequest — подтверждение платежа от клиента.
type VerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	Credits   int
}

// PurchaseResult — итог зачисления.
type PurchaseResult struct {
	Balance int
	Credits int
}

// Service — покупка кредитов.
type Service struct {
	gateway   Gateway
	repo      Repository
	ledger    Ledger
	publisher Publisher
	keySecret string
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// New создает сервис платежей. keySecret используется для проверки подписи.
func New(gateway Gateway, repo Repository, ledger Ledger, publisher Publisher,
	keySecret string, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		gateway:   gateway,
		repo:      repo,
		ledger:    ledger,
		publisher: publisher,
		keySecret: keySecret,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// CreateOrder создает заказ в Razorpay на один из пакетов кредитов.
// price указывается в рупиях; в Razorpay уходит сумма пакета в пайсах.
func (s *Service) CreateOrder(ctx context.Context, userID string, price int64, currency string, credits int) (*OrderResult, error) {
	const op = "payment.CreateOrder"

	pkg, ok := models.FindCreditPackage(credits, price, currency)
	if !ok {
		return nil, fmt.Errorf("%s: %w: no credit package for %d credits at %d %s", op, apperr.ErrValidation, credits, price, currency)
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   pkg.Amount,
		Currency: pkg.Currency,
		Receipt:  "mirage_" + strconv.FormatInt(s.now().UnixNano(), 36),
		Notes: map[string]string{
			"user_id": userID,
			"package": pkg.ID,
			"credits": strconv.Itoa(pkg.Credits),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.repo.CreatePaymentOrder(ctx, models.PaymentOrder{
		OrderID:  order.ID,
		UserID:   userID,
		Amount:   pkg.Amount,
		Currency: pkg.Currency,
		Credits:  pkg.Credits,
		Status:   models.OrderCreated,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("payment order created", sl.UserID(userID), slog.String("order_id", order.ID),
		slog.String("package", pkg.ID))
	return &OrderResult{Order: order, KeyID: s.gateway.KeyID(), Package: pkg}, nil
}

// VerifyPayment проверяет подпись платежа и зачисляет кредиты заказа.
// Повторное подтверждение того же платежа возвращает apperr.ErrPaymentAlreadyProcessed.
func (s *Service) VerifyPayment(ctx context.Context, userID string, req VerifyRequest) (*PurchaseResult, error) {
	const op = "payment.VerifyPayment"
	log := s.log.With(slog.String("op", op), sl.UserID(userID), slog.String("order_id", req.OrderID))

	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, fmt.Errorf("%s: %w: order id, payment id and signature are required", op, apperr.ErrValidation)
	}
	if !signature.Verify(s.keySecret, req.OrderID, req.PaymentID, req.Signature) {
		log.Warn("payment signature mismatch")
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrSignatureMismatch)
	}

	order, err := s.repo.GetPaymentOrder(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if req.Credits != order.Credits {
		return nil, fmt.Errorf("%s: %w: credits %d do not match order", op, apperr.ErrValidation, req.Credits)
	}

	balance, credits, err := s.ledger.RecordPurchase(ctx, userID, req.OrderID, req.PaymentID)
	if errors.Is(err, apperr.ErrPaymentAlreadyProcessed) {
		log.Info("payment already processed", slog.String("payment_id", req.PaymentID))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Purchase()
	event := models.CreditsPurchasedEvent{
		UserID:    userID,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Credits:   credits,
		Balance:   balance,
	}
	if err = s.publisher.Publish(ctx, rabbitmq.KeyCreditsPurchased, event); err != nil {
		log.Warn("failed to publish purchase event", sl.Err(err))
	}
	return &PurchaseResult{Balance: balance, Credits: credits}, nil
}
