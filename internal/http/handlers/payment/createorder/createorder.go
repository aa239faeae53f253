// Package createorder обрабатывает создание заказа на покупку кредитов.
package createorder

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/response"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/payment"
)

// Request представляет запрос на создание заказа. Amount — цена пакета в рупиях.
type Request struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"required,oneof=INR"`
	Credits  int    `json:"credits" validate:"required,gt=0"`
}

// Response — данные для клиентского виджета оплаты.
type Response struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	KeyID    string `json:"key_id"`
	Credits  int    `json:"credits"`
	Package  string `json:"package"`
}

// Service определяет интерфейс создания заказа.
type Service interface {
	CreateOrder(ctx context.Context, userID string, amount int64, currency string, credits int) (*payment.OrderResult, error)
}

// Handler обрабатывает POST /api/create-order.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис платежей
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP создает заказ в Razorpay на пакет кредитов.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.createorder"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.WriteStatus(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req Request
	if !response.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.CreateOrder(r.Context(), user.ID, req.Amount, req.Currency, req.Credits)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("order created", slog.String("order_id", res.Order.ID), slog.String("user_id", user.ID))
	render.JSON(w, r, Response{
		ID:       res.Order.ID,
		Amount:   res.Order.Amount,
		Currency: res.Order.Currency,
		Receipt:  res.Order.Receipt,
		Status:   res.Order.Status,
		KeyID:    res.KeyID,
		Credits:  res.Package.Credits,
		Package:  res.Package.ID,
	})
}
