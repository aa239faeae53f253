// Package verifypayment обрабатывает подтверждение платежа Razorpay и зачисление кредитов.
package verifypayment

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

// Request — данные, которые виджет Razorpay возвращает после оплаты.
type Request struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
	Credits   int    `json:"credits" validate:"required,gt=0"`
}

// Service проверяет подпись и зачисляет покупку.
type Service interface {
	VerifyPayment(ctx context.Context, userID string, req payment.VerifyRequest) (*payment.PurchaseResult, error)
}

// Handler обрабатывает POST /api/verify-payment.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP проверяет подпись Razorpay и зачисляет кредиты заказа.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verifypayment"

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

	res, err := h.service.VerifyPayment(r.Context(), user.ID, payment.VerifyRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		Credits:   req.Credits,
	})
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("payment verified", slog.String("order_id", req.OrderID), slog.Int("credits", res.Credits))
	render.JSON(w, r, map[string]any{
		"message": "payment verified",
		"credits": res.Balance,
		"added":   res.Credits,
	})
}
