// Package verifyinstagram реализует HTTP-обработчик подтверждения подписки в Instagram.
package verifyinstagram

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/response"
)

// Request — имя пользователя в Instagram.
type Request struct {
	InstagramUsername string `json:"instagram_username" validate:"required,max=31"`
}

// Service начисляет бонус за подписку.
type Service interface {
	VerifyInstagram(ctx context.Context, userID, username string) (int, error)
}

// Handler обрабатывает POST /api/user/verify-instagram.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.verifyinstagram"

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

	balance, err := h.service.VerifyInstagram(r.Context(), user.ID, req.InstagramUsername)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("instagram verified", slog.String("user_id", user.ID), slog.Int("credits", balance))
	render.JSON(w, r, map[string]any{
		"message": "instagram verified",
		"credits": balance,
	})
}
