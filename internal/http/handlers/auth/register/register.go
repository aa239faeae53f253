// Package register реализует HTTP-обработчик регистрации пользователя.
package register

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mirage-ghibli/internal/http/response"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

// Request — входные данные для регистрации.
type Request struct {
	Email             string  `json:"email" validate:"required,email"`
	Password          string  `json:"password" validate:"required,min=6"`
	InstagramUsername *string `json:"instagram_username,omitempty" validate:"omitempty,max=30"`
}

// Service описывает регистрацию.
type Service interface {
	Register(ctx context.Context, email, password string, instagramUsername *string) (*models.User, error)
}

// Handler обрабатывает POST /api/auth/register.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if !response.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password, req.InstagramUsername)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"user": user})
}
