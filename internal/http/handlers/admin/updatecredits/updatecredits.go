// Package updatecredits реализует административную установку баланса.
//
// Баланс не перезаписывается напрямую: сервис пишет корректирующую запись
// журнала с причиной admin на разницу между текущим и новым значением.
package updatecredits

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/response"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

// Request — целевой пользователь и новый баланс.
type Request struct {
	UserID  string `json:"user_id" validate:"required"`
	Credits *int   `json:"credits" validate:"required,min=0"`
}

// Service определяет интерфейс корректировки баланса администратором.
type Service interface {
	UpdateCredits(ctx context.Context, actor *models.User, userID string, credits int) (*models.User, error)
}

// Handler обрабатывает POST /api/admin/update-credits.
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
	const op = "handlers.admin.updatecredits"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actor, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.WriteStatus(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req Request
	if !response.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.service.UpdateCredits(r.Context(), actor, req.UserID, *req.Credits)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("credits updated", slog.String("actor_id", actor.ID),
		slog.String("user_id", user.ID), slog.Int("credits", user.Credits))
	render.JSON(w, r, map[string]any{"user": user})
}
