// Package setadmin реализует назначение и снятие прав администратора.
package setadmin

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

// Request — целевой пользователь и новый флаг.
type Request struct {
	UserID  string `json:"user_id" validate:"required"`
	IsAdmin *bool  `json:"is_admin" validate:"required"`
}

// Service определяет интерфейс смены прав администратора.
type Service interface {
	SetAdmin(ctx context.Context, actor *models.User, userID string, isAdmin bool) (*models.User, error)
}

// Handler обрабатывает POST /api/admin/set-admin.
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
	const op = "handlers.admin.setadmin"

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

	user, err := h.service.SetAdmin(r.Context(), actor, req.UserID, *req.IsAdmin)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("admin flag changed", slog.String("actor_id", actor.ID),
		slog.String("user_id", user.ID), slog.Bool("is_admin", user.IsAdmin))
	render.JSON(w, r, map[string]any{"user": user})
}
