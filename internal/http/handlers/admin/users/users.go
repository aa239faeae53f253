// Package users реализует административный список пользователей.
package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/response"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

// Service определяет интерфейс получения списка пользователей.
type Service interface {
	ListUsers(ctx context.Context, actor *models.User) ([]models.User, error)
}

// Handler обрабатывает GET /api/admin/users.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.users"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actor, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.WriteStatus(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	list, err := h.service.ListUsers(r.Context(), actor)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	render.JSON(w, r, map[string]any{"users": list})
}
