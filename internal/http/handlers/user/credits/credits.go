// Package credits реализует HTTP-обработчик баланса и истории кредитов.
package credits

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

// Service читает кредитный журнал.
type Service interface {
	Balance(ctx context.Context, userID string) (int, error)
	History(ctx context.Context, userID string) ([]models.CreditTransaction, error)
}

// Handler обрабатывает GET /api/user/credits.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.credits"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.WriteStatus(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	balance, err := h.service.Balance(r.Context(), user.ID)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	history, err := h.service.History(r.Context(), user.ID)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"credits":      balance,
		"transactions": history,
	})
}
