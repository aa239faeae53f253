// Package status реализует HTTP-обработчик опроса статуса трансформации.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/response"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/transform"
)

// Service определяет интерфейс опроса статуса трансформации.
type Service interface {
	PollStatus(ctx context.Context, userID, remoteJobID string) (*models.Transformation, error)
}

// Response — текущее состояние задачи.
type Response struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	Output           *string `json:"output,omitempty"`
	Error            *string `json:"error,omitempty"`
	TransformationID int64   `json:"transformationId"`
	PollIntervalMS   int64   `json:"poll_interval_ms"`
}

// Handler обрабатывает GET /api/transform/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP возвращает состояние задачи; завершенная задача фиксируется в записи при первом опросе.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transform.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.WriteStatus(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		response.WriteStatus(w, r, http.StatusBadRequest, "job id is required")
		return
	}

	rec, err := h.service.PollStatus(r.Context(), user.ID, jobID)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	render.JSON(w, r, Response{
		ID:               jobID,
		Status:           string(rec.Status),
		Output:           rec.TransformedImage,
		Error:            rec.Error,
		TransformationID: rec.ID,
		PollIntervalMS:   transform.PollInterval.Milliseconds(),
	})
}
