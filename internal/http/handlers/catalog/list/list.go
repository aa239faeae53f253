// Package list реализует HTTP-обработчик списка товаров каталога.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mirage-ghibli/internal/http/response"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

// Service возвращает товары каталога.
type Service interface {
	ListProducts(ctx context.Context, productType string) ([]models.Product, error)
}

// Handler обрабатывает GET /api/products с необязательным параметром type.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	render.JSON(w, r, map[string]any{"products": products})
}
