// Package creditpackages реализует HTTP-обработчик списка пакетов кредитов.
package creditpackages

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

// Service отдает пакеты кредитов.
type Service interface {
	CreditPackages() []models.CreditPackage
}

// Handler обрабатывает GET /api/credit-packages.
type Handler struct {
	service Service
}

// New создает новый экземпляр Handler.
func New(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"packages": h.service.CreditPackages()})
}
