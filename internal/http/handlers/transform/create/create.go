// Package create реализует HTTP-обработчик постановки задачи трансформации.
//
// Изображение принимается в multipart-поле image. Тип берется из заголовка
// Content-Type части и проверяется сервисом по содержимому.
package create

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/response"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/transform"
)

// FieldName — имя multipart-поля с изображением.
const FieldName = "image"

// multipartOverhead — запас на заголовки multipart сверх размера изображения.
const multipartOverhead = 64 << 10

// Service ставит задачу трансформации.
type Service interface {
	Submit(ctx context.Context, userID string, image []byte, declaredType string) (*transform.SubmitResult, error)
}

// Response — ответ на постановку задачи.
type Response struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	OriginalImage    string `json:"originalImage"`
	TransformationID int64  `json:"transformationId"`
	RemainingCredits int    `json:"remainingCredits"`
}

// Handler обрабатывает POST /api/transform.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP списывает кредит и ставит задачу. Ответ 202 содержит идентификатор задачи для опроса.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transform.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.WriteStatus(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	image, declared, err := readImage(w, r)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	res, err := h.service.Submit(r.Context(), user.ID, image, declared)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, Response{
		ID:               res.RemoteJobID,
		Status:           string(res.Transformation.Status),
		OriginalImage:    res.OriginalImage,
		TransformationID: res.Transformation.ID,
		RemainingCredits: res.RemainingCredits,
	})
}

func readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, transform.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(transform.MaxImageSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, "", fmt.Errorf("%w: image exceeds %d bytes", apperr.ErrPayloadTooLarge, transform.MaxImageSize)
		}
		return nil, "", fmt.Errorf("%w: expected multipart form with field %q", apperr.ErrValidation, FieldName)
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(FieldName)
	if err != nil {
		return nil, "", fmt.Errorf("%w: field %q is required", apperr.ErrValidation, FieldName)
	}
	defer func() {
		_ = file.Close()
	}()

	image, err := io.ReadAll(io.LimitReader(file, transform.MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	return image, header.Header.Get("Content-Type"), nil
}
