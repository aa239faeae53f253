// Package response формирует JSON-ответы HTTP-обработчиков и сопоставляет
// доменные ошибки кодам статуса.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// Error возвращает ErrorResponse с сообщением msg.
func Error(msg string) ErrorResponse {
	return ErrorResponse{Message: msg}
}

// ValidationError формирует ответ по ошибкам валидации структуры.
// Каждое нарушение описывается отдельной строкой.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		field := strings.ToLower(err.Field())
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", field, err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s", field, err.Param()))
		case "gt", "gte":
			msgs = append(msgs, fmt.Sprintf("field %s must be greater than %s", field, err.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of [%s]", field, err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", field))
		}
	}
	return ErrorResponse{Message: "validation failed", Errors: msgs}
}

type mapping struct {
	target error
	status int
}

var mappings = []mapping{
	{apperr.ErrValidation, http.StatusBadRequest},
	{apperr.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
	{apperr.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
	{apperr.ErrAuthentication, http.StatusUnauthorized},
	{apperr.ErrAuthorization, http.StatusForbidden},
	{apperr.ErrInsufficientCredits, http.StatusForbidden},
	{apperr.ErrDuplicateUser, http.StatusConflict},
	{apperr.ErrAlreadyVerified, http.StatusConflict},
	{apperr.ErrPaymentAlreadyProcessed, http.StatusConflict},
	{apperr.ErrSignatureMismatch, http.StatusBadRequest},
	{apperr.ErrNotFound, http.StatusNotFound},
}

// detail возвращает пояснение, записанное после текста target.
func detail(err, target error) string {
	s := err.Error()
	marker := target.Error() + ": "
	if i := strings.Index(s, marker); i >= 0 {
		return s[i+len(marker):]
	}
	return ""
}

// FromError возвращает код статуса и тело ответа для ошибки.
func FromError(err error) (int, ErrorResponse) {
	if up, ok := apperr.AsUpstream(err); ok {
		status := up.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		msg := up.Message
		if msg == "" {
			msg = up.Service + " request failed"
		}
		return status, Error(msg)
	}

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			msg := m.target.Error()
			if d := detail(err, m.target); d != "" {
				msg += ": " + d
			}
			return m.status, Error(msg)
		}
	}
	return http.StatusInternalServerError, Error("internal server error")
}

// WriteError пишет ответ с ошибкой. Ошибки 5xx логируются как Error, остальные как Warn.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, body := FromError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), sl.Err(err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), sl.Err(err))
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}

// WriteStatus пишет ответ с кодом status и сообщением msg.
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}
