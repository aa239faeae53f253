package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
)

// MaxJSONBody — максимальный размер JSON тела запроса.
const MaxJSONBody = 1 << 20

// DecodeJSON читает тело запроса в dst и валидирует его.
// При ошибке пишет ответ 400 (некорректный JSON) или 422 (валидация) и возвращает false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody)).Decode(dst); err != nil {
		log.Warn("failed to decode request body", sl.Err(err))
		WriteStatus(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			log.Error("validation failed", sl.Err(err))
			WriteStatus(w, r, http.StatusBadRequest, "invalid request body")
			return false
		}
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ValidationError(verrs))
		return false
	}
	return true
}
