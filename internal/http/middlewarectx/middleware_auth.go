// Package middlewarectx содержит HTTP middleware аутентификации, проверки прав
// администратора и ограничения частоты запросов.
//
// JWTMiddleware проверяет токен из заголовка Authorization и кладет в контекст
// запроса актуальный профиль пользователя. Обработчики читают его через UserFromContext.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/response"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// AuthUser — ключ профиля аутентифицированного пользователя в контексте.
const AuthUser Key = "auth_user"

// AuthResult — результат аутентификации запроса.
type AuthResult struct {
	User *models.User
}

// Authenticator проверяет токен и возвращает профиль пользователя.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// WithUser возвращает контекст с аутентифицированным пользователем.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, AuthUser, AuthResult{User: user})
}

// UserFromContext возвращает пользователя, установленного JWTMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	res, ok := ctx.Value(AuthUser).(AuthResult)
	if !ok || res.User == nil {
		return nil, false
	}
	return res.User, true
}

// JWTMiddleware возвращает middleware, который требует заголовок Authorization: Bearer <token>.
func JWTMiddleware(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				response.WriteStatus(w, r, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				response.WriteError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin пропускает только администраторов. Ставится после JWTMiddleware.
func RequireAdmin(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				response.WriteError(w, r, log, apperr.ErrAuthentication)
				return
			}
			if !user.IsAdmin {
				response.WriteError(w, r, log.With(slog.String("user_id", user.ID)), apperr.ErrAuthorization)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
