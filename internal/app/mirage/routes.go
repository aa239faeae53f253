package mirage

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/mirage-ghibli/internal/config"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/admin/setadmin"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/admin/updatecredits"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/admin/users"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/catalog/creditpackages"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/catalog/get"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/catalog/list"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/health"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/payment/createorder"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/payment/verifypayment"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/transform/create"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/transform/status"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/user/credits"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/user/me"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/user/transformations"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/handlers/user/verifyinstagram"
	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/metrics"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db health.Pinger, m *metrics.Metrics, s Services, rl config.RateLimit) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		m.Middleware,
	)

	r.Method(http.MethodGet, "/health", health.New(logger, db))
	r.Method(http.MethodGet, "/metrics", m.Handler())

	limiter := middlewarectx.NewUserRateLimiter(rl.RPS, rl.Burst)

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, s.Auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)
		r.Get("/products", list.New(logger, s.Catalog).ServeHTTP)
		r.Get("/products/{slug}", get.New(logger, s.Catalog).ServeHTTP)
		r.Get("/credit-packages", creditpackages.New(s.Catalog).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))

			r.Get("/user/me", me.New(logger, s.Account).ServeHTTP)
			r.Post("/user/verify-instagram", verifyinstagram.New(logger, s.Ledger).ServeHTTP)
			r.Get("/user/credits", credits.New(logger, s.Ledger).ServeHTTP)
			r.Get("/user/transformations", transformations.New(logger, s.Transform).ServeHTTP)

			r.With(middlewarectx.RateLimitMiddleware(limiter, logger)).
				Post("/transform", create.New(logger, s.Transform).ServeHTTP)
			r.Get("/transform/{id}", status.New(logger, s.Transform).ServeHTTP)

			r.Post("/create-order", createorder.New(logger, s.Payment).ServeHTTP)
			r.Post("/verify-payment", verifypayment.New(logger, s.Payment).ServeHTTP)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(logger))
				r.Get("/users", users.New(logger, s.Account).ServeHTTP)
				r.Post("/set-admin", setadmin.New(logger, s.Account).ServeHTTP)
				r.Post("/update-credits", updatecredits.New(logger, s.Account).ServeHTTP)
			})
		})
	})
}
