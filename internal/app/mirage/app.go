// Package mirage собирает зависимости сервиса витрины и запускает HTTP-сервер.
package mirage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/mirage-ghibli/internal/cache"
	"github.com/magabrotheeeer/mirage-ghibli/internal/config"
	"github.com/magabrotheeeer/mirage-ghibli/internal/identity"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/jwt"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
	"github.com/magabrotheeeer/mirage-ghibli/internal/metrics"
	"github.com/magabrotheeeer/mirage-ghibli/internal/migrations"
	"github.com/magabrotheeeer/mirage-ghibli/internal/objectstore"
	"github.com/magabrotheeeer/mirage-ghibli/internal/razorpay"
	"github.com/magabrotheeeer/mirage-ghibli/internal/replicate"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/account"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/auth"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/catalog"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/ledger"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/payment"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/reconciler"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/transform"
	"github.com/magabrotheeeer/mirage-ghibli/internal/storage/repository"
)

const (
	shutdownTimeout = 15 * time.Second
	brokerRetries   = 5
	brokerDelay     = 2 * time.Second
)

type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Services — сервисы, которые обработчики получают через интерфейсы.
type Services struct {
	Auth      *auth.Service
	Ledger    *ledger.Service
	Account   *account.Service
	Transform *transform.Service
	Payment   *payment.Service
	Catalog   *catalog.Service
}

type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	publisher  eventPublisher
	reconciler *reconciler.Service
}

// New подключает хранилища и внешние сервисы, применяет миграции и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, err
	}

	publisher, err := newPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, err
	}

	provider, err := newIdentityProvider(cfg.Identity, db)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		_ = publisher.Close()
		return nil, err
	}

	m := metrics.New(nil)
	predictor := replicate.NewClient(cfg.Replicate.APIToken, cfg.Replicate.BaseURL,
		cfg.Replicate.ModelVersion, cfg.Replicate.Prompt, cfg.Replicate.Timeout)
	gateway := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.BaseURL)

	ledgerService := ledger.New(db, m, logger)
	services := Services{
		Auth:      auth.New(provider, db, logger),
		Ledger:    ledgerService,
		Account:   account.New(db, ledgerService, logger),
		Transform: transform.New(db, ledgerService, store, predictor, publisher, m, logger),
		Payment:   payment.New(gateway, db, ledgerService, publisher, cfg.Razorpay.KeySecret, m, logger),
		Catalog:   catalog.New(db, cacheRedis, cfg.CatalogTTL, logger),
	}

	if n, err := services.Catalog.Seed(ctx); err != nil {
		logger.Warn("failed to seed catalog", sl.Err(err))
	} else if n > 0 {
		logger.Info("catalog seeded", slog.Int("products", n))
	}

	rec, err := reconciler.New(services.Transform, cfg.Reconciler.Schedule, cfg.Reconciler.StaleAfter, m, logger)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		_ = publisher.Close()
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db.DB, m, services, cfg.RateLimit)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:     srv,
		logger:     logger,
		db:         db,
		cache:      cacheRedis,
		publisher:  publisher,
		reconciler: rec,
	}, nil
}

func newIdentityProvider(cfg config.Identity, db *repository.Storage) (auth.IdentityProvider, error) {
	switch cfg.Provider {
	case config.ProviderLocal:
		return identity.NewLocal(db, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)), nil
	case config.ProviderSupabase:
		return identity.NewSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseJWTSecret), nil
	}
	return nil, fmt.Errorf("app.newIdentityProvider: unknown provider %q", cfg.Provider)
}

func newPublisher(cfg config.RabbitMQ, logger *slog.Logger) (eventPublisher, error) {
	if cfg.URL == "" {
		logger.Info("rabbitmq url is empty, domain events are disabled")
		return rabbitmq.NopPublisher{}, nil
	}
	conn, err := rabbitmq.Connect(cfg.URL, brokerRetries, brokerDelay)
	if err != nil {
		return nil, err
	}
	publisher, err := rabbitmq.NewPublisher(conn, cfg.Exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return publisher, nil
}

// Run запускает сервер и фоновую сверку. Возвращается после отмены ctx
// и корректной остановки либо при ошибке сервера.
func (a *App) Run(ctx context.Context) error {
	a.reconciler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		runErr = a.server.Shutdown(timeoutCtx)
	}

	a.close()
	return runErr
}

func (a *App) close() {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.reconciler.Stop(stopCtx); err != nil {
		a.logger.Warn("reconciler did not stop in time", sl.Err(err))
	}
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("failed to close publisher", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
