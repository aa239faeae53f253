// Package catalog отдает каталог витрины и пакеты кредитов.
// Товары читаются из Postgres и кешируются в Redis.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

const cacheKeyPrefix = "catalog:products:"

// Repository — хранилище товаров.
type Repository interface {
	ListProducts(ctx context.Context, productType string) ([]models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	CountProducts(ctx context.Context) (int, error)
	InsertProducts(ctx context.Context, products []models.Product) error
}

// Cache — кеш каталога.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Service — каталог.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// New создает сервис каталога.
func New(repo Repository, cache Cache, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, log: log}
}

func cacheKey(productType string) string {
	if productType == "" {
		return cacheKeyPrefix + "all"
	}
	return cacheKeyPrefix + productType
}

func validType(productType string) bool {
	switch models.ProductType(productType) {
	case "", models.ProductDigital, models.ProductPrints, models.ProductMerchandise:
		return true
	}
	return false
}

// ListProducts возвращает товары раздела; пустой productType означает весь каталог.
func (s *Service) ListProducts(ctx context.Context, productType string) ([]models.Product, error) {
	const op = "catalog.ListProducts"

	if !validType(productType) {
		return nil, fmt.Errorf("%s: %w: unknown product type %q", op, apperr.ErrValidation, productType)
	}

	key := cacheKey(productType)
	var cached []models.Product
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("catalog cache read failed", slog.String("key", key), sl.Err(err))
	}
	if found {
		return cached, nil
	}

	products, err := s.repo.ListProducts(ctx, productType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = s.cache.Set(ctx, key, products, s.ttl); err != nil {
		s.log.Warn("catalog cache write failed", slog.String("key", key), sl.Err(err))
	}
	return products, nil
}

// GetProduct возвращает товар по slug.
func (s *Service) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	const op = "catalog.GetProduct"

	p, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// CreditPackages возвращает пакеты кредитов.
func (s *Service) CreditPackages() []models.CreditPackage {
	return models.CreditPackages()
}

// Seed заполняет пустой каталог товарами по умолчанию и сбрасывает кеш.
// Возвращает число добавленных товаров.
func (s *Service) Seed(ctx context.Context) (int, error) {
	const op = "catalog.Seed"

	n, err := s.repo.CountProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return 0, nil
	}

	products := DefaultProducts()
	if err = s.repo.InsertProducts(ctx, products); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	keys := []string{cacheKey("")}
	for _, t := range []models.ProductType{models.ProductDigital, models.ProductPrints, models.ProductMerchandise} {
		keys = append(keys, cacheKey(string(t)))
	}
	if err = s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("catalog cache invalidation failed", sl.Err(err))
	}

	s.log.Info("catalog seeded", slog.Int("products", len(products)))
	return len(products), nil
}
