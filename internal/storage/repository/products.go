package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

const productColumns = `id, slug, type, name, price, features, popular, image_url`

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var typ string
	var features []byte
	if err := row.Scan(&p.ID, &p.Slug, &typ, &p.Name, &p.Price, &features, &p.Popular, &p.ImageURL); err != nil {
		return nil, err
	}
	p.Type = models.ProductType(typ)
	p.Features = []string{}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// ListProducts возвращает товары каталога. Пустой productType означает все разделы.
func (s *Storage) ListProducts(ctx context.Context, productType string) ([]models.Product, error) {
	const op = "storage.ListProducts"

	query := `SELECT ` + productColumns + ` FROM products WHERE ($1::text = '' OR type = $1) ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, productType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetProductBySlug возвращает товар по slug.
func (s *Storage) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	const op = "storage.GetProductBySlug"

	p, err := scanProduct(s.DB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// CountProducts возвращает число товаров в каталоге.
func (s *Storage) CountProducts(ctx context.Context) (int, error) {
	const op = "storage.CountProducts"

	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// InsertProducts добавляет товары, пропуская уже существующие slug.
func (s *Storage) InsertProducts(ctx context.Context, products []models.Product) error {
	const op = "storage.InsertProducts"

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range products {
			features, err := json.Marshal(p.Features)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO products (slug, type, name, price, features, popular, image_url)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (slug) DO NOTHING`,
				p.Slug, string(p.Type), p.Name, p.Price, string(features), p.Popular, p.ImageURL)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
