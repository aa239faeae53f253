package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

const userColumns = `id, email, credits, instagram_username, instagram_verified, is_admin, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var instagram sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Credits, &instagram, &u.InstagramVerified, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	if instagram.Valid {
		u.InstagramUsername = &instagram.String
	}
	return &u, nil
}

// CreateUserWithGrant создает пользователя и начисляет ему initial кредитов
// записью журнала с причиной initial в той же транзакции.
func (s *Storage) CreateUserWithGrant(ctx context.Context, nu models.NewUser, initial int) (*models.User, error) {
	const op = "storage.CreateUserWithGrant"

	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO users (id, email, credits, instagram_username)
				  VALUES ($1, $2, $3, $4)
				  RETURNING ` + userColumns
		u, err := scanUser(tx.QueryRowContext(ctx, query, nu.ID, nu.Email, initial, nu.InstagramUsername))
		if err != nil {
			return err
		}
		if err = insertTransaction(ctx, tx, nu.ID, initial, models.ReasonInitial); err != nil {
			return err
		}
		user = u
		return nil
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrDuplicateUser)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SetAdmin меняет флаг администратора и возвращает обновленного пользователя.
func (s *Storage) SetAdmin(ctx context.Context, userID string, isAdmin bool) (*models.User, error) {
	const op = "storage.SetAdmin"

	query := `UPDATE users SET is_admin = $2 WHERE id = $1 RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID, isAdmin))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// CreateIdentity сохраняет учетные данные локального провайдера и возвращает новый идентификатор.
func (s *Storage) CreateIdentity(ctx context.Context, email, passwordHash string) (string, error) {
	const op = "storage.CreateIdentity"

	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO identities (id, email, password_hash) VALUES ($1, $2, $3)`,
		id, email, passwordHash)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("%s: %w", op, apperr.ErrDuplicateUser)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetIdentityByEmail возвращает идентификатор и хеш пароля локального провайдера.
func (s *Storage) GetIdentityByEmail(ctx context.Context, email string) (id, passwordHash string, err error) {
	const op = "storage.GetIdentityByEmail"

	err = s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM identities WHERE email = $1`, email).Scan(&id, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return id, passwordHash, nil
}
