// Package identity содержит провайдеры идентификации: локальный (bcrypt + JWT)
// и Supabase (GoTrue REST API).
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/jwt"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/password"
)

// Store хранит учетные данные локального провайдера.
type Store interface {
	CreateIdentity(ctx context.Context, email, passwordHash string) (string, error)
	GetIdentityByEmail(ctx context.Context, email string) (id, passwordHash string, err error)
}

// Local хранит хеши паролей в базе и выпускает собственные JWT.
type Local struct {
	store Store
	maker jwt.Maker
}

// NewLocal создает локальный провайдер.
func NewLocal(store Store, maker jwt.Maker) *Local {
	return &Local{store: store, maker: maker}
}

// SignUp сохраняет учетные данные и возвращает идентификатор пользователя.
func (l *Local) SignUp(ctx context.Context, email, rawPassword string) (string, error) {
	const op = "identity.Local.SignUp"

	hash, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	id, err := l.store.CreateIdentity(ctx, email, hash)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// SignIn проверяет пароль и выпускает токен доступа.
func (l *Local) SignIn(ctx context.Context, email, rawPassword string) (token, userID string, err error) {
	const op = "identity.Local.SignIn"

	id, hash, err := l.store.GetIdentityByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", "", fmt.Errorf("%s: %w", op, apperr.ErrAuthentication)
	}
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(hash, rawPassword); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, apperr.ErrAuthentication)
	}

	token, err = l.maker.GenerateToken(id, email)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return token, id, nil
}

// ValidateToken возвращает идентификатор пользователя из действительного токена.
func (l *Local) ValidateToken(_ context.Context, token string) (string, error) {
	const op = "identity.Local.ValidateToken"

	claims, err := l.maker.ParseToken(token)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, apperr.ErrAuthentication, err)
	}
	return claims.UserID(), nil
}
