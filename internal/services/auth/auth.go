// Package auth реализует регистрацию, вход и аутентификацию пользователей
// поверх провайдера идентификации.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
	"github.com/magabrotheeeer/mirage-ghibli/internal/services/ledger"
)

// MinPasswordLength — минимальная длина пароля.
const MinPasswordLength = 6

// IdentityProvider хранит учетные данные и выпускает токены.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (token, userID string, err error)
	ValidateToken(ctx context.Context, token string) (string, error)
}

// UserRepository — профили пользователей.
type UserRepository interface {
	CreateUserWithGrant(ctx context.Context, user models.NewUser, initial int) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// Service — бизнес-логика авторизации и аутентификации.
type Service struct {
	provider IdentityProvider
	users    UserRepository
	log      *slog.Logger
}

// New создает сервис авторизации.
func New(provider IdentityProvider, users UserRepository, log *slog.Logger) *Service {
	return &Service{provider: provider, users: users, log: log}
}

// NormalizeEmail приводит email к нижнему регистру без пробелов.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register регистрирует пользователя у провайдера и создает профиль с начальным кредитом.
func (s *Service) Register(ctx context.Context, email, password string, instagramUsername *string) (*models.User, error) {
	const op = "auth.Register"

	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%s: %w: invalid email", op, apperr.ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%s: %w: password must be at least %d characters", op, apperr.ErrValidation, MinPasswordLength)
	}
	if instagramUsername != nil {
		name := ledger.NormalizeInstagram(*instagramUsername)
		if name == "" {
			instagramUsername = nil
		} else {
			instagramUsername = &name
		}
	}

	id, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.CreateUserWithGrant(ctx, models.NewUser{
		ID:                id,
		Email:             email,
		InstagramUsername: instagramUsername,
	}, models.InitialCredits)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", sl.UserID(user.ID))
	return user, nil
}

// Login проверяет учетные данные и возвращает токен и профиль.
// Если у провайдера есть учетная запись без профиля, профиль создается.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	const op = "auth.Login"

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, fmt.Errorf("%s: %w", op, apperr.ErrAuthentication)
	}

	token, id, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.GetUser(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		user, err = s.users.CreateUserWithGrant(ctx, models.NewUser{ID: id, Email: email}, models.InitialCredits)
		if err == nil {
			s.log.Info("profile created on first login", sl.UserID(id))
		}
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// Authenticate проверяет токен и загружает актуальный профиль.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	const op = "auth.Authenticate"

	if token == "" {
		return nil, fmt.Errorf("%s: %w: empty token", op, apperr.ErrAuthentication)
	}
	id, err := s.provider.ValidateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.GetUser(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w: unknown user", op, apperr.ErrAuthentication)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
