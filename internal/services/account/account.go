// Package account — профиль пользователя и административные операции.
package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

// Repository — профили пользователей.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetAdmin(ctx context.Context, userID string, isAdmin bool) (*models.User, error)
}

// Ledger выполняет корректировку баланса.
type Ledger interface {
	SetBalance(ctx context.Context, userID string, target int) (int, error)
}

// Service — профили и администрирование.
type Service struct {
	repo   Repository
	ledger Ledger
	log    *slog.Logger
}

// New создает сервис.
func New(repo Repository, ledger Ledger, log *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, log: log}
}

func requireAdmin(actor *models.User) error {
	if actor == nil || !actor.IsAdmin {
		return apperr.ErrAuthorization
	}
	return nil
}

// Profile возвращает профиль пользователя.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	const op = "account.Profile"

	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context, actor *models.User) ([]models.User, error) {
	const op = "account.ListUsers"

	if err := requireAdmin(actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// SetAdmin выдает или снимает права администратора.
func (s *Service) SetAdmin(ctx context.Context, actor *models.User, userID string, isAdmin bool) (*models.User, error) {
	const op = "account.SetAdmin"

	if err := requireAdmin(actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err := s.repo.SetAdmin(ctx, userID, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin flag changed", slog.String("actor", actor.ID), sl.UserID(userID), slog.Bool("is_admin", isAdmin))
	return u, nil
}

// UpdateCredits устанавливает баланс пользователя корректирующей записью журнала.
func (s *Service) UpdateCredits(ctx context.Context, actor *models.User, userID string, credits int) (*models.User, error) {
	const op = "account.UpdateCredits"

	if err := requireAdmin(actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.ledger.SetBalance(ctx, userID, credits); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("credits updated by admin", slog.String("actor", actor.ID), sl.UserID(userID), slog.Int("credits", credits))
	return u, nil
}
