// Package ledger реализует бизнес-логику кредитного журнала.
//
// Все изменения баланса выполняются хранилищем в одной SQL транзакции
// вместе с записью журнала. Сервис проверяет входные данные, пишет метрики и логи.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
	"github.com/magabrotheeeer/mirage-ghibli/internal/metrics"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

// Repository — операции хранилища над балансом и журналом.
type Repository interface {
	ApplyCredit(ctx context.Context, userID string, amount int, reason models.CreditReason) (int, error)
	ApplyDebit(ctx context.Context, userID string, amount int, reason models.CreditReason) (int, error)
	VerifyInstagram(ctx context.Context, userID, username string, bonus int) (int, error)
	RecordPurchase(ctx context.Context, userID, orderID, paymentID string) (balance, credits int, err error)
	SetBalance(ctx context.Context, userID string, target int) (balance, delta int, err error)
	ListCreditTransactions(ctx context.Context, userID string) ([]models.CreditTransaction, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// Service — кредитный журнал.
type Service struct {
	repo    Repository
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New создает сервис журнала. m может быть nil.
func New(repo Repository, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{repo: repo, metrics: m, log: log}
}

// Debit списывает amount кредитов и возвращает остаток.
func (s *Service) Debit(ctx context.Context, userID string, amount int, reason models.CreditReason) (int, error) {
	const op = "ledger.Debit"

	if amount <= 0 || !reason.Valid() {
		return 0, fmt.Errorf("%s: %w: amount must be positive and reason known", op, apperr.ErrValidation)
	}
	balance, err := s.repo.ApplyDebit(ctx, userID, amount, reason)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.LedgerDebit(string(reason))
	s.log.Info("credits debited", sl.UserID(userID), slog.Int("amount", amount),
		slog.String("reason", string(reason)), slog.Int("balance", balance))
	return balance, nil
}

// Credit начисляет amount кредитов и возвращает новый баланс.
func (s *Service) Credit(ctx context.Context, userID string, amount int, reason models.CreditReason) (int, error) {
	const op = "ledger.Credit"

	if amount <= 0 || !reason.Valid() {
		return 0, fmt.Errorf("%s: %w: amount must be positive and reason known", op, apperr.ErrValidation)
	}
	balance, err := s.repo.ApplyCredit(ctx, userID, amount, reason)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.LedgerCredit(string(reason))
	s.log.Info("credits granted", sl.UserID(userID), slog.Int("amount", amount),
		slog.String("reason", string(reason)), slog.Int("balance", balance))
	return balance, nil
}

// NormalizeInstagram убирает пробелы и ведущий @.
func NormalizeInstagram(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

// VerifyInstagram начисляет бонус за подписку. Бонус выдается один раз за жизнь аккаунта.
func (s *Service) VerifyInstagram(ctx context.Context, userID, username string) (int, error) {
	const op = "ledger.VerifyInstagram"

	username = NormalizeInstagram(username)
	if username == "" {
		return 0, fmt.Errorf("%s: %w: instagram username is required", op, apperr.ErrValidation)
	}
	balance, err := s.repo.VerifyInstagram(ctx, userID, username, models.InstagramFollowCredits)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.LedgerCredit(string(models.ReasonInstagramFollow))
	s.log.Info("instagram follow verified", sl.UserID(userID), slog.Int("balance", balance))
	return balance, nil
}

// RecordPurchase зачисляет кредиты оплаченного заказа.
func (s *Service) RecordPurchase(ctx context.Context, userID, orderID, paymentID string) (balance, credits int, err error) {
	const op = "ledger.RecordPurchase"

	if orderID == "" || paymentID == "" {
		return 0, 0, fmt.Errorf("%s: %w: order and payment ids are required", op, apperr.ErrValidation)
	}
	balance, credits, err = s.repo.RecordPurchase(ctx, userID, orderID, paymentID)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.LedgerCredit(string(models.ReasonPurchase))
	s.log.Info("purchase credited", sl.UserID(userID), slog.String("order_id", orderID),
		slog.Int("credits", credits), slog.Int("balance", balance))
	return balance, credits, nil
}

// SetBalance приводит баланс к target корректирующей записью журнала.
func (s *Service) SetBalance(ctx context.Context, userID string, target int) (int, error) {
	const op = "ledger.SetBalance"

	if target < 0 {
		return 0, fmt.Errorf("%s: %w: credits must not be negative", op, apperr.ErrValidation)
	}
	balance, delta, err := s.repo.SetBalance(ctx, userID, target)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case delta > 0:
		s.metrics.LedgerCredit(string(models.ReasonAdmin))
	case delta < 0:
		s.metrics.LedgerDebit(string(models.ReasonAdmin))
	}
	s.log.Info("balance set by admin", sl.UserID(userID), slog.Int("balance", balance), slog.Int("delta", delta))
	return balance, nil
}

// History возвращает журнал пользователя, новые записи первыми.
func (s *Service) History(ctx context.Context, userID string) ([]models.CreditTransaction, error) {
	const op = "ledger.History"

	history, err := s.repo.ListCreditTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return history, nil
}

// Balance возвращает текущий баланс из хранилища.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	const op = "ledger.Balance"

	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return u.Credits, nil
}
