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

func insertTransaction(ctx context.Context, tx *sql.Tx, userID string, amount int, reason models.CreditReason) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, user_id, amount, reason) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), userID, amount, string(reason))
	return err
}

// creditTx увеличивает баланс и пишет запись журнала в рамках tx.
func creditTx(ctx context.Context, tx *sql.Tx, userID string, amount int, reason models.CreditReason) (int, error) {
	var balance int
	err := tx.QueryRowContext(ctx,
		`UPDATE users SET credits = credits + $1 WHERE id = $2 RETURNING credits`,
		amount, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if err = insertTransaction(ctx, tx, userID, amount, reason); err != nil {
		return 0, err
	}
	return balance, nil
}

// debitTx списывает amount, только если баланс не уходит в минус.
// Условный UPDATE берет блокировку строки, поэтому конкурентные списания сериализуются.
func debitTx(ctx context.Context, tx *sql.Tx, userID string, amount int, reason models.CreditReason) (int, error) {
	var balance int
	err := tx.QueryRowContext(ctx,
		`UPDATE users SET credits = credits - $1 WHERE id = $2 AND credits >= $1 RETURNING credits`,
		amount, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, apperr.ErrNotFound
		}
		return 0, apperr.ErrInsufficientCredits
	}
	if err != nil {
		return 0, err
	}
	if err = insertTransaction(ctx, tx, userID, -amount, reason); err != nil {
		return 0, err
	}
	return balance, nil
}

// ApplyCredit начисляет amount кредитов и возвращает новый баланс.
func (s *Storage) ApplyCredit(ctx context.Context, userID string, amount int, reason models.CreditReason) (int, error) {
	const op = "storage.ApplyCredit"

	var balance int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = creditTx(ctx, tx, userID, amount, reason)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// ApplyDebit списывает amount кредитов и возвращает новый баланс.
// При нехватке средств возвращает apperr.ErrInsufficientCredits и ничего не меняет.
func (s *Storage) ApplyDebit(ctx context.Context, userID string, amount int, reason models.CreditReason) (int, error) {
	const op = "storage.ApplyDebit"

	var balance int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = debitTx(ctx, tx, userID, amount, reason)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// VerifyInstagram отмечает Instagram подтвержденным и начисляет bonus кредитов.
// Повторный вызов возвращает apperr.ErrAlreadyVerified без начисления.
func (s *Storage) VerifyInstagram(ctx context.Context, userID, username string, bonus int) (int, error) {
	const op = "storage.VerifyInstagram"

	var balance int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users
			    SET instagram_verified = TRUE,
			        instagram_username = COALESCE(instagram_username, $2)
			  WHERE id = $1 AND instagram_verified = FALSE`,
			userID, username)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists bool
			if err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return apperr.ErrNotFound
			}
			return apperr.ErrAlreadyVerified
		}
		balance, err = creditTx(ctx, tx, userID, bonus, models.ReasonInstagramFollow)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// SetBalance приводит баланс к target корректирующей записью журнала с причиной admin
// и возвращает новый баланс и примененную разницу. Если баланс уже равен target,
// журнал не меняется и delta равна нулю.
func (s *Storage) SetBalance(ctx context.Context, userID string, target int) (balance, delta int, err error) {
	const op = "storage.SetBalance"

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var current int
		err := tx.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}

		delta = target - current
		if delta == 0 {
			return nil
		}
		if _, err = tx.ExecContext(ctx, `UPDATE users SET credits = $1 WHERE id = $2`, target, userID); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, userID, delta, models.ReasonAdmin)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return target, delta, nil
}

// ListCreditTransactions возвращает журнал пользователя, новые записи первыми.
func (s *Storage) ListCreditTransactions(ctx context.Context, userID string) ([]models.CreditTransaction, error) {
	const op = "storage.ListCreditTransactions"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, amount, reason, created_at
		   FROM credit_transactions
		  WHERE user_id = $1
		  ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.CreditTransaction, 0)
	for rows.Next() {
		var t models.CreditTransaction
		var reason string
		if err = rows.Scan(&t.ID, &t.UserID, &t.Amount, &reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		t.Reason = models.CreditReason(reason)
		result = append(result, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
