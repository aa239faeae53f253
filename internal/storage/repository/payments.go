package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

// CreatePaymentOrder сохраняет заказ, созданный в платежном шлюзе.
func (s *Storage) CreatePaymentOrder(ctx context.Context, order models.PaymentOrder) error {
	const op = "storage.CreatePaymentOrder"

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO payment_orders (order_id, user_id, amount, currency, credits, status)
		 VALUES ($1, $2, $3, $4, $5, 'created')`,
		order.OrderID, order.UserID, order.Amount, order.Currency, order.Credits)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPaymentOrder возвращает заказ по идентификатору шлюза.
func (s *Storage) GetPaymentOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	const op = "storage.GetPaymentOrder"

	var o models.PaymentOrder
	var status string
	err := s.DB.QueryRowContext(ctx,
		`SELECT order_id, user_id, amount, currency, credits, status, created_at
		   FROM payment_orders WHERE order_id = $1`, orderID).
		Scan(&o.OrderID, &o.UserID, &o.Amount, &o.Currency, &o.Credits, &status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	o.Status = models.OrderStatus(status)
	return &o, nil
}

// RecordPurchase фиксирует подтвержденный платеж и начисляет кредиты заказа.
//
// Заказ блокируется на время транзакции. Повторная фиксация того же заказа или
// платежа возвращает apperr.ErrPaymentAlreadyProcessed без начисления.
func (s *Storage) RecordPurchase(ctx context.Context, userID, orderID, paymentID string) (balance, credits int, err error) {
	const op = "storage.RecordPurchase"

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var owner, status string
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, credits, status FROM payment_orders WHERE order_id = $1 FOR UPDATE`, orderID).
			Scan(&owner, &credits, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != userID {
			return apperr.ErrNotFound
		}
		if models.OrderStatus(status) == models.OrderPaid {
			return apperr.ErrPaymentAlreadyProcessed
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO payments (payment_id, order_id, user_id, credits) VALUES ($1, $2, $3, $4)`,
			paymentID, orderID, userID, credits)
		if isUniqueViolation(err) {
			return apperr.ErrPaymentAlreadyProcessed
		}
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `UPDATE payment_orders SET status = 'paid' WHERE order_id = $1`, orderID); err != nil {
			return err
		}
		balance, err = creditTx(ctx, tx, userID, credits, models.ReasonPurchase)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, credits, nil
}
