package models

import "time"

// OrderStatus — состояние заказа в платежном шлюзе.
type OrderStatus string

const (
	OrderCreated OrderStatus = "created"
	OrderPaid    OrderStatus = "paid"
)

// PaymentOrder — заказ на покупку кредитов, созданный в Razorpay.
type PaymentOrder struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	Amount    int64       `json:"amount"`
	Currency  string      `json:"currency"`
	Credits   int         `json:"credits"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Payment — подтвержденный и зачисленный платеж.
type Payment struct {
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}
