package models

import "time"

// CreditReason — причина изменения баланса.
type CreditReason string

const (
	ReasonInitial         CreditReason = "initial"
	ReasonInstagramFollow CreditReason = "instagram_follow"
	ReasonAdmin           CreditReason = "admin"
	ReasonGeneration      CreditReason = "generation"
	ReasonPurchase        CreditReason = "purchase"
)

// Valid сообщает, входит ли причина в допустимый набор.
func (r CreditReason) Valid() bool {
	switch r {
	case ReasonInitial, ReasonInstagramFollow, ReasonAdmin, ReasonGeneration, ReasonPurchase:
		return true
	}
	return false
}

// CreditTransaction — неизменяемая запись журнала кредитов.
// Сумма Amount положительна при начислении и отрицательна при списании.
type CreditTransaction struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Amount    int          `json:"amount"`
	Reason    CreditReason `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}

const (
	// InitialCredits начисляются при регистрации.
	InitialCredits = 1
	// InstagramFollowCredits начисляются за подтвержденную подписку в Instagram.
	InstagramFollowCredits = 2
	// GenerationCost — стоимость одной трансформации.
	GenerationCost = 1
)
