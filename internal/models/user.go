// Package models содержит доменные структуры приложения: пользователей,
// записи кредитного журнала, трансформации, товары каталога и платежи.
// Структуры используются в бизнес‑логике, хранилище и HTTP-ответах.
package models

import "time"

// User представляет зарегистрированного пользователя.
type User struct {
	ID                string    `json:"id"`                           // Идентификатор, выданный провайдером идентификации
	Email             string    `json:"email"`                        // Электронная почта (уникальная)
	Credits           int       `json:"credits"`                      // Текущий баланс кредитов
	InstagramUsername *string   `json:"instagram_username,omitempty"` // Имя в Instagram, задается один раз
	InstagramVerified bool      `json:"instagram_verified"`           // Подписка в Instagram подтверждена
	IsAdmin           bool      `json:"is_admin"`                     // Администратор
	CreatedAt         time.Time `json:"created_at"`
}

// NewUser описывает данные для создания пользователя.
type NewUser struct {
	ID                string
	Email             string
	InstagramUsername *string
}
