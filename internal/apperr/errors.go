// Package apperr содержит доменные ошибки приложения.
//
// Сервисы и хранилище оборачивают их через fmt.Errorf("%s: %w", op, err),
// HTTP-слой классифицирует через errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — некорректные входные данные.
	ErrValidation = errors.New("validation error")
	// ErrAuthentication — отсутствует или недействителен токен, неверные учетные данные.
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorization — пользователь аутентифицирован, но не имеет прав.
	ErrAuthorization = errors.New("forbidden")
	// ErrInsufficientCredits — на балансе недостаточно кредитов.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrDuplicateUser — пользователь с таким email уже существует.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrSignatureMismatch — подпись платежа не совпала.
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	// ErrUnsupportedMedia — тип загруженного файла не поддерживается.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrPayloadTooLarge — файл больше допустимого размера.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyVerified — Instagram уже подтвержден.
	ErrAlreadyVerified = errors.New("instagram already verified")
	// ErrPaymentAlreadyProcessed — платеж уже был зачислен.
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
)

// UpstreamError описывает ошибку внешнего сервиса (Replicate, Razorpay, провайдер идентификации).
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Message)
}

// AsUpstream возвращает UpstreamError из цепочки ошибок, если он там есть.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
