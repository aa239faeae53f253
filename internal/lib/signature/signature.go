// Package signature проверяет подписи платежей Razorpay.
//
// Подпись — hex(HMAC-SHA256(secret, order_id + "|" + payment_id)).
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign возвращает ожидаемую подпись для пары заказ/платеж.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает подпись с ожидаемой за постоянное время.
func Verify(secret, orderID, paymentID, sig string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(sig))
}
