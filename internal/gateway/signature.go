package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer считает и проверяет подпись платежа: HMAC-SHA256 над "orderId|paymentId", hex.
type Signer struct {
	secret []byte
}

// NewSigner создает подписчика с секретом шлюза
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign возвращает hex-подпись
func (s *Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает подписи за постоянное время
func (s *Signer) Verify(orderID, paymentID, signature string) bool {
	expected := s.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
