package gateway

import (
	"context"
	"errors"
)

// PaymentStatus статус платежа на стороне шлюза
type PaymentStatus string

const (
	PaymentStatusCreated    PaymentStatus = "created"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// IsCaptured - терминальный успех
func (s PaymentStatus) IsCaptured() bool {
	return s == PaymentStatusCaptured
}

// IsPending - платеж еще может быть списан, заказ не должен помечаться failed
func (s PaymentStatus) IsPending() bool {
	return s == PaymentStatusCreated || s == PaymentStatusAuthorized
}

// ErrUnavailable - шлюз не ответил или вернул ошибку сервера
var ErrUnavailable = errors.New("payment gateway unavailable")

// CreateOrderRequest параметры удаленного заказа
type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// RemoteOrder заказ, созданный в шлюзе
type RemoteOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// RemotePayment платеж по данным шлюза
type RemotePayment struct {
	ID          string
	OrderID     string
	Status      PaymentStatus
	Amount      int64
	Currency    string
	Description string
}

// Gateway - узкий контракт платежного шлюза
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*RemoteOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*RemotePayment, error)
}
