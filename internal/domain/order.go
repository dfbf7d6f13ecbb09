package domain

import "time"

// OrderStatus статус заказа (попытки оплаты)
type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

// IsTerminal возвращает true для paid и failed
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// Order - одна попытка оформления подписки. ID выдается платежным шлюзом.
type Order struct {
	OrderID        string      `json:"orderId" db:"order_id"`
	PaymentID      string      `json:"paymentId,omitempty" db:"payment_id"`
	Signature      string      `json:"-" db:"signature"`
	Amount         int64       `json:"amount" db:"amount"`
	Currency       string      `json:"currency" db:"currency"`
	Receipt        string      `json:"receipt" db:"receipt"`
	BuyerID        string      `json:"buyerId" db:"buyer_id"`
	PlanID         string      `json:"planId" db:"plan_id"`
	PricingID      string      `json:"pricingId" db:"pricing_id"`
	DeliveryTarget string      `json:"deliveryTarget" db:"delivery_target"`
	Status         OrderStatus `json:"status" db:"status"`
	GatewayStatus  string      `json:"gatewayStatus,omitempty" db:"gateway_status"`
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
	PaidAt         *time.Time  `json:"paidAt,omitempty" db:"paid_at"`
}

// Transition переводит заказ в терминальный статус.
// Повторный перевод в тот же статус ничего не меняет (changed=false).
// Перевод из одного терминального статуса в другой возвращает TransitionError.
func (o *Order) Transition(to OrderStatus) (changed bool, err error) {
	if !to.IsTerminal() {
		return false, &TransitionError{Entity: "order", ID: o.OrderID, From: string(o.Status), To: string(to)}
	}
	switch o.Status {
	case to:
		return false, nil
	case OrderStatusCreated:
		o.Status = to
		return true, nil
	default:
		return false, &TransitionError{Entity: "order", ID: o.OrderID, From: string(o.Status), To: string(to)}
	}
}

// MarkPaid переводит заказ в paid и сохраняет реквизиты платежа
func (o *Order) MarkPaid(paymentID, signature string, at time.Time) (bool, error) {
	changed, err := o.Transition(OrderStatusPaid)
	if err != nil || !changed {
		return changed, err
	}
	o.PaymentID = paymentID
	o.Signature = signature
	o.PaidAt = &at
	return true, nil
}
