package domain

import "time"

// SubscriptionStatus жизненный цикл подписки
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// AdminStatus - рабочий статус подписки для администраторов, не связан с SubscriptionStatus
type AdminStatus int

const (
	AdminStatusInProcess AdminStatus = 0
	AdminStatusCompleted AdminStatus = 1
)

// Valid проверяет допустимость значения
func (s AdminStatus) Valid() bool {
	return s == AdminStatusInProcess || s == AdminStatusCompleted
}

// Subscription - право на услугу, появляется после подтвержденной оплаты
type Subscription struct {
	SubscriptionID string             `json:"subscriptionId" db:"subscription_id"`
	BuyerID        string             `json:"buyerId" db:"buyer_id"`
	PlanID         string             `json:"planId" db:"plan_id"`
	PricingID      string             `json:"pricingId" db:"pricing_id"`
	PlanName       string             `json:"planName" db:"plan_name"`
	DeliveryTarget string             `json:"deliveryTarget" db:"delivery_target"`
	OrderID        string             `json:"orderId,omitempty" db:"order_id"`
	PaymentID      string             `json:"paymentId,omitempty" db:"payment_id"`
	Amount         int64              `json:"amount" db:"amount"`
	Currency       string             `json:"currency" db:"currency"`
	Status         SubscriptionStatus `json:"status" db:"status"`
	AdminStatus    AdminStatus        `json:"adminStatus" db:"admin_status"`
	StartedAt      time.Time          `json:"startedAt" db:"started_at"`
	ExpiresAt      *time.Time         `json:"expiresAt,omitempty" db:"expires_at"`
	CancelledAt    *time.Time         `json:"cancelledAt,omitempty" db:"cancelled_at"`
	CreatedAt      time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt" db:"updated_at"`
}

// OwnedBy проверяет владельца подписки
func (s *Subscription) OwnedBy(userID string) bool {
	return userID != "" && s.BuyerID == userID
}

// SubscriptionView - подписка, обогащенная снимком тарифа
type SubscriptionView struct {
	Subscription
	Pricing *PricingTier `json:"pricing,omitempty"`
}

// SubscriptionFilter параметры выборки подписок
type SubscriptionFilter struct {
	BuyerID     string
	AdminStatus *AdminStatus
	Search      string
	SortBy      string
	SortDesc    bool
	Page        int
	PerPage     int
}

// Допустимые поля сортировки
var subscriptionSortFields = map[string]string{
	"createdAt": "created_at",
	"startedAt": "started_at",
	"expiresAt": "expires_at",
	"amount":    "amount",
	"planName":  "plan_name",
	"status":    "status",
}

// SortColumn возвращает колонку сортировки, по умолчанию created_at
func (f SubscriptionFilter) SortColumn() string {
	if col, ok := subscriptionSortFields[f.SortBy]; ok {
		return col
	}
	return "created_at"
}

// Normalize приводит пагинацию к допустимым границам
func (f SubscriptionFilter) Normalize() SubscriptionFilter {
	f.Page, f.PerPage = NormalizePage(f.Page, f.PerPage)
	return f
}

// PageMeta метаданные пагинации
type PageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"perPage"`
	LastPage int `json:"lastPage"`
}

// NewPageMeta считает lastPage
func NewPageMeta(total, page, perPage int) PageMeta {
	last := 1
	if perPage > 0 && total > 0 {
		last = (total + perPage - 1) / perPage
	}
	return PageMeta{Total: total, Page: page, PerPage: perPage, LastPage: last}
}

// NormalizePage ограничивает page >= 1 и 1 <= perPage <= 100
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// SubscriptionCounts - сводка подписок пользователя
type SubscriptionCounts struct {
	Total     int `json:"total" db:"total"`
	Active    int `json:"active" db:"active"`
	Completed int `json:"completed" db:"completed"`
	InProcess int `json:"inProcess" db:"in_process"`
}

// AddMonths прибавляет месяцы к времени
func AddMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}
