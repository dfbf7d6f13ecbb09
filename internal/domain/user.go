package domain

import "time"

// AuthProvider способ регистрации пользователя
type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

// Gender 0 - не указан, 1 - мужской, 2 - женский
type Gender int

// User - покупатель
type User struct {
	UserID       string       `json:"userId" db:"user_id"`
	Name         string       `json:"name" db:"name"`
	Email        string       `json:"email" db:"email"`
	Phone        string       `json:"phone,omitempty" db:"phone"`
	Country      string       `json:"country,omitempty" db:"country"`
	CallingCode  string       `json:"callingCode,omitempty" db:"calling_code"`
	Gender       Gender       `json:"gender" db:"gender"`
	PasswordHash string       `json:"-" db:"password_hash"`
	Provider     AuthProvider `json:"provider" db:"provider"`
	ExternalUID  string       `json:"-" db:"external_uid"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// UserFilter параметры выборки пользователей
type UserFilter struct {
	Search   string
	SortBy   string
	SortDesc bool
	Page     int
	PerPage  int
}

var userSortFields = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"email":     "email",
}

// SortColumn возвращает колонку сортировки
func (f UserFilter) SortColumn() string {
	if col, ok := userSortFields[f.SortBy]; ok {
		return col
	}
	return "created_at"
}

// Admin - администратор. Credential хранит bcrypt-хеш или устаревший открытый пароль.
type Admin struct {
	AdminID      string     `json:"adminId" db:"admin_id"`
	Email        string     `json:"email" db:"email"`
	Credential   string     `json:"-" db:"credential"`
	ResetOTPHash string     `json:"-" db:"reset_otp_hash"`
	ResetExpires *time.Time `json:"-" db:"reset_expires_at"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// OTPPurpose назначение одноразового кода
type OTPPurpose string

const (
	OTPPurposeVerifyEmail   OTPPurpose = "verify_email"
	OTPPurposeResetPassword OTPPurpose = "reset_password"
)

// OTPTTL время жизни одноразового кода
const OTPTTL = 10 * time.Minute

// EmailVerification - одноразовый код для e-mail
type EmailVerification struct {
	Email     string     `db:"email"`
	Purpose   OTPPurpose `db:"purpose"`
	CodeHash  string     `db:"code_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	Verified  bool       `db:"verified"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// Expired проверяет срок действия кода
func (v *EmailVerification) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
