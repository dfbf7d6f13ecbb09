package domain

import (
	"errors"
	"fmt"
)

// Категории ошибок приложения. Каждая категория однозначно отображается в HTTP статус.
var (
	// ErrValidation неверные или отсутствующие входные данные
	ErrValidation = errors.New("validation error")

	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrForbidden операция запрещена для данного пользователя
	ErrForbidden = errors.New("forbidden")

	// ErrConflict нарушение уникальности или недопустимый переход состояния
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized пользователь не аутентифицирован
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSignatureInvalid подпись платежа не совпала
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrPaymentNotCaptured платежный шлюз не подтвердил списание
	ErrPaymentNotCaptured = errors.New("payment not captured")

	// ErrInvalidPlan у плана нет данных, необходимых для операции
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrInternal внутренняя ошибка
	ErrInternal = errors.New("internal error")
)

// ValidationError представляет ошибку валидации одного поля
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors представляет набор ошибок валидации
type ValidationErrors []ValidationError

// Error реализует интерфейс error
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}

	if len(e) == 1 {
		return fmt.Sprintf("validation failed: %s - %s", e[0].Field, e[0].Message)
	}

	return fmt.Sprintf("validation failed: %d errors", len(e))
}

// Is сопоставляет набор с ErrValidation
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add добавляет ошибку валидации
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors проверяет наличие ошибок
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ErrOrNil возвращает nil, если ошибок нет. Избавляет от typed-nil в интерфейсе error.
func (e ValidationErrors) ErrOrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// NewValidationError создает набор из одной ошибки
func NewValidationError(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}

// NotFoundError представляет ошибку "не найдено"
type NotFoundError struct {
	Entity string
	ID     string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is проверяет, является ли ошибка ошибкой типа "не найдено"
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает новую ошибку "не найдено"
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// DuplicateError представляет ошибку дубликата
type DuplicateError struct {
	Entity string
	Field  string
	Value  string
}

// Error реализует интерфейс error
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s '%s' already exists", e.Entity, e.Field, e.Value)
}

// Is проверяет, является ли ошибка ошибкой дубликата
func (e *DuplicateError) Is(target error) bool {
	return target == ErrConflict
}

// NewDuplicateError создает новую ошибку дубликата
func NewDuplicateError(entity, field, value string) *DuplicateError {
	return &DuplicateError{
		Entity: entity,
		Field:  field,
		Value:  value,
	}
}

// TransitionError - попытка перевести сущность в несовместимое состояние
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrConflict
}

// ForbiddenError - пользователь не владеет ресурсом
type ForbiddenError struct {
	Action string
	ID     string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("not allowed to %s %s", e.Action, e.ID)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// NewForbiddenError создает ошибку владения
func NewForbiddenError(action, id string) *ForbiddenError {
	return &ForbiddenError{Action: action, ID: id}
}

// PaymentError представляет отказ на этапе проверки платежа.
// Kind - одна из категорий: ErrSignatureInvalid, ErrPaymentNotCaptured, ErrInternal.
type PaymentError struct {
	Kind          error
	Message       string
	OrderID       string
	GatewayStatus string
	Retryable     bool
	OriginalErr   error
}

// Error реализует интерфейс error
func (e *PaymentError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("payment error [%v]: %s: %v (order_id: %s)", e.Kind, e.Message, e.OriginalErr, e.OrderID)
	}
	return fmt.Sprintf("payment error [%v]: %s (order_id: %s)", e.Kind, e.Message, e.OrderID)
}

// Unwrap возвращает оригинальную ошибку
func (e *PaymentError) Unwrap() error {
	return e.OriginalErr
}

// Is сопоставляет ошибку с ее категорией
func (e *PaymentError) Is(target error) bool {
	return target == e.Kind
}

// NewPaymentError создает новую ошибку платежа
func NewPaymentError(kind error, message, orderID string, err error) *PaymentError {
	return &PaymentError{
		Kind:        kind,
		Message:     message,
		OrderID:     orderID,
		OriginalErr: err,
	}
}

// IsRetryable сообщает, стоит ли клиенту повторить запрос
func IsRetryable(err error) bool {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
