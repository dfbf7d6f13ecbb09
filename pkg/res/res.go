package res

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse представляет формат JSON-ответа для ошибок.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`               // Категория ошибки (для программной обработки)
	Message   string `json:"message"`             // Сообщение для пользователя
	Retryable bool   `json:"retryable,omitempty"` // Можно ли повторить запрос
	Details   any    `json:"details,omitempty"`   // Детали (например, ошибки валидации)
}

// JsonResponse отправляет JSON-ответ с заданным статусом.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// JsonErrorResponse отправляет JSON ответ ошибки.
func JsonErrorResponse(w http.ResponseWriter, errResponse ErrorResponse, status int) {
	errResponse.Success = false
	JsonResponse(w, errResponse, status)
}
