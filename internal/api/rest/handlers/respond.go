package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/Dhoini/subscription-commerce/pkg/req"
	"github.com/Dhoini/subscription-commerce/pkg/res"
	"github.com/gin-gonic/gin"
)

// errorCategory описывает, как категория ошибки попадает в ответ
type errorCategory struct {
	kind   error
	status int
	code   string
}

// Порядок важен: PaymentError с Kind=ErrInternal не должен попасть в 400
var categories = []errorCategory{
	{domain.ErrSignatureInvalid, http.StatusBadRequest, "signature_invalid"},
	{domain.ErrPaymentNotCaptured, http.StatusBadRequest, "payment_not_captured"},
	{domain.ErrInvalidPlan, http.StatusBadRequest, "invalid_plan"},
	{domain.ErrValidation, http.StatusBadRequest, "validation_error"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
}

// respondError переводит ошибку сервиса в HTTP ответ.
// Текст внутренних ошибок клиенту не отдается.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var pe *domain.PaymentError
	if errors.As(err, &pe) && errors.Is(pe.Kind, domain.ErrInternal) {
		writeInternal(c, log, err, pe.Retryable)
		return
	}

	for _, cat := range categories {
		if !errors.Is(err, cat.kind) {
			continue
		}
		body := res.ErrorResponse{Error: cat.code, Message: publicMessage(err), Retryable: domain.IsRetryable(err)}
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			body.Details = verrs
		}
		_ = c.Error(err)
		res.JsonErrorResponse(c.Writer, body, cat.status)
		c.Abort()
		return
	}

	writeInternal(c, log, err, false)
}

func writeInternal(c *gin.Context, log *logger.Logger, err error, retryable bool) {
	log.Errorw("Request failed", "path", c.Request.URL.Path, "error", err)
	_ = c.Error(err)
	res.JsonErrorResponse(c.Writer, res.ErrorResponse{
		Error:     "internal_error",
		Message:   "Internal server error",
		Retryable: retryable,
	}, http.StatusInternalServerError)
	c.Abort()
}

// publicMessage - текст для клиента. У PaymentError это Message без оригинальной ошибки.
func publicMessage(err error) string {
	var pe *domain.PaymentError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

// respondBindError отвечает 400 на невалидное тело запроса
func respondBindError(c *gin.Context, err error) {
	body := res.ErrorResponse{Error: "validation_error", Message: "Invalid request body"}
	if fields := req.FieldErrors(err); fields != nil {
		body.Details = fields
	}
	res.JsonErrorResponse(c.Writer, body, http.StatusBadRequest)
	c.Abort()
}

func respond(c *gin.Context, status int, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["success"] = true
	c.JSON(status, payload)
}

// bind декодирует и валидирует JSON тело. При ошибке ответ уже отправлен.
func bind[T any](c *gin.Context) (*T, bool) {
	payload, err := req.HandleBody[T](c.Request.Body)
	if err != nil {
		respondBindError(c, err)
		return nil, false
	}
	return payload, true
}

// pageQuery - параметры постраничного вывода из query string
type pageQuery struct {
	Page     int    `form:"page"`
	PerPage  int    `form:"perPage"`
	Search   string `form:"search"`
	SortBy   string `form:"sortBy"`
	SortDesc bool   `form:"sortDesc"`
}
