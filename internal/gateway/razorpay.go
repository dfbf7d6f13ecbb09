package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/config"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	razorpay "github.com/razorpay/razorpay-go"
)

// razorpayGateway реализует Gateway поверх razorpay-go
type razorpayGateway struct {
	client     *razorpay.Client
	timeout    time.Duration
	maxElapsed time.Duration
	log        *logger.Logger
}

// NewRazorpayGateway создает адаптер шлюза
func NewRazorpayGateway(cfg config.RazorpayConfig, log *logger.Logger) Gateway {
	return &razorpayGateway{
		client:     razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		timeout:    cfg.Timeout,
		maxElapsed: cfg.MaxElapsed,
		log:        log.Named("razorpay"),
	}
}

// CreateOrder создает заказ в шлюзе с повторами на временных ошибках
func (g *razorpayGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (*RemoteOrder, error) {
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	var (
		result  map[string]interface{}
		lastErr error
	)
	operation := func() error {
		body, err := g.call(ctx, func() (map[string]interface{}, error) {
			return g.client.Order.Create(data, nil)
		})
		if err != nil {
			lastErr = err
			if isPermanent(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			g.log.Warnw("Order create attempt failed, retrying", "receipt", req.Receipt, "error", err)
			return err
		}
		result = body
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = g.maxElapsed
	bo.Reset()

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		g.log.Errorw("Failed to create gateway order", "receipt", req.Receipt, "error", lastErr)
		return nil, err
	}

	return &RemoteOrder{
		ID:       asString(result["id"]),
		Amount:   asInt64(result["amount"]),
		Currency: asString(result["currency"]),
		Receipt:  asString(result["receipt"]),
		Status:   asString(result["status"]),
	}, nil
}

// FetchPayment читает платеж. Повторов нет: решение принимает вызывающий.
func (g *razorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*RemotePayment, error) {
	body, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.client.Payment.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return &RemotePayment{
		ID:          asString(body["id"]),
		OrderID:     asString(body["order_id"]),
		Status:      PaymentStatus(asString(body["status"])),
		Amount:      asInt64(body["amount"]),
		Currency:    asString(body["currency"]),
		Description: asString(body["description"]),
	}, nil
}

// call выполняет запрос клиента без поддержки context с ограничением по времени.
// Горутина с брошенным запросом завершится по таймауту HTTP клиента.
func (g *razorpayGateway) call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			if isPermanent(r.err) {
				return nil, fmt.Errorf("gateway rejected request: %w", r.err)
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, r.err)
		}
		return r.body, nil
	}
}

// isPermanent - ошибки валидации шлюза повторять бессмысленно
func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "BAD_REQUEST") || strings.Contains(msg, "AUTHENTICATION")
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
