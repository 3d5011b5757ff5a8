// Package transport talks to the delivery backend.
//
//go:generate mockgen -source=client.go -destination=mocks/client_mock.go -package=mocks
package transport

import (
	"context"
	"errors"
	"fmt"

	"deliverytrack/internal/model"
)

// Client is the backend surface the tracker and views depend on.
type Client interface {
	SetAuthToken(token string)
	ListOrders(ctx context.Context) ([]model.OrderSummary, error)
	GetOrderTracking(ctx context.Context, orderID int) (model.TrackingSnapshot, error)
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error)
}

// TransportError wraps any failure to obtain a usable response: network
// errors, timeouts, non-2xx answers, failed envelopes and bodies that do not
// match the expected shape (Malformed).
type TransportError struct {
	Op         string
	StatusCode int
	Malformed  bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Malformed:
		return fmt.Sprintf("transport %s: malformed response: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is a TransportError caused by a response
// that did not match the expected schema.
func IsMalformed(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Malformed
}
