// Package service implements the fulfillment core: the checkout
// transaction and the shipment orchestrator that reconciles carrier
// state back into orders.
package service

import (
	"context"
	"errors"
)

// Checkout validation errors. The checkout transaction reports the
// first violated precondition, stock errors before coupon errors.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrProductInactive = errors.New("product is not available")
	ErrNoShipment      = errors.New("order has no shipment")
	ErrNotPaid         = errors.New("order payment not confirmed")
)

// EventPublisher publishes post-commit order events. Publishing is
// best-effort: failures are logged, never rolled back into the order.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event interface{}) error
}

// NopPublisher discards events; used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
