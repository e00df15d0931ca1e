package models

import (
	"errors"
	"strings"
	"time"
)

// DiscountType distinguishes percentage from fixed-amount coupons.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon validation errors, reported in checkout after stock errors.
var (
	ErrCouponInactive  = errors.New("coupon is not active")
	ErrCouponExpired   = errors.New("coupon has expired")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
	ErrCouponMinOrder  = errors.New("order subtotal below coupon minimum")
)

// Coupon is a discount code. UsedCount is monotonic and must never
// exceed UsageLimit; the check-and-increment happens inside the
// checkout transaction.
type Coupon struct {
	ID                int64
	Code              string
	DiscountType      DiscountType
	DiscountValue     int64 // percent for percentage, cents for fixed
	MinOrderAmount    int64 // cents
	MaxDiscountAmount int64 // cents, 0 = uncapped
	UsageLimit        int   // 0 = unlimited
	UsedCount         int
	ExpiresAt         time.Time
	Active            bool
}

// NormalizeCouponCode case-normalizes a coupon code for lookup.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the coupon against a subtotal at a point in time.
func (c *Coupon) Validate(subtotal int64, now time.Time) error {
	if !c.Active {
		return ErrCouponInactive
	}
	if !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt) {
		return ErrCouponExpired
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return ErrCouponExhausted
	}
	if subtotal < c.MinOrderAmount {
		return ErrCouponMinOrder
	}
	return nil
}

// DiscountFor computes the discount in cents for a subtotal:
// min(raw discount, max cap, subtotal).
func (c *Coupon) DiscountFor(subtotal int64) int64 {
	var raw int64
	switch c.DiscountType {
	case DiscountPercentage:
		raw = subtotal * c.DiscountValue / 100
	case DiscountFixed:
		raw = c.DiscountValue
	}
	if c.MaxDiscountAmount > 0 && raw > c.MaxDiscountAmount {
		raw = c.MaxDiscountAmount
	}
	if raw > subtotal {
		raw = subtotal
	}
	if raw < 0 {
		raw = 0
	}
	return raw
}
