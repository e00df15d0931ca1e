package models_test

import (
	"testing"
	"time"

	"github.com/pagecrest/fulfillment/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "SAVE20", models.NormalizeCouponCode("save20"))
	assert.Equal(t, "SAVE20", models.NormalizeCouponCode("  Save20 "))
	assert.Equal(t, "SAVE20", models.NormalizeCouponCode("SAVE20"))
}

func TestCoupon_Validate(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	base := models.Coupon{
		Code:           "SAVE20",
		DiscountType:   models.DiscountPercentage,
		DiscountValue:  20,
		MinOrderAmount: 5000,
		UsageLimit:     10,
		UsedCount:      3,
		ExpiresAt:      now.Add(24 * time.Hour),
		Active:         true,
	}

	t.Run("valid", func(t *testing.T) {
		c := base
		assert.NoError(t, c.Validate(10000, now))
	})

	t.Run("inactive", func(t *testing.T) {
		c := base
		c.Active = false
		assert.ErrorIs(t, c.Validate(10000, now), models.ErrCouponInactive)
	})

	t.Run("expired", func(t *testing.T) {
		c := base
		c.ExpiresAt = now.Add(-time.Hour)
		assert.ErrorIs(t, c.Validate(10000, now), models.ErrCouponExpired)
	})

	t.Run("no expiry means never expires", func(t *testing.T) {
		c := base
		c.ExpiresAt = time.Time{}
		assert.NoError(t, c.Validate(10000, now))
	})

	t.Run("exhausted", func(t *testing.T) {
		c := base
		c.UsedCount = 10
		assert.ErrorIs(t, c.Validate(10000, now), models.ErrCouponExhausted)
	})

	t.Run("zero limit is unlimited", func(t *testing.T) {
		c := base
		c.UsageLimit = 0
		c.UsedCount = 100000
		assert.NoError(t, c.Validate(10000, now))
	})

	t.Run("below minimum order", func(t *testing.T) {
		c := base
		assert.ErrorIs(t, c.Validate(4999, now), models.ErrCouponMinOrder)
	})
}

func TestCoupon_DiscountFor(t *testing.T) {
	t.Run("percentage", func(t *testing.T) {
		c := models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: 20}
		assert.Equal(t, int64(4000), c.DiscountFor(20000))
	})

	t.Run("percentage capped", func(t *testing.T) {
		// 20% of $200 is $40, capped at $30.
		c := models.Coupon{
			DiscountType:      models.DiscountPercentage,
			DiscountValue:     20,
			MaxDiscountAmount: 3000,
		}
		assert.Equal(t, int64(3000), c.DiscountFor(20000))
	})

	t.Run("fixed", func(t *testing.T) {
		c := models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: 1500}
		assert.Equal(t, int64(1500), c.DiscountFor(20000))
	})

	t.Run("fixed never exceeds subtotal", func(t *testing.T) {
		c := models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: 5000}
		assert.Equal(t, int64(3000), c.DiscountFor(3000))
	})

	t.Run("unknown type discounts nothing", func(t *testing.T) {
		c := models.Coupon{DiscountType: "mystery", DiscountValue: 50}
		assert.Equal(t, int64(0), c.DiscountFor(10000))
	})
}
