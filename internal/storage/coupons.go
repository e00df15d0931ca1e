package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pagecrest/fulfillment/internal/domain/models"
)

var ErrCouponNotFound = errors.New("coupon not found")

// CouponStorage describes coupon access within the checkout transaction.
type CouponStorage interface {
	// LockCouponByCodeTx loads a coupon by normalized code and locks
	// its row for the duration of the transaction.
	LockCouponByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*models.Coupon, error)
	// IncrementUsageTx atomically increments used_count, failing with
	// models.ErrCouponExhausted if the usage limit is reached.
	IncrementUsageTx(ctx context.Context, tx *sql.Tx, id int64) error
}

type couponRepository struct {
	db *sql.DB
}

// NewCouponRepository creates the coupon repository.
func NewCouponRepository(db *sql.DB) CouponStorage {
	return &couponRepository{db: db}
}

func (r *couponRepository) LockCouponByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*models.Coupon, error) {
	coupon := &models.Coupon{}
	query := `
		SELECT id, code, discount_type, discount_value, min_order_amount,
		       max_discount_amount, usage_limit, used_count, expires_at, active
		FROM coupons WHERE code = $1 FOR UPDATE`
	row := tx.QueryRowContext(ctx, query, models.NormalizeCouponCode(code))
	// expires_at is nullable; NULL means the coupon never expires.
	var expires sql.NullTime
	if err := row.Scan(
		&coupon.ID, &coupon.Code, &coupon.DiscountType, &coupon.DiscountValue,
		&coupon.MinOrderAmount, &coupon.MaxDiscountAmount, &coupon.UsageLimit,
		&coupon.UsedCount, &expires, &coupon.Active,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("locking coupon %q: %w", code, err)
	}
	if expires.Valid {
		coupon.ExpiresAt = expires.Time
	}
	return coupon, nil
}

func (r *couponRepository) IncrementUsageTx(ctx context.Context, tx *sql.Tx, id int64) error {
	// The guard in the UPDATE keeps used_count <= usage_limit even
	// under concurrent checkouts.
	query := `
		UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)`
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("incrementing coupon %d usage: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("incrementing coupon %d usage: %w", id, err)
	}
	if affected == 0 {
		return models.ErrCouponExhausted
	}
	return nil
}
