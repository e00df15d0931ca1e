package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pagecrest/fulfillment/internal/domain/models"
	"github.com/pagecrest/fulfillment/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockCouponByCodeTx_NormalizesCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expires := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, code, discount_type").
		WithArgs("SAVE20").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "discount_type", "discount_value", "min_order_amount",
			"max_discount_amount", "usage_limit", "used_count", "expires_at", "active",
		}).AddRow(7, "SAVE20", "percentage", 20, 5000, 3000, 100, 5, expires, true))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := storage.NewCouponRepository(db)
	coupon, err := repo.LockCouponByCodeTx(context.Background(), tx, "  save20 ")

	require.NoError(t, err)
	assert.Equal(t, "SAVE20", coupon.Code)
	assert.Equal(t, models.DiscountPercentage, coupon.DiscountType)
	assert.Equal(t, int64(3000), coupon.MaxDiscountAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockCouponByCodeTx_NullExpiryNeverExpires(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, code, discount_type").
		WithArgs("FOREVER10").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "discount_type", "discount_value", "min_order_amount",
			"max_discount_amount", "usage_limit", "used_count", "expires_at", "active",
		}).AddRow(8, "FOREVER10", "fixed", 1000, 0, 0, 0, 0, nil, true))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := storage.NewCouponRepository(db)
	coupon, err := repo.LockCouponByCodeTx(context.Background(), tx, "FOREVER10")

	require.NoError(t, err)
	assert.True(t, coupon.ExpiresAt.IsZero())
	assert.NoError(t, coupon.Validate(2500, time.Now()))
}

func TestLockCouponByCodeTx_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, code, discount_type").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := storage.NewCouponRepository(db)
	_, err = repo.LockCouponByCodeTx(context.Background(), tx, "NOPE")

	assert.ErrorIs(t, err, storage.ErrCouponNotFound)
}

func TestIncrementUsageTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE coupons SET used_count = used_count \\+ 1").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := storage.NewCouponRepository(db)
	require.NoError(t, repo.IncrementUsageTx(context.Background(), tx, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementUsageTx_GuardRejectsExhausted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE coupons SET used_count = used_count \\+ 1").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := storage.NewCouponRepository(db)
	err = repo.IncrementUsageTx(context.Background(), tx, 7)

	assert.ErrorIs(t, err, models.ErrCouponExhausted)
}
